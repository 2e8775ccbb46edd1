//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package index

import (
	"math"
	"sort"
)

const (
	// DefaultMergeTierFactor is the doc count ratio between merge tiers.
	DefaultMergeTierFactor = 10.0
	// DefaultMergeMinSegments is how many segments a tier collects before
	// it is merged into one.
	DefaultMergeMinSegments = 4
)

// mergePolicy groups segments into logarithmic size tiers. A tier holding
// at least minSegments segments is merged into one, which promotes the
// result roughly one tier up and keeps the segment count logarithmic in
// the index size.
type mergePolicy struct {
	tierFactor  float64
	minSegments int
}

func newMergePolicy(tierFactor float64, minSegments int) mergePolicy {
	if tierFactor <= 1 {
		tierFactor = DefaultMergeTierFactor
	}
	if minSegments < 2 {
		minSegments = DefaultMergeMinSegments
	}
	return mergePolicy{tierFactor: tierFactor, minSegments: minSegments}
}

func (p mergePolicy) tier(docCount uint64) int {
	if docCount < 1 {
		docCount = 1
	}
	return int(math.Log(float64(docCount)) / math.Log(p.tierFactor))
}

// plan returns the groups of segments to merge, each group at least
// minSegments strong and drawn from one tier.
func (p mergePolicy) plan(entries []SegmentEntry) [][]SegmentEntry {
	tiers := map[int][]SegmentEntry{}
	for _, e := range entries {
		t := p.tier(e.DocCount)
		tiers[t] = append(tiers[t], e)
	}

	keys := make([]int, 0, len(tiers))
	for t := range tiers {
		keys = append(keys, t)
	}
	sort.Ints(keys)

	var groups [][]SegmentEntry
	for _, t := range keys {
		if group := tiers[t]; len(group) >= p.minSegments {
			groups = append(groups, group)
		}
	}
	return groups
}
