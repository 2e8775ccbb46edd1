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

// Package collector drives compiled matchers over an ordered segment list
// and accumulates hits. The core collector is a bounded top-K heap whose
// minimum doubles as the block-pruning threshold. Filtering, masking, time
// limits and field sorting compose as collector wrappers.
package collector

import (
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
)

// Hit is one collected document.
type Hit struct {
	// Segment is the id of the segment the doc lives in.
	Segment string
	// Doc is the segment-local doc ID.
	Doc uint64
	// Global is the doc's offset position in the searched segment list,
	// unique across one search.
	Global uint64
	// Score is the final score, after the model's rescorer if any.
	Score float64
}

// Collector consumes matches segment by segment. SetSegment announces the
// segment subsequent Collect calls refer to along with its global doc
// offset. Threshold reports the current pruning bound; ok is false while
// the collector cannot prune.
type Collector interface {
	SetSegment(seg *segment.Reader, base uint64)
	Collect(doc uint64, score float64) error
	Threshold() (float64, bool)
	Results() []Hit
}
