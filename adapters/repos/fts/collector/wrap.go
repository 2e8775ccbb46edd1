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

package collector

import (
	"time"

	"github.com/pkg/errors"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// Filter forwards only docs present in the allow set, keyed by global doc
// ID. The set is consulted lazily, one membership test per match.
type Filter struct {
	next  Collector
	allow *sroar.Bitmap
	base  uint64
}

func NewFilter(next Collector, allow *sroar.Bitmap) *Filter {
	return &Filter{next: next, allow: allow}
}

func (c *Filter) SetSegment(seg *segment.Reader, base uint64) {
	c.base = base
	c.next.SetSegment(seg, base)
}

func (c *Filter) Collect(doc uint64, score float64) error {
	if !c.allow.Contains(c.base + doc) {
		return nil
	}
	return c.next.Collect(doc, score)
}

func (c *Filter) Threshold() (float64, bool) { return c.next.Threshold() }
func (c *Filter) Results() []Hit             { return c.next.Results() }

// Mask drops docs present in the deny set, keyed by global doc ID.
type Mask struct {
	next Collector
	deny *sroar.Bitmap
	base uint64
}

func NewMask(next Collector, deny *sroar.Bitmap) *Mask {
	return &Mask{next: next, deny: deny}
}

func (c *Mask) SetSegment(seg *segment.Reader, base uint64) {
	c.base = base
	c.next.SetSegment(seg, base)
}

func (c *Mask) Collect(doc uint64, score float64) error {
	if c.deny.Contains(c.base + doc) {
		return nil
	}
	return c.next.Collect(doc, score)
}

func (c *Mask) Threshold() (float64, bool) { return c.next.Threshold() }
func (c *Mask) Results() []Hit             { return c.next.Results() }

// DefaultCheckInterval is how many collected postings pass between deadline
// checks of a TimeLimit collector.
const DefaultCheckInterval = 1024

// TimeLimit aborts collection once a soft deadline passes. The clock is
// polled every interval postings to keep the hot path cheap. On expiry the
// hits already collected below remain valid partial results.
type TimeLimit struct {
	next     Collector
	deadline time.Time
	interval int
	seen     int
}

func NewTimeLimit(next Collector, deadline time.Time, interval int) *TimeLimit {
	if interval < 1 {
		interval = DefaultCheckInterval
	}
	return &TimeLimit{next: next, deadline: deadline, interval: interval}
}

func (c *TimeLimit) SetSegment(seg *segment.Reader, base uint64) {
	c.next.SetSegment(seg, base)
}

func (c *TimeLimit) Collect(doc uint64, score float64) error {
	c.seen++
	if c.seen%c.interval == 0 && time.Now().After(c.deadline) {
		return errors.Wrap(fterrors.TimeLimit, "search deadline passed")
	}
	return c.next.Collect(doc, score)
}

func (c *TimeLimit) Threshold() (float64, bool) { return c.next.Threshold() }
func (c *TimeLimit) Results() []Hit             { return c.next.Results() }
