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

// Package terms implements the matcher algebra a search runs on: per-term
// block cursors over one segment plus the boolean, phrase and expansion
// composites. Matchers enumerate local doc IDs in strictly increasing order
// and carry the block-quality bounds the collector prunes with.
package terms

// Matcher is a positioned cursor over the docs matching some (sub)query
// within one segment.
//
// ID is only valid while IsActive reports true and never decreases across
// Next and SkipTo calls. The quality methods expose score upper bounds:
// MaxQuality over the whole matcher, BlockQuality over the current posting
// block. SkipToQuality advances past entire blocks whose bound is at most
// min, it never skips a doc that could score higher.
type Matcher interface {
	IsActive() bool
	ID() uint64
	Next() error
	SkipTo(target uint64) error

	// Weight is the score-independent weight of the current posting,
	// usually the term frequency times the query boost.
	Weight() float64
	Score() float64

	SupportsQuality() bool
	MaxQuality() float64
	BlockQuality() float64
	SkipToQuality(min float64) error

	// Copy returns an independently positioned clone.
	Copy() Matcher
}

// Scorer turns one term's posting statistics into scores. Bound to a
// (field, term) pair with the collection statistics baked in, so matchers
// stay scorer-agnostic.
type Scorer interface {
	// Score scores one posting from its term frequency and the doc's
	// bucketed field length.
	Score(tf uint32, length uint32) float64
	// Quality converts an index-time impact bound into a query-time score
	// bound, applying the per-term factors the index could not know.
	Quality(impact float64) float64
}

// Stats counts pruning work during one search. Not safe for concurrent use,
// each per-segment search keeps its own.
type Stats struct {
	BlocksSkipped int
}

// Empty is the matcher of queries that cannot match, such as a term absent
// from the segment.
type Empty struct{}

func (Empty) IsActive() bool              { return false }
func (Empty) ID() uint64                  { return 0 }
func (Empty) Next() error                 { return nil }
func (Empty) SkipTo(uint64) error         { return nil }
func (Empty) Weight() float64             { return 0 }
func (Empty) Score() float64              { return 0 }
func (Empty) SupportsQuality() bool       { return true }
func (Empty) MaxQuality() float64         { return 0 }
func (Empty) BlockQuality() float64       { return 0 }
func (Empty) SkipToQuality(float64) error { return nil }
func (Empty) Copy() Matcher               { return Empty{} }
