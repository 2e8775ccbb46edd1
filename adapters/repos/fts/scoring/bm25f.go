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

// Package scoring implements the ranking models driving match scores. The
// default is BM25F with per-field weights. Models hand out one scorer per
// (field, term) pair holding the precomputed idf, and separately provide the
// idf-free index-time block bound so stored impacts stay valid under any
// collection size.
package scoring

import (
	"math"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/terms"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
)

const (
	// DefaultK1 is the BM25 term frequency saturation parameter.
	DefaultK1 = 1.2
	// DefaultB is the BM25 length normalization parameter.
	DefaultB = 0.75
)

// TermStats carries the statistics a scorer needs. DocCount spans all
// searched segments, DocFreq counts the docs containing the term anywhere in
// them. AvgFieldLength is the average of the segment being scored.
type TermStats struct {
	DocCount       uint64
	DocFreq        uint64
	AvgFieldLength float64
}

// Model turns collection statistics into per-term scorers. UsesFinal
// declares a rescoring pass that can reorder results arbitrarily, which
// disables block-quality pruning.
type Model interface {
	TermScorer(field schema.Field, stats TermStats) terms.Scorer
	UsesFinal() bool
	Final(docID uint64, score float64) float64
}

// BM25F ranks with Okapi BM25 extended by per-field weights. A zero value
// scores with the standard k1/b defaults and weight 1 everywhere.
type BM25F struct {
	K1 float64
	B  float64
	// FieldWeights overrides the schema's per-field boost. Fields absent
	// from the map fall back to their schema boost.
	FieldWeights map[string]float64
}

// NewBM25F returns the model with default parameters.
func NewBM25F() *BM25F {
	return &BM25F{K1: DefaultK1, B: DefaultB}
}

func (m *BM25F) params() (k1, b float64) {
	k1, b = m.K1, m.B
	if k1 == 0 {
		k1 = DefaultK1
	}
	if b == 0 {
		b = DefaultB
	}
	return k1, b
}

func (m *BM25F) weight(field schema.Field) float64 {
	if w, ok := m.FieldWeights[field.Name]; ok {
		return w
	}
	if field.Boost != 0 {
		return field.Boost
	}
	return 1
}

// idf is the BM25 inverse document frequency with the +1 smoothing that
// keeps it positive for terms present in over half the collection.
func idf(docCount, docFreq uint64) float64 {
	n, df := float64(docCount), float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

// TermScorer returns the scorer for one term of one field. The idf is baked
// in here so the hot Score path is pure arithmetic.
func (m *BM25F) TermScorer(field schema.Field, stats TermStats) terms.Scorer {
	k1, b := m.params()
	avg := stats.AvgFieldLength
	if avg <= 0 {
		avg = 1
	}
	return &bm25Scorer{
		idf:    idf(stats.DocCount, stats.DocFreq),
		weight: m.weight(field),
		k1:     k1,
		b:      b,
		avg:    avg,
	}
}

func (m *BM25F) UsesFinal() bool { return false }

func (m *BM25F) Final(_ uint64, score float64) float64 { return score }

// BlockQuality returns the index-time impact bound for one field. It is the
// idf-free upper bound of the per-doc term score: at query time the scorer
// multiplies the stored impact by its idf to recover a true bound.
func (m *BM25F) BlockQuality(field schema.Field, avgFieldLength float64) postings.QualityFunc {
	k1, b := m.params()
	w := m.weight(field)
	avg := avgFieldLength
	if avg <= 0 {
		avg = 1
	}
	return func(maxFreq, minLength uint32) float64 {
		tf := float64(maxFreq)
		norm := k1 * (1 - b + b*float64(minLength)/avg)
		return w * tf * (k1 + 1) / (tf + norm)
	}
}

type bm25Scorer struct {
	idf    float64
	weight float64
	k1     float64
	b      float64
	avg    float64
}

func (s *bm25Scorer) Score(tf, length uint32) float64 {
	f := float64(tf)
	norm := s.k1 * (1 - s.b + s.b*float64(length)/s.avg)
	return s.idf * s.weight * f * (s.k1 + 1) / (f + norm)
}

func (s *bm25Scorer) Quality(impact float64) float64 {
	return s.idf * impact
}
