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

package scoring

import (
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/terms"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
)

// Rescored wraps a model with a final per-doc rescoring function. Because
// the function can reorder results arbitrarily, a rescored model reports
// UsesFinal and thereby turns off block-quality pruning in the collector.
type Rescored struct {
	Base    Model
	Rescore func(docID uint64, score float64) float64
}

// WithFinal attaches a rescorer to a base model.
func WithFinal(base Model, rescore func(docID uint64, score float64) float64) *Rescored {
	return &Rescored{Base: base, Rescore: rescore}
}

func (m *Rescored) TermScorer(field schema.Field, stats TermStats) terms.Scorer {
	return m.Base.TermScorer(field, stats)
}

func (m *Rescored) UsesFinal() bool { return true }

func (m *Rescored) Final(docID uint64, score float64) float64 {
	return m.Rescore(docID, m.Base.Final(docID, score))
}
