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

	"github.com/sirupsen/logrus"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/terms"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/monitoring"
)

// Options configure one search run.
type Options struct {
	// Model ranks matches. Nil falls back to BM25F with defaults.
	Model scoring.Model
	// ExpansionLimit bounds multi-term expansion per segment. Zero uses
	// terms.DefaultExpansionLimit.
	ExpansionLimit int
	Logger         logrus.FieldLogger
	Metrics        *monitoring.Metrics
}

// Search compiles the query against every segment in the given order and
// streams live matches into the collector. The segment order determines the
// global doc ID space, callers must pass the same order across runs for
// stable results. Deleted docs never reach the collector. On a time limit
// the partial hits in the collector remain valid.
func Search(segs []*segment.Reader, q searchparams.Query, col Collector, opts Options) error {
	model := opts.Model
	if model == nil {
		model = scoring.NewBM25F()
	}
	start := time.Now()
	stats := &terms.Stats{}
	comp := newCompiler(segs, model, stats, opts.ExpansionLimit)

	var base uint64
	var err error
	for _, seg := range segs {
		if err = searchSegment(comp, seg, base, q, model, col); err != nil {
			break
		}
		base += seg.DocCountAll()
	}

	opts.Metrics.IncSearchesRun()
	opts.Metrics.AddBlocksSkipped(stats.BlocksSkipped)
	if opts.Logger != nil {
		opts.Logger.WithFields(logrus.Fields{
			"action":         "search",
			"segments":       len(segs),
			"blocks_skipped": stats.BlocksSkipped,
			"took":           time.Since(start),
		}).Debug("search completed")
	}
	return err
}

func searchSegment(comp *compiler, seg *segment.Reader, base uint64,
	q searchparams.Query, model scoring.Model, col Collector,
) error {
	m, err := comp.compile(seg, q)
	if err != nil {
		return err
	}
	col.SetSegment(seg, base)

	prune := !model.UsesFinal() && m.SupportsQuality()
	hasDeletions := seg.HasDeletions()
	for m.IsActive() {
		if prune {
			if min, ok := col.Threshold(); ok {
				if err := m.SkipToQuality(min); err != nil {
					return err
				}
				if !m.IsActive() {
					return nil
				}
			}
		}
		doc := m.ID()
		if !hasDeletions || !seg.IsDeleted(doc) {
			score := model.Final(base+doc, m.Score())
			if err := col.Collect(doc, score); err != nil {
				return err
			}
		}
		if err := m.Next(); err != nil {
			return err
		}
	}
	return nil
}
