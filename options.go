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

package whoosh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/analysis"
)

// OpenOptions configure how an index directory is opened.
type OpenOptions struct {
	// ReadOnly rejects Writer construction on this handle.
	ReadOnly bool
	// LockTimeout bounds the wait for the write lock. Negative blocks
	// until the lock frees, zero fails immediately with Locked.
	LockTimeout time.Duration
	// MMap memory-maps segment files on the read path instead of
	// buffering them.
	MMap bool
	// Logger receives structured open/commit/search logs. Nil is quiet.
	Logger logrus.FieldLogger
	// Registerer receives the index metric vectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// WriterOptions configure an index writer obtained from Index.Writer.
type WriterOptions struct {
	// RAMLimitMB bounds the in-memory posting accumulator before partial
	// segments spill to sorted runs. Zero means unbounded.
	RAMLimitMB int
	// Procs bounds concurrent merges. Zero means one.
	Procs int
	// MergeTierFactor is the doc count ratio between merge tiers.
	MergeTierFactor float64
	// MergeMinSegments is the tier size that triggers a merge.
	MergeMinSegments int
	// Analyzer tokenizes text fields. Nil falls back to analysis.Simple.
	Analyzer analysis.Analyzer
	// Model supplies the index-time block impact bounds. Nil falls back
	// to BM25F with defaults. Stored bounds only prune searches ranked
	// by the same model.
	Model scoring.Model
}

// SearchOptions refine one Searcher.Search call.
type SearchOptions struct {
	// Model ranks matches. Nil falls back to BM25F with defaults.
	Model scoring.Model
	// Filter restricts hits to the given global doc IDs.
	Filter *sroar.Bitmap
	// Mask drops hits with the given global doc IDs.
	Mask *sroar.Bitmap
	// Deadline aborts collection with TimeLimit once passed. Zero means
	// no limit.
	Deadline time.Time
	// SortBy orders hits by a stored field instead of score. Pruning is
	// disabled, every match is visited.
	SortBy string
	// Reverse flips the sort order. Only consulted with SortBy.
	Reverse bool
	// ExpansionLimit bounds prefix/range/wildcard/fuzzy expansion per
	// segment. Zero uses the default.
	ExpansionLimit int
}
