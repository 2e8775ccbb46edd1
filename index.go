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

// Package whoosh is a segmented full-text index: immutable segments built by
// a buffering writer, published through an atomically renamed table of
// contents, searched by pinned point-in-time readers with BM25F ranking and
// block-quality pruning.
package whoosh

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/index"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/monitoring"
)

// Index is a handle on one index directory. It carries no open files itself,
// writers and searchers are created from it and closed independently.
type Index struct {
	st      store.Store
	sch     *schema.Schema
	opts    OpenOptions
	logger  logrus.FieldLogger
	metrics *monitoring.Metrics
}

// Create initializes a new index with the given schema in dir and returns a
// handle on it. The directory must not already hold an index.
func Create(dir string, sch *schema.Schema, opts OpenOptions) (*Index, error) {
	st, err := openFS(dir, opts)
	if err != nil {
		return nil, err
	}
	return CreateIn(st, sch, opts)
}

// CreateIn initializes a new index on an arbitrary store, for example an
// in-memory one.
func CreateIn(st store.Store, sch *schema.Schema, opts OpenOptions) (*Index, error) {
	if sch == nil || sch.Len() == 0 {
		return nil, errors.Wrap(fterrors.SchemaMismatch, "create needs a schema")
	}
	if _, found, err := index.Latest(st); err != nil {
		return nil, err
	} else if found {
		return nil, errors.New("index already exists")
	}
	if err := index.Init(st, sch); err != nil {
		return nil, err
	}
	return newIndex(st, sch, opts), nil
}

// Open opens an existing index in dir, reading the schema from the latest
// committed generation.
func Open(dir string, opts OpenOptions) (*Index, error) {
	st, err := openFS(dir, opts)
	if err != nil {
		return nil, err
	}
	return OpenIn(st, opts)
}

// OpenIn opens an existing index on an arbitrary store.
func OpenIn(st store.Store, opts OpenOptions) (*Index, error) {
	toc, found, err := index.Latest(st)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrap(fterrors.NotFound, "no index in store")
	}
	return newIndex(st, toc.Schema, opts), nil
}

func openFS(dir string, opts OpenOptions) (store.Store, error) {
	var fsOpts []store.FSOption
	if opts.MMap {
		fsOpts = append(fsOpts, store.WithMMap())
	}
	return store.NewFS(dir, fsOpts...)
}

func newIndex(st store.Store, sch *schema.Schema, opts OpenOptions) *Index {
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Index{
		st:      st,
		sch:     sch,
		opts:    opts,
		logger:  logger,
		metrics: monitoring.New(opts.Registerer),
	}
}

// Schema returns the schema the index was created or opened with.
func (ix *Index) Schema() *schema.Schema {
	return ix.sch
}

// Store exposes the underlying storage, mainly for tests and tooling.
func (ix *Index) Store() store.Store {
	return ix.st
}

// Writer acquires the index write lock and returns the writer coordinator.
// At most one writer exists per index across processes.
func (ix *Index) Writer(opts WriterOptions) (*index.Writer, error) {
	if ix.opts.ReadOnly {
		return nil, errors.Wrap(fterrors.ReadOnly, "index opened read-only")
	}
	model := opts.Model
	if model == nil {
		model = scoring.NewBM25F()
	}
	quality, _ := model.(segment.QualityProvider)
	return index.NewWriter(ix.st, ix.sch, index.WriterOptions{
		RAMLimit:         opts.RAMLimitMB << 20,
		Analyzer:         opts.Analyzer,
		Quality:          quality,
		MergeTierFactor:  opts.MergeTierFactor,
		MergeMinSegments: opts.MergeMinSegments,
		Procs:            opts.Procs,
		LockTimeout:      ix.opts.LockTimeout,
		Logger:           ix.logger,
		Metrics:          ix.metrics,
	})
}

// Searcher pins the latest committed generation for searching. The searcher
// owns its readers, close it when done.
func (ix *Index) Searcher() (*Searcher, error) {
	r, err := index.OpenReader(ix.st, ix.sch, ix.logger)
	if err != nil {
		return nil, err
	}
	return &Searcher{ix: ix, r: r}, nil
}
