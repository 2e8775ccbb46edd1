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
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"
	"golang.org/x/sync/errgroup"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/collector"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/analysis"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/monitoring"
)

// LockName is the advisory lock serializing writers on one index.
const LockName = "write.lock"

const lockPollInterval = 25 * time.Millisecond

// WriterOptions configure the index writer coordinator.
type WriterOptions struct {
	// RAMLimit bounds the in-memory posting accumulator in bytes before a
	// partial segment is spilled to a sorted run. Zero means unbounded.
	RAMLimit int
	Analyzer analysis.Analyzer
	// Quality computes index-time block impact bounds, normally the
	// ranking model.
	Quality segment.QualityProvider
	// MergeTierFactor is the doc count ratio between merge tiers.
	MergeTierFactor float64
	// MergeMinSegments is the tier size that triggers a merge.
	MergeMinSegments int
	// Procs bounds how many merges run concurrently. Zero means one.
	Procs int
	// LockTimeout bounds the wait for the write lock. Negative blocks
	// until the lock frees, zero fails immediately with Locked.
	LockTimeout time.Duration
	Logger      logrus.FieldLogger
	Metrics     *monitoring.Metrics
}

// pendingDelete is one buffered deletion, applied to tombstones at commit.
// Exactly one of term or query is set. before is the buffered segment's doc
// watermark at delete time: docs added later are not affected, which is
// what makes update (delete then add) keep its own new doc.
type pendingDelete struct {
	field  string
	term   []byte
	query  searchparams.Query
	before uint64
}

// Writer coordinates commits on one index. It holds the index write lock
// from construction until Close, serializing writers across processes.
// Not safe for concurrent use by multiple goroutines.
type Writer struct {
	mu      sync.Mutex
	st      store.Store
	sch     *schema.Schema
	opts    WriterOptions
	policy  mergePolicy
	release func() error

	toc     TOC
	seg     *segment.Writer
	deletes []pendingDelete
	closed  bool
}

// NewWriter acquires the write lock and positions the coordinator on the
// latest committed generation. The given schema must be the committed
// schema or a valid extension of it.
func NewWriter(st store.Store, sch *schema.Schema, opts WriterOptions) (*Writer, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.Simple{}
	}

	release, err := acquireLock(st, opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			release()
		}
	}()

	toc, found, err := latestTOC(st)
	if err != nil {
		return nil, err
	}
	if !found {
		toc = TOC{Schema: sch}
	} else if err := toc.Schema.ExtendedBy(sch); err != nil {
		return nil, err
	}
	toc.Schema = sch

	ok = true
	return &Writer{
		st:      st,
		sch:     sch,
		opts:    opts,
		policy:  newMergePolicy(opts.MergeTierFactor, opts.MergeMinSegments),
		release: release,
		toc:     toc,
	}, nil
}

func acquireLock(st store.Store, timeout time.Duration) (func() error, error) {
	if timeout < 0 {
		return st.Lock(LockName)
	}
	deadline := time.Now().Add(timeout)
	for {
		release, err := st.TryLock(LockName)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, fterrors.Locked) || !time.Now().Before(deadline) {
			return nil, err
		}
		time.Sleep(lockPollInterval)
	}
}

// Generation returns the last committed generation.
func (w *Writer) Generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.toc.Generation
}

// BufferedDocs returns how many docs wait in the open segment buffer.
func (w *Writer) BufferedDocs() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seg == nil {
		return 0
	}
	return w.seg.NumDocs()
}

func (w *Writer) segWriter() *segment.Writer {
	if w.seg == nil {
		w.seg = segment.NewWriter(w.st, w.sch, segment.NewID(), segment.WriterOptions{
			RAMLimit: w.opts.RAMLimit,
			Analyzer: w.opts.Analyzer,
			Quality:  w.opts.Quality,
			Logger:   w.opts.Logger,
			Metrics:  w.opts.Metrics,
		})
	}
	return w.seg
}

// AddDocument buffers one document for the next commit.
func (w *Writer) AddDocument(doc map[string]storobj.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}
	_, err := w.segWriter().AddDocument(doc)
	return err
}

// UpdateDocument tombstones every prior doc sharing any of the new doc's
// unique field values, then buffers the new doc.
func (w *Writer) UpdateDocument(doc map[string]storobj.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}

	unique := w.sch.UniqueFields()
	if len(unique) == 0 {
		return errors.Wrap(fterrors.SchemaMismatch,
			"update needs a schema with a unique field")
	}
	for _, name := range unique {
		v, ok := doc[name]
		if !ok {
			continue
		}
		f, _ := w.sch.Field(name)
		term, err := uniqueTerm(f, v)
		if err != nil {
			return err
		}
		w.bufferDelete(pendingDelete{field: name, term: term})
	}
	_, err := w.segWriter().AddDocument(doc)
	return err
}

// uniqueTerm converts a unique field value into the exact term its postings
// were indexed under.
func uniqueTerm(f schema.Field, v storobj.Value) ([]byte, error) {
	switch f.Type {
	case schema.FieldTypeNumeric:
		return segment.NumericTerm(v)
	default:
		return segment.IDTerm(v)
	}
}

// DeleteByTerm tombstones every doc containing the exact term at commit.
func (w *Writer) DeleteByTerm(field string, term []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}
	if _, ok := w.sch.Field(field); !ok {
		return errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	w.bufferDelete(pendingDelete{field: field, term: append([]byte{}, term...)})
	return nil
}

// DeleteByQuery tombstones every committed doc the query matches. Docs
// still in the uncommitted buffer are not considered.
func (w *Writer) DeleteByQuery(q searchparams.Query) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}
	w.bufferDelete(pendingDelete{query: q})
	return nil
}

func (w *Writer) bufferDelete(del pendingDelete) {
	if w.seg != nil {
		del.before = w.seg.NumDocs()
	}
	w.deletes = append(w.deletes, del)
}

// Commit publishes the buffered docs and deletions as a new generation,
// then applies the merge policy. Returns the committed generation.
func (w *Writer) Commit() (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}
	if (w.seg == nil || w.seg.NumDocs() == 0) && len(w.deletes) == 0 {
		if w.seg != nil {
			w.seg.Abort()
			w.seg = nil
		}
		return w.toc.Generation, nil
	}

	start := time.Now()
	gen := w.toc.Generation + 1

	entries := append([]SegmentEntry{}, w.toc.Segments...)
	newSegID := ""
	if w.seg != nil && w.seg.NumDocs() > 0 {
		hdr, err := w.seg.Finish()
		if err != nil {
			w.seg.Abort()
			w.seg = nil
			return 0, err
		}
		newSegID = hdr.ID
		entries = append(entries, SegmentEntry{
			ID:         hdr.ID,
			Generation: gen,
			DocCount:   hdr.DocCount,
		})
	} else if w.seg != nil {
		w.seg.Abort()
	}
	w.seg = nil

	if err := w.applyDeletes(entries, newSegID); err != nil {
		w.rollbackSegment(newSegID)
		return 0, err
	}

	toc := TOC{Generation: gen, Schema: w.sch, Segments: entries}
	if err := writeTOC(w.st, toc); err != nil {
		w.rollbackSegment(newSegID)
		return 0, err
	}
	w.toc = toc
	w.deletes = nil
	w.cleanup()

	w.opts.Metrics.ObserveCommitDuration(time.Since(start).Seconds())
	w.opts.Logger.WithFields(logrus.Fields{
		"action":     "index_commit",
		"generation": gen,
		"segments":   len(entries),
		"took":       time.Since(start),
	}).Debug("committed index generation")

	if err := w.maybeMerge(); err != nil {
		return 0, err
	}
	return w.toc.Generation, nil
}

func (w *Writer) rollbackSegment(id string) {
	if id == "" {
		return
	}
	for _, name := range segment.Files(id) {
		w.st.Delete(name)
	}
}

// applyDeletes resolves the buffered deletions into per-segment tombstone
// sets and rewrites the affected .del files. Term deletes on the freshly
// flushed segment respect their buffer watermark.
func (w *Writer) applyDeletes(entries []SegmentEntry, newSegID string) error {
	if len(w.deletes) == 0 {
		return nil
	}
	tombstoned := 0
	for i := range entries {
		entry := &entries[i]
		r, err := segment.OpenAuto(w.st, entry.ID, w.sch, w.opts.Logger)
		if err != nil {
			return err
		}
		matched, err := w.matchDeletes(r, entry.ID == newSegID)
		if err != nil {
			r.Close()
			return err
		}
		if matched == nil {
			r.Close()
			continue
		}
		added := matched.GetCardinality()
		if existing := r.Deleted(); existing != nil {
			before := existing.GetCardinality()
			matched.Or(existing)
			added = matched.GetCardinality() - before
		}
		r.Close()
		if added == 0 {
			continue
		}
		if err := segment.WriteDeletions(w.st, entry.ID, matched); err != nil {
			return err
		}
		entry.DelGen++
		tombstoned += added
	}
	w.opts.Metrics.AddTombstonesSet(tombstoned)
	return nil
}

// matchDeletes returns the doc set of one segment hit by the buffered
// deletions, nil when nothing matches.
func (w *Writer) matchDeletes(r *segment.Reader, isNew bool) (*sroar.Bitmap, error) {
	var matched *sroar.Bitmap
	add := func(docs []uint64, limit uint64, bounded bool) {
		for _, doc := range docs {
			if bounded && doc >= limit {
				continue
			}
			if matched == nil {
				matched = sroar.NewBitmap()
			}
			matched.Set(doc)
		}
	}

	for _, del := range w.deletes {
		if del.query != nil {
			if isNew {
				// query deletes predate every buffered doc
				continue
			}
			docs, err := docsMatchingQuery(r, del.query)
			if err != nil {
				return nil, err
			}
			add(docs, 0, false)
			continue
		}
		docs, err := r.DocsWithTerm(del.field, del.term)
		if err != nil {
			return nil, err
		}
		add(docs, del.before, isNew)
	}
	return matched, nil
}

// allDocsCollector gathers every matched local doc of a single-segment
// search.
type allDocsCollector struct {
	docs []uint64
}

func (c *allDocsCollector) SetSegment(*segment.Reader, uint64) {}
func (c *allDocsCollector) Threshold() (float64, bool)         { return 0, false }
func (c *allDocsCollector) Results() []collector.Hit           { return nil }

func (c *allDocsCollector) Collect(doc uint64, _ float64) error {
	c.docs = append(c.docs, doc)
	return nil
}

func docsMatchingQuery(r *segment.Reader, q searchparams.Query) ([]uint64, error) {
	col := &allDocsCollector{}
	err := collector.Search([]*segment.Reader{r}, q, col, collector.Options{})
	if err != nil {
		return nil, err
	}
	return col.docs, nil
}

// maybeMerge applies the tiered merge policy and commits the merged layout
// as a fresh generation. Independent groups merge concurrently, bounded by
// Procs.
func (w *Writer) maybeMerge() error {
	groups := w.policy.plan(w.toc.Segments)
	if len(groups) == 0 {
		return nil
	}
	return w.mergeGroups(groups, false)
}

// Optimize merges all segments into one compound segment and drops every
// tombstone on the way. Also reclaims any orphaned files of earlier
// crashed commits.
func (w *Writer) Optimize() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.Wrap(fterrors.ReadOnly, "index writer closed")
	}
	if len(w.toc.Segments) == 0 {
		w.cleanup()
		return nil
	}
	group := append([]SegmentEntry{}, w.toc.Segments...)
	return w.mergeGroups([][]SegmentEntry{group}, true)
}

func (w *Writer) mergeGroups(groups [][]SegmentEntry, compound bool) error {
	gen := w.toc.Generation + 1
	merged := make([]SegmentEntry, len(groups))

	eg := errgroup.Group{}
	procs := w.opts.Procs
	if procs < 1 {
		procs = 1
	}
	eg.SetLimit(procs)

	for i, group := range groups {
		i, group := i, group
		eg.Go(func() error {
			entry, err := w.mergeGroup(group, gen, compound)
			if err != nil {
				return err
			}
			merged[i] = entry
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		for _, entry := range merged {
			w.rollbackSegment(entry.ID)
		}
		return err
	}

	dropped := map[string]bool{}
	for _, group := range groups {
		for _, entry := range group {
			dropped[entry.ID] = true
		}
	}
	var entries []SegmentEntry
	for _, entry := range w.toc.Segments {
		if !dropped[entry.ID] {
			entries = append(entries, entry)
		}
	}
	entries = append(entries, merged...)

	toc := TOC{Generation: gen, Schema: w.sch, Segments: entries}
	if err := writeTOC(w.st, toc); err != nil {
		for _, entry := range merged {
			w.rollbackSegment(entry.ID)
		}
		return err
	}
	w.toc = toc
	w.cleanup()
	return nil
}

func (w *Writer) mergeGroup(group []SegmentEntry, gen uint64, compound bool) (SegmentEntry, error) {
	sources := make([]*segment.Reader, 0, len(group))
	defer func() {
		for _, r := range sources {
			r.Close()
		}
	}()
	for _, entry := range group {
		r, err := segment.OpenAuto(w.st, entry.ID, w.sch, w.opts.Logger)
		if err != nil {
			return SegmentEntry{}, err
		}
		sources = append(sources, r)
	}

	id := segment.NewID()
	hdr, err := segment.Merge(w.st, id, sources, w.sch, segment.MergeOptions{
		Quality: w.opts.Quality,
		Logger:  w.opts.Logger,
		Metrics: w.opts.Metrics,
	})
	if err != nil {
		return SegmentEntry{}, err
	}
	if compound {
		if err := segment.WriteCompound(w.st, id); err != nil {
			w.rollbackSegment(id)
			return SegmentEntry{}, err
		}
	}
	return SegmentEntry{ID: id, Generation: gen, DocCount: hdr.DocCount}, nil
}

// cleanup removes files no live generation references: older TOCs, commit
// leftovers and the files of merged-away segments. Best effort, a failed
// delete is retried by the next cleanup.
func (w *Writer) cleanup() {
	names, err := w.st.List()
	if err != nil {
		return
	}
	live := map[string]bool{TOCName(w.toc.Generation): true, LockName: true}
	for _, entry := range w.toc.Segments {
		for _, name := range segment.Files(entry.ID) {
			live[name] = true
		}
	}
	for _, name := range names {
		if live[name] {
			continue
		}
		if gen, ok := parseTOCName(name); ok {
			if gen < w.toc.Generation {
				w.st.Delete(name)
			}
			continue
		}
		if hasSegmentSuffix(name) || strings.HasSuffix(name, ".tmp") {
			w.st.Delete(name)
		}
	}
}

var segmentSuffixes = []string{
	".trm", ".pst", ".stv", ".fln", ".vps", ".del", ".blm", ".cmp", ".run",
}

func hasSegmentSuffix(name string) bool {
	for _, suffix := range segmentSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Close aborts any buffered docs and releases the write lock. Buffered but
// uncommitted work is discarded.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.seg != nil {
		w.seg.Abort()
		w.seg = nil
	}
	return w.release()
}
