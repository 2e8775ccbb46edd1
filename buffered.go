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
	"bytes"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/collector"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/index"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

const (
	// DefaultFlushDocs is the mutation count that triggers a transparent
	// commit.
	DefaultFlushDocs = 1000
)

// BufferedWriterOptions configure a BufferedWriter.
type BufferedWriterOptions struct {
	Writer WriterOptions
	// FlushDocs commits after this many buffered mutations. Zero uses
	// DefaultFlushDocs.
	FlushDocs int
	// FlushInterval commits a dirty buffer in the background at this
	// cadence. Zero disables time-based flushing.
	FlushInterval time.Duration
}

type delTerm struct {
	field string
	term  []byte
}

// BufferedWriter batches mutations over a size and time window and commits
// transparently. Searcher unions the committed snapshot with the buffer, so
// added docs are searchable before their commit. Safe for concurrent use.
type BufferedWriter struct {
	ix    *Index
	opts  BufferedWriterOptions
	model scoring.Model

	mu         sync.Mutex
	w          *index.Writer
	docs       []map[string]storobj.Value
	delTerms   []delTerm
	delQueries []searchparams.Query
	ops        int
	closed     bool
	done       chan struct{}
}

// NewBufferedWriter acquires the index write lock and starts the background
// flusher when an interval is configured.
func NewBufferedWriter(ix *Index, opts BufferedWriterOptions) (*BufferedWriter, error) {
	w, err := ix.Writer(opts.Writer)
	if err != nil {
		return nil, err
	}
	if opts.FlushDocs < 1 {
		opts.FlushDocs = DefaultFlushDocs
	}
	model := opts.Writer.Model
	if model == nil {
		model = scoring.NewBM25F()
	}
	b := &BufferedWriter{
		ix:    ix,
		opts:  opts,
		model: model,
		w:     w,
		done:  make(chan struct{}),
	}
	if opts.FlushInterval > 0 {
		go b.flushLoop(opts.FlushInterval)
	}
	return b, nil
}

func (b *BufferedWriter) flushLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.ix.logger.WithError(err).
					WithField("action", "buffered_flush").
					Error("background commit failed")
			}
		}
	}
}

// AddDocument buffers one document. It becomes searchable through Searcher
// immediately and durable at the next flush.
func (b *BufferedWriter) AddDocument(doc map[string]storobj.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}
	if err := b.w.AddDocument(doc); err != nil {
		return err
	}
	b.docs = append(b.docs, doc)
	b.ops++
	return b.maybeFlushLocked()
}

// UpdateDocument supersedes every doc sharing any of the new doc's unique
// field values, buffered or committed, then buffers the new doc.
func (b *BufferedWriter) UpdateDocument(doc map[string]storobj.Value) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}
	terms, err := uniqueTerms(b.ix.sch, doc)
	if err != nil {
		return err
	}
	if err := b.w.UpdateDocument(doc); err != nil {
		return err
	}
	b.dropBuffered(terms)
	b.delTerms = append(b.delTerms, terms...)
	b.docs = append(b.docs, doc)
	b.ops++
	return b.maybeFlushLocked()
}

// DeleteByTerm tombstones every doc containing the exact term.
func (b *BufferedWriter) DeleteByTerm(field string, term []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}
	if err := b.w.DeleteByTerm(field, term); err != nil {
		return err
	}
	del := delTerm{field: field, term: append([]byte{}, term...)}
	b.dropBuffered([]delTerm{del})
	b.delTerms = append(b.delTerms, del)
	b.ops++
	return b.maybeFlushLocked()
}

// DeleteByQuery tombstones every committed doc the query matches. Docs still
// in the buffer are not considered.
func (b *BufferedWriter) DeleteByQuery(q searchparams.Query) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}
	if err := b.w.DeleteByQuery(q); err != nil {
		return err
	}
	b.delQueries = append(b.delQueries, q)
	b.ops++
	return b.maybeFlushLocked()
}

// uniqueTerms returns the delete terms of every unique field present in doc.
func uniqueTerms(sch *schema.Schema, doc map[string]storobj.Value) ([]delTerm, error) {
	var out []delTerm
	for _, name := range sch.UniqueFields() {
		v, ok := doc[name]
		if !ok {
			continue
		}
		f, _ := sch.Field(name)
		term, err := fieldTerm(f, v)
		if err != nil {
			return nil, err
		}
		out = append(out, delTerm{field: name, term: term})
	}
	return out, nil
}

func fieldTerm(f schema.Field, v storobj.Value) ([]byte, error) {
	if f.Type == schema.FieldTypeNumeric {
		return segment.NumericTerm(v)
	}
	return segment.IDTerm(v)
}

// dropBuffered removes buffered docs matched by any of the delete terms, so
// the union view never surfaces a superseded buffered version.
func (b *BufferedWriter) dropBuffered(terms []delTerm) {
	if len(terms) == 0 || len(b.docs) == 0 {
		return
	}
	kept := b.docs[:0]
	for _, doc := range b.docs {
		if !docMatchesAny(b.ix.sch, doc, terms) {
			kept = append(kept, doc)
		}
	}
	b.docs = kept
}

func docMatchesAny(sch *schema.Schema, doc map[string]storobj.Value, terms []delTerm) bool {
	for _, dt := range terms {
		v, ok := doc[dt.field]
		if !ok {
			continue
		}
		f, _ := sch.Field(dt.field)
		term, err := fieldTerm(f, v)
		if err != nil {
			continue
		}
		if bytes.Equal(term, dt.term) {
			return true
		}
	}
	return false
}

func (b *BufferedWriter) maybeFlushLocked() error {
	if b.ops < b.opts.FlushDocs {
		return nil
	}
	return b.flushLocked()
}

// Flush commits the buffered mutations now.
func (b *BufferedWriter) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}
	return b.flushLocked()
}

func (b *BufferedWriter) flushLocked() error {
	if b.ops == 0 {
		return nil
	}
	if _, err := b.w.Commit(); err != nil {
		return err
	}
	b.docs = nil
	b.delTerms = nil
	b.delQueries = nil
	b.ops = 0
	return nil
}

// Searcher returns a view unioning the latest committed snapshot with the
// current buffer. Committed docs superseded by buffered updates and deletes
// are masked out.
func (b *BufferedWriter) Searcher() (*Searcher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.Wrap(fterrors.ReadOnly, "buffered writer closed")
	}

	r, err := index.OpenReader(b.ix.st, b.ix.sch, b.ix.logger)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	var extra []*segment.Reader
	if len(b.docs) > 0 {
		seg, err := b.bufferSegment()
		if err != nil {
			return nil, err
		}
		extra = append(extra, seg)
	}

	deny, err := b.denySet(r)
	if err != nil {
		for _, seg := range extra {
			seg.Close()
		}
		return nil, err
	}

	ok = true
	return &Searcher{ix: b.ix, r: r, extra: extra, deny: deny}, nil
}

// bufferSegment replays the buffered docs into a throwaway in-memory
// segment.
func (b *BufferedWriter) bufferSegment() (*segment.Reader, error) {
	mem := store.NewMem()
	quality, _ := b.model.(segment.QualityProvider)
	sw := segment.NewWriter(mem, b.ix.sch, segment.NewID(), segment.WriterOptions{
		Analyzer: b.opts.Writer.Analyzer,
		Quality:  quality,
		Logger:   b.ix.logger,
	})
	for _, doc := range b.docs {
		if _, err := sw.AddDocument(doc); err != nil {
			sw.Abort()
			return nil, err
		}
	}
	hdr, err := sw.Finish()
	if err != nil {
		return nil, err
	}
	return segment.Open(mem, hdr.ID, b.ix.sch, b.ix.logger)
}

// denySet resolves the buffered deletes against the committed segments into
// one global doc set.
func (b *BufferedWriter) denySet(r *index.Reader) (*sroar.Bitmap, error) {
	if len(b.delTerms) == 0 && len(b.delQueries) == 0 {
		return nil, nil
	}
	deny := sroar.NewBitmap()

	base := uint64(0)
	for _, seg := range r.Segments() {
		for _, dt := range b.delTerms {
			docs, err := seg.DocsWithTerm(dt.field, dt.term)
			if err != nil {
				return nil, err
			}
			for _, doc := range docs {
				deny.Set(base + doc)
			}
		}
		base += seg.DocCountAll()
	}

	for _, q := range b.delQueries {
		col := &everyDoc{docs: deny}
		err := collector.Search(r.Segments(), q, col, collector.Options{
			Model:   b.model,
			Logger:  b.ix.logger,
			Metrics: b.ix.metrics,
		})
		if err != nil {
			return nil, err
		}
	}
	if deny.IsEmpty() {
		return nil, nil
	}
	return deny, nil
}

// everyDoc gathers every matched doc as a global ID.
type everyDoc struct {
	base uint64
	docs *sroar.Bitmap
}

func (c *everyDoc) SetSegment(_ *segment.Reader, base uint64) { c.base = base }
func (c *everyDoc) Threshold() (float64, bool)                { return 0, false }
func (c *everyDoc) Results() []collector.Hit                  { return nil }

func (c *everyDoc) Collect(doc uint64, _ float64) error {
	c.docs.Set(c.base + doc)
	return nil
}

// Close flushes the buffer, stops the background flusher and releases the
// write lock.
func (b *BufferedWriter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	err := b.flushLocked()
	if cerr := b.w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
