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
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
)

// Reader is a point-in-time view of the index pinned to one TOC
// generation. Commits after open are invisible until Refresh.
type Reader struct {
	st     store.Store
	toc    TOC
	sch    *schema.Schema
	segs   []*segment.Reader
	moved  []bool
	logger logrus.FieldLogger
}

// OpenReader pins the latest committed generation. A never-committed index
// opens as generation zero with no segments. A nil schema falls back to the
// schema recorded in the TOC.
func OpenReader(st store.Store, sch *schema.Schema, logger logrus.FieldLogger) (*Reader, error) {
	if logger == nil {
		logger = logrus.New()
	}
	toc, ok, err := latestTOC(st)
	if err != nil {
		return nil, err
	}
	if !ok {
		toc = TOC{Schema: sch}
	}
	if sch == nil {
		sch = toc.Schema
	}

	r := &Reader{st: st, toc: toc, sch: sch, logger: logger}
	for _, entry := range toc.Segments {
		seg, err := segment.OpenAuto(st, entry.ID, sch, logger)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.segs = append(r.segs, seg)
		r.moved = append(r.moved, false)
	}
	return r, nil
}

func (r *Reader) Generation() uint64 {
	return r.toc.Generation
}

func (r *Reader) Schema() *schema.Schema {
	return r.sch
}

// Segments returns the pinned segment readers in TOC order, the order that
// defines the global doc ID space.
func (r *Reader) Segments() []*segment.Reader {
	return r.segs
}

// DocCount returns the number of live docs across all segments.
func (r *Reader) DocCount() uint64 {
	var n uint64
	for _, seg := range r.segs {
		n += seg.DocCount()
	}
	return n
}

// FieldLength returns the total token count of a field across all
// segments.
func (r *Reader) FieldLength(field string) uint64 {
	var n uint64
	for _, seg := range r.segs {
		n += seg.FieldLength(field)
	}
	return n
}

// Refresh returns a reader over the latest committed generation, adopting
// the current segment readers that are still live with an unchanged
// tombstone set. The receiver is invalidated either way, close it after.
func (r *Reader) Refresh() (*Reader, error) {
	toc, ok, err := latestTOC(r.st)
	if err != nil {
		return nil, err
	}
	if !ok || toc.Generation == r.toc.Generation {
		return r, nil
	}

	reuse := map[string]int{}
	for i, entry := range r.toc.Segments {
		if !r.moved[i] {
			reuse[entry.ID+"@"+deletionsTag(entry)] = i
		}
	}

	next := &Reader{st: r.st, toc: toc, sch: r.sch, logger: r.logger}
	for _, entry := range toc.Segments {
		if i, ok := reuse[entry.ID+"@"+deletionsTag(entry)]; ok {
			next.segs = append(next.segs, r.segs[i])
			next.moved = append(next.moved, false)
			r.moved[i] = true
			continue
		}
		seg, err := segment.OpenAuto(r.st, entry.ID, r.sch, r.logger)
		if err != nil {
			next.Close()
			return nil, err
		}
		next.segs = append(next.segs, seg)
		next.moved = append(next.moved, false)
	}
	return next, nil
}

func deletionsTag(entry SegmentEntry) string {
	return strconv.FormatUint(entry.DelGen, 10)
}

// Close releases all segment readers still owned by this view.
func (r *Reader) Close() error {
	var firstErr error
	for i, seg := range r.segs {
		if r.moved[i] {
			continue
		}
		if err := seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
