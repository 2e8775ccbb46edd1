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
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/collector"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/index"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

// Hit is one search result with its stored fields resolved.
type Hit struct {
	// Doc is the global doc ID within the searched snapshot. It is only
	// stable for the lifetime of this searcher.
	Doc    uint64
	Score  float64
	Fields map[string]storobj.Value
}

// Searcher is a point-in-time view for querying. It pins one committed
// generation, optionally extended by the in-memory buffer of a
// BufferedWriter.
type Searcher struct {
	ix    *Index
	r     *index.Reader
	extra []*segment.Reader
	// deny masks committed docs superseded by buffered updates and
	// deletes, keyed by global doc ID.
	deny *sroar.Bitmap
}

func (s *Searcher) segments() []*segment.Reader {
	segs := s.r.Segments()
	if len(s.extra) == 0 {
		return segs
	}
	return append(append([]*segment.Reader{}, segs...), s.extra...)
}

// Generation returns the pinned committed generation.
func (s *Searcher) Generation() uint64 {
	return s.r.Generation()
}

// DocCount returns the number of live docs in this view.
func (s *Searcher) DocCount() uint64 {
	n := s.r.DocCount()
	for _, seg := range s.extra {
		n += seg.DocCount()
	}
	if s.deny != nil {
		n -= uint64(s.deny.GetCardinality())
	}
	return n
}

// FieldLength returns the total token count of a field across this view.
func (s *Searcher) FieldLength(field string) uint64 {
	n := s.r.FieldLength(field)
	for _, seg := range s.extra {
		n += seg.FieldLength(field)
	}
	return n
}

// Search ranks the best limit matches of q with the default model.
func (s *Searcher) Search(q searchparams.Query, limit int) ([]Hit, error) {
	return s.SearchWith(q, limit, SearchOptions{})
}

// SearchWith ranks the best limit matches of q under the given options.
func (s *Searcher) SearchWith(q searchparams.Query, limit int, opts SearchOptions) ([]Hit, error) {
	var col collector.Collector
	if opts.SortBy != "" {
		col = collector.NewSortByField(opts.SortBy, limit, opts.Reverse)
	} else {
		col = collector.NewTopK(limit)
	}
	if opts.Filter != nil {
		col = collector.NewFilter(col, opts.Filter)
	}
	deny := opts.Mask
	if s.deny != nil {
		if deny == nil {
			deny = s.deny
		} else {
			deny = deny.Clone()
			deny.Or(s.deny)
		}
	}
	if deny != nil {
		col = collector.NewMask(col, deny)
	}
	if !opts.Deadline.IsZero() {
		col = collector.NewTimeLimit(col, opts.Deadline, 0)
	}

	segs := s.segments()
	err := collector.Search(segs, q, col, collector.Options{
		Model:          opts.Model,
		ExpansionLimit: opts.ExpansionLimit,
		Logger:         s.ix.logger,
		Metrics:        s.ix.metrics,
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*segment.Reader, len(segs))
	for _, seg := range segs {
		byID[seg.ID()] = seg
	}
	var hits []Hit
	for _, h := range col.Results() {
		fields, err := byID[h.Segment].StoredFields(h.Doc)
		if err != nil {
			return nil, err
		}
		hits = append(hits, Hit{Doc: h.Global, Score: h.Score, Fields: fields})
	}
	return hits, nil
}

// Refresh swaps to the latest committed generation, reusing unchanged
// segment readers. Only plain searchers refresh, a buffered view is
// recreated from its writer instead.
func (s *Searcher) Refresh() error {
	if len(s.extra) > 0 {
		return nil
	}
	next, err := s.r.Refresh()
	if err != nil {
		return err
	}
	if next != s.r {
		s.r.Close()
		s.r = next
	}
	return nil
}

// Close releases all pinned segment readers.
func (s *Searcher) Close() error {
	err := s.r.Close()
	for _, seg := range s.extra {
		if cerr := seg.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
