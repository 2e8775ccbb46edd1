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
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

func searchSchema() *schema.Schema {
	return schema.MustNew(
		schema.TextField("title"),
		schema.NumericField("views"),
	)
}

func buildSearchSegment(t *testing.T, st store.Store, id string,
	docs []map[string]storobj.Value,
) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	w := segment.NewWriter(st, searchSchema(), id, segment.WriterOptions{
		Quality: scoring.NewBM25F(),
		Logger:  logger,
	})
	for _, doc := range docs {
		_, err := w.AddDocument(doc)
		require.NoError(t, err)
	}
	_, err := w.Finish()
	require.NoError(t, err)
}

func doc(title string, views int64) map[string]storobj.Value {
	return map[string]storobj.Value{
		"title": storobj.String(title),
		"views": storobj.Int(views),
	}
}

// searchFixture builds two segments; the global doc space is seg-a docs
// 0..2 then seg-b docs 3..4.
func searchFixture(t *testing.T) (store.Store, []*segment.Reader) {
	t.Helper()
	st := store.NewMem()
	buildSearchSegment(t, st, "seg-a", []map[string]storobj.Value{
		doc("apple banana", 10),
		doc("apple apple apple", 5),
		doc("cherry", 30),
	})
	buildSearchSegment(t, st, "seg-b", []map[string]storobj.Value{
		doc("apple cherry", 20),
		doc("banana", 1),
	})
	return st, openSegments(t, st)
}

func openSegments(t *testing.T, st store.Store) []*segment.Reader {
	t.Helper()
	logger, _ := test.NewNullLogger()
	var segs []*segment.Reader
	for _, id := range []string{"seg-a", "seg-b"} {
		r, err := segment.Open(st, id, searchSchema(), logger)
		require.NoError(t, err)
		t.Cleanup(func() { r.Close() })
		segs = append(segs, r)
	}
	return segs
}

func globals(hits []Hit) []uint64 {
	out := make([]uint64, len(hits))
	for i, h := range hits {
		out[i] = h.Global
	}
	return out
}

func TestTopKSearch(t *testing.T) {
	_, segs := searchFixture(t)
	query := searchparams.Term{Field: "title", Term: []byte("apple")}

	t.Run("keeps the k best hits", func(t *testing.T) {
		col := NewTopK(2)
		require.NoError(t, Search(segs, query, col, Options{}))
		hits := col.Results()
		require.Len(t, hits, 2)
		// doc 1 of seg-a repeats the term and ranks first
		assert.Equal(t, "seg-a", hits[0].Segment)
		assert.Equal(t, uint64(1), hits[0].Doc)
		assert.Equal(t, uint64(0), hits[1].Global)
	})

	t.Run("maps hits back to segment and local doc", func(t *testing.T) {
		col := NewTopK(10)
		require.NoError(t, Search(segs, query, col, Options{}))
		hits := col.Results()
		require.Len(t, hits, 3)
		last := hits[len(hits)-1]
		assert.Equal(t, "seg-b", last.Segment)
		assert.Equal(t, uint64(0), last.Doc)
		assert.Equal(t, uint64(3), last.Global)
	})

	t.Run("scores are ordered descending", func(t *testing.T) {
		col := NewTopK(10)
		require.NoError(t, Search(segs, query, col, Options{}))
		hits := col.Results()
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})
}

func TestTopKTieBreak(t *testing.T) {
	col := NewTopK(2)
	require.NoError(t, col.Collect(4, 1.0))
	require.NoError(t, col.Collect(7, 1.0))
	// an equal-scored later doc loses against both retained hits
	require.NoError(t, col.Collect(9, 1.0))
	assert.Equal(t, []uint64{4, 7}, globals(col.Results()))
}

func TestQueryCompilation(t *testing.T) {
	_, segs := searchFixture(t)

	run := func(t *testing.T, q searchparams.Query) []Hit {
		t.Helper()
		col := NewTopK(10)
		require.NoError(t, Search(segs, q, col, Options{}))
		return col.Results()
	}

	t.Run("or unions across segments", func(t *testing.T) {
		hits := run(t, searchparams.Or{Subqueries: []searchparams.Query{
			searchparams.Term{Field: "title", Term: []byte("banana")},
			searchparams.Term{Field: "title", Term: []byte("cherry")},
		}})
		assert.ElementsMatch(t, []uint64{0, 2, 3, 4}, globals(hits))
	})

	t.Run("and intersects", func(t *testing.T) {
		hits := run(t, searchparams.And{Subqueries: []searchparams.Query{
			searchparams.Term{Field: "title", Term: []byte("apple")},
			searchparams.Term{Field: "title", Term: []byte("cherry")},
		}})
		assert.Equal(t, []uint64{3}, globals(hits))
	})

	t.Run("and-not subtracts", func(t *testing.T) {
		hits := run(t, searchparams.AndNot{
			Include: searchparams.Term{Field: "title", Term: []byte("apple")},
			Exclude: searchparams.Term{Field: "title", Term: []byte("banana")},
		})
		assert.ElementsMatch(t, []uint64{1, 3}, globals(hits))
	})

	t.Run("prefix expands per segment", func(t *testing.T) {
		hits := run(t, searchparams.Prefix{Field: "title", Prefix: []byte("ban")})
		assert.ElementsMatch(t, []uint64{0, 4}, globals(hits))
	})

	t.Run("every with field matches docs carrying it", func(t *testing.T) {
		hits := run(t, searchparams.Every{Field: "title"})
		assert.Len(t, hits, 5)
	})

	t.Run("constant pins scores", func(t *testing.T) {
		hits := run(t, searchparams.Constant{
			Sub:   searchparams.Term{Field: "title", Term: []byte("apple")},
			Score: 0.25,
		})
		require.NotEmpty(t, hits)
		for _, h := range hits {
			assert.Equal(t, 0.25, h.Score)
		}
	})

	t.Run("unknown field fails with not found", func(t *testing.T) {
		col := NewTopK(1)
		err := Search(segs, searchparams.Term{Field: "missing", Term: []byte("x")}, col, Options{})
		require.Error(t, err)
		assert.ErrorIs(t, err, fterrors.NotFound)
	})
}

func TestCollectorWrappers(t *testing.T) {
	_, segs := searchFixture(t)
	query := searchparams.Term{Field: "title", Term: []byte("apple")}

	t.Run("filter keeps only allowed globals", func(t *testing.T) {
		allow := sroar.NewBitmap()
		allow.Set(3)
		col := NewFilter(NewTopK(10), allow)
		require.NoError(t, Search(segs, query, col, Options{}))
		assert.Equal(t, []uint64{3}, globals(col.Results()))
	})

	t.Run("mask drops denied globals", func(t *testing.T) {
		deny := sroar.NewBitmap()
		deny.Set(1)
		col := NewMask(NewTopK(10), deny)
		require.NoError(t, Search(segs, query, col, Options{}))
		assert.ElementsMatch(t, []uint64{0, 3}, globals(col.Results()))
	})

	t.Run("expired deadline surfaces time limit", func(t *testing.T) {
		col := NewTimeLimit(NewTopK(10), time.Now().Add(-time.Second), 1)
		err := Search(segs, query, col, Options{})
		require.Error(t, err)
		assert.True(t, fterrors.IsTimeLimit(err))
	})

	t.Run("future deadline collects normally", func(t *testing.T) {
		col := NewTimeLimit(NewTopK(10), time.Now().Add(time.Minute), 1)
		require.NoError(t, Search(segs, query, col, Options{}))
		assert.Len(t, col.Results(), 3)
	})
}

func TestDeletionsAreMasked(t *testing.T) {
	st, _ := searchFixture(t)

	deleted := sroar.NewBitmap()
	deleted.Set(1)
	require.NoError(t, segment.WriteDeletions(st, "seg-a", deleted))

	segs := openSegments(t, st)
	col := NewTopK(10)
	query := searchparams.Term{Field: "title", Term: []byte("apple")}
	require.NoError(t, Search(segs, query, col, Options{}))
	assert.ElementsMatch(t, []uint64{0, 3}, globals(col.Results()))
}

func TestSortByField(t *testing.T) {
	_, segs := searchFixture(t)
	query := searchparams.Every{}

	t.Run("ascending by stored value", func(t *testing.T) {
		col := NewSortByField("views", 3, false)
		require.NoError(t, Search(segs, query, col, Options{}))
		// views are 10, 5, 30, 20, 1 in global order
		assert.Equal(t, []uint64{4, 1, 0}, globals(col.Results()))
	})

	t.Run("descending flips the order", func(t *testing.T) {
		col := NewSortByField("views", 3, true)
		require.NoError(t, Search(segs, query, col, Options{}))
		assert.Equal(t, []uint64{2, 3, 0}, globals(col.Results()))
	})

	t.Run("pruning is off while sorting", func(t *testing.T) {
		col := NewSortByField("views", 1, false)
		_, ok := col.Threshold()
		assert.False(t, ok)
	})
}
