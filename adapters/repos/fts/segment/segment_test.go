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

package segment

import (
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	return schema.MustNew(
		schema.TextField("title", schema.WithTermVector()),
		schema.TextField("body"),
		schema.IDField("docid", schema.WithUnique()),
		schema.NumericField("views"),
	)
}

func testDocs() []map[string]storobj.Value {
	return []map[string]storobj.Value{
		{
			"title": storobj.String("the quick brown fox"),
			"body":  storobj.String("jumps over the lazy dog"),
			"docid": storobj.String("a1"),
			"views": storobj.Int(10),
		},
		{
			"title": storobj.String("the quick red fox"),
			"body":  storobj.String("runs"),
			"docid": storobj.String("a2"),
			"views": storobj.Int(25),
		},
		{
			"title": storobj.String("lazy dogs sleep"),
			"docid": storobj.String("a3"),
			"views": storobj.Int(5),
		},
	}
}

func buildSegment(t *testing.T, st store.Store, sch *schema.Schema, id string,
	opts WriterOptions, docs []map[string]storobj.Value,
) Header {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger, _ = test.NewNullLogger()
	}
	w := NewWriter(st, sch, id, opts)
	for i, doc := range docs {
		docID, err := w.AddDocument(doc)
		require.Nil(t, err)
		require.Equal(t, uint64(i), docID)
	}
	hdr, err := w.Finish()
	require.Nil(t, err)
	return hdr
}

func openSegment(t *testing.T, st store.Store, id string, sch *schema.Schema) *Reader {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r, err := Open(st, id, sch, logger)
	require.Nil(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// termDocs decodes a term's full posting list into (doc, freq) order.
func termDocs(t *testing.T, r *Reader, field string, term []byte) ([]uint64, []uint32) {
	t.Helper()
	info, ok, err := r.TermInfo(field, term)
	require.Nil(t, err)
	if !ok {
		return nil, nil
	}
	if info.Inline != nil {
		return []uint64{info.Inline.DocID}, []uint32{info.Inline.Freq}
	}
	f, ok := r.Schema().Field(field)
	require.True(t, ok)
	var docs []uint64
	var freqs []uint32
	for _, ptr := range info.Blocks {
		data, err := r.BlockData(ptr)
		require.Nil(t, err)
		blk, err := postings.DecodeBlock(data, ptr.BaseDoc, f.Positions)
		require.Nil(t, err)
		docs = append(docs, blk.Docs...)
		freqs = append(freqs, blk.Freqs...)
	}
	return docs, freqs
}

func TestSegmentRoundTrip(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	hdr := buildSegment(t, st, sch, "seg-a", WriterOptions{}, testDocs())
	require.Equal(t, uint64(3), hdr.DocCount)
	require.True(t, hdr.HasVectors)

	r := openSegment(t, st, "seg-a", sch)

	t.Run("doc counts", func(t *testing.T) {
		assert.Equal(t, uint64(3), r.DocCount())
		assert.Equal(t, uint64(3), r.DocCountAll())
		assert.False(t, r.HasDeletions())
	})

	t.Run("multi doc term", func(t *testing.T) {
		docs, freqs := termDocs(t, r, "title", []byte("quick"))
		assert.Equal(t, []uint64{0, 1}, docs)
		assert.Equal(t, []uint32{1, 1}, freqs)

		info, ok, err := r.TermInfo("title", []byte("quick"))
		require.Nil(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(2), info.DF)
		assert.Equal(t, uint64(2), info.CF)
	})

	t.Run("single doc term inlined", func(t *testing.T) {
		info, ok, err := r.TermInfo("body", []byte("runs"))
		require.Nil(t, err)
		require.True(t, ok)
		require.NotNil(t, info.Inline)
		assert.Equal(t, uint64(1), info.Inline.DocID)
		assert.Equal(t, uint32(1), info.Inline.Freq)
		assert.Empty(t, info.Blocks)
	})

	t.Run("missing term", func(t *testing.T) {
		_, ok, err := r.TermInfo("title", []byte("unicorn"))
		require.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := r.TermInfo("nope", []byte("x"))
		assert.True(t, errors.Is(err, fterrors.NotFound))
	})

	t.Run("numeric term", func(t *testing.T) {
		term, err := NumericTerm(storobj.Int(25))
		require.Nil(t, err)
		docs, _ := termDocs(t, r, "views", term)
		assert.Equal(t, []uint64{1}, docs)
	})

	t.Run("stored fields", func(t *testing.T) {
		fields, err := r.StoredFields(2)
		require.Nil(t, err)
		assert.Equal(t, storobj.String("lazy dogs sleep"), fields["title"])
		assert.Equal(t, storobj.String("a3"), fields["docid"])
		assert.Equal(t, storobj.Int(5), fields["views"])
		_, ok := fields["body"]
		assert.False(t, ok)
	})

	t.Run("field lengths", func(t *testing.T) {
		assert.Equal(t, uint32(4), r.DocFieldLength(0, "title", 1))
		assert.Equal(t, uint32(3), r.DocFieldLength(2, "title", 1))
		assert.Equal(t, uint64(11), r.FieldLength("title"))
		assert.InDelta(t, 11.0/3.0, r.AvgFieldLength("title"), 1e-9)
	})

	t.Run("term vectors", func(t *testing.T) {
		entries, err := r.TermVector(0, "title")
		require.Nil(t, err)
		require.Len(t, entries, 4)
		terms := make([]string, len(entries))
		for i, e := range entries {
			terms[i] = string(e.Term)
		}
		assert.Equal(t, []string{"brown", "fox", "quick", "the"}, terms)
		assert.Equal(t, []uint32{2}, entries[0].Positions)
	})
}

func TestSegmentSpillRuns(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	// a one-byte limit forces a spill run after every document
	buildSegment(t, st, sch, "seg-spill", WriterOptions{RAMLimit: 1}, testDocs())

	names, err := st.List()
	require.Nil(t, err)
	for _, name := range names {
		assert.False(t, strings.Contains(name, ".run"),
			"spill run %s must not survive the flush", name)
	}

	r := openSegment(t, st, "seg-spill", sch)
	docs, freqs := termDocs(t, r, "title", []byte("quick"))
	assert.Equal(t, []uint64{0, 1}, docs)
	assert.Equal(t, []uint32{1, 1}, freqs)
	docs, _ = termDocs(t, r, "title", []byte("lazy"))
	assert.Equal(t, []uint64{2}, docs)
	assert.Equal(t, uint64(11), r.FieldLength("title"))
}

func TestWriterRejections(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	logger, _ := test.NewNullLogger()
	w := NewWriter(st, sch, "seg-rej", WriterOptions{Logger: logger})

	t.Run("unknown field", func(t *testing.T) {
		_, err := w.AddDocument(map[string]storobj.Value{
			"nope": storobj.String("x"),
		})
		assert.True(t, errors.Is(err, fterrors.SchemaMismatch))
	})

	t.Run("wrong value kind", func(t *testing.T) {
		_, err := w.AddDocument(map[string]storobj.Value{
			"title": storobj.Int(7),
		})
		assert.True(t, errors.Is(err, fterrors.IndexingError))
	})

	t.Run("finished writer", func(t *testing.T) {
		_, err := w.Finish()
		require.Nil(t, err)
		_, err = w.AddDocument(map[string]storobj.Value{
			"title": storobj.String("late"),
		})
		assert.True(t, errors.Is(err, fterrors.ReadOnly))
		_, err = w.Finish()
		assert.True(t, errors.Is(err, fterrors.ReadOnly))
	})
}

type maxFreqQuality struct{}

func (maxFreqQuality) BlockQuality(_ schema.Field, _ float64) postings.QualityFunc {
	return func(maxFreq uint32, _ uint32) float64 {
		return float64(maxFreq)
	}
}

func TestSegmentBlockQuality(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	docs := []map[string]storobj.Value{
		{"title": storobj.String("go go go"), "docid": storobj.String("q1")},
		{"title": storobj.String("go slow"), "docid": storobj.String("q2")},
	}
	buildSegment(t, st, sch, "seg-q", WriterOptions{Quality: maxFreqQuality{}}, docs)

	r := openSegment(t, st, "seg-q", sch)
	info, ok, err := r.TermInfo("title", []byte("go"))
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, 3.0, info.MaxQuality)
	require.Len(t, info.Blocks, 1)
	assert.Equal(t, 3.0, info.Blocks[0].Impact)

	info, ok, err = r.TermInfo("title", []byte("slow"))
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, info.MaxQuality)
}

func TestSegmentDeletions(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	buildSegment(t, st, sch, "seg-del", WriterOptions{}, testDocs())

	deleted := sroar.NewBitmap()
	deleted.Set(1)
	require.Nil(t, WriteDeletions(st, "seg-del", deleted))

	r := openSegment(t, st, "seg-del", sch)
	assert.Equal(t, uint64(3), r.DocCountAll())
	assert.Equal(t, uint64(2), r.DocCount())
	assert.True(t, r.HasDeletions())
	assert.True(t, r.IsDeleted(1))
	assert.False(t, r.IsDeleted(0))
}

func TestMergeDropsDeletedDocs(t *testing.T) {
	st := store.NewMem()
	sch := testSchema(t)
	buildSegment(t, st, sch, "seg-1", WriterOptions{}, testDocs())
	buildSegment(t, st, sch, "seg-2", WriterOptions{}, []map[string]storobj.Value{
		{"title": storobj.String("green fox"), "docid": storobj.String("b1"), "views": storobj.Int(7)},
		{"title": storobj.String("quick quick quick"), "docid": storobj.String("b2"), "views": storobj.Int(8)},
	})

	deleted := sroar.NewBitmap()
	deleted.Set(1)
	require.Nil(t, WriteDeletions(st, "seg-1", deleted))

	src1 := openSegment(t, st, "seg-1", sch)
	src2 := openSegment(t, st, "seg-2", sch)
	logger, _ := test.NewNullLogger()
	hdr, err := Merge(st, "seg-m", []*Reader{src1, src2}, sch,
		MergeOptions{Logger: logger})
	require.Nil(t, err)
	require.Equal(t, uint64(4), hdr.DocCount)

	r := openSegment(t, st, "seg-m", sch)

	t.Run("survivors renumbered densely", func(t *testing.T) {
		ids := make([]string, 4)
		for docID := uint64(0); docID < 4; docID++ {
			fields, err := r.StoredFields(docID)
			require.Nil(t, err)
			ids[docID] = fields["docid"].Str
		}
		assert.Equal(t, []string{"a1", "a3", "b1", "b2"}, ids)
	})

	t.Run("postings remapped", func(t *testing.T) {
		docs, freqs := termDocs(t, r, "title", []byte("quick"))
		assert.Equal(t, []uint64{0, 3}, docs)
		assert.Equal(t, []uint32{1, 3}, freqs)
		docs, _ = termDocs(t, r, "title", []byte("fox"))
		assert.Equal(t, []uint64{0, 2}, docs)
	})

	t.Run("terms of deleted docs vanish", func(t *testing.T) {
		_, ok, err := r.TermInfo("title", []byte("red"))
		require.Nil(t, err)
		assert.False(t, ok)
		_, ok, err = r.TermInfo("docid", []byte("a2"))
		require.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("lengths carried over", func(t *testing.T) {
		assert.Equal(t, uint32(3), r.DocFieldLength(1, "title", 1))
		assert.Equal(t, uint64(4+3+2+3), r.FieldLength("title"))
		assert.InDelta(t, 3.0, r.AvgFieldLength("title"), 1e-9)
	})

	t.Run("vectors carried over", func(t *testing.T) {
		entries, err := r.TermVector(2, "title")
		require.Nil(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "fox", string(entries[0].Term))
		assert.Equal(t, "green", string(entries[1].Term))
	})

	t.Run("merged segment starts clean", func(t *testing.T) {
		assert.False(t, r.HasDeletions())
		assert.Equal(t, uint64(4), r.DocCount())
	})
}
