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
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/collector"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

func indexSchema() *schema.Schema {
	return schema.MustNew(
		schema.IDField("id", schema.WithUnique()),
		schema.TextField("body"),
	)
}

func newTestWriter(t *testing.T, st store.Store, sch *schema.Schema) *Writer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	w, err := NewWriter(st, sch, WriterOptions{
		Quality: scoring.NewBM25F(),
		Logger:  logger,
	})
	require.NoError(t, err)
	return w
}

func newTestReader(t *testing.T, st store.Store, sch *schema.Schema) *Reader {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r, err := OpenReader(st, sch, logger)
	require.NoError(t, err)
	return r
}

func indexDoc(id, body string) map[string]storobj.Value {
	return map[string]storobj.Value{
		"id":   storobj.String(id),
		"body": storobj.String(body),
	}
}

// searchGlobals runs a query over the reader's pinned segments and returns
// the matched global doc IDs in collection order.
func searchGlobals(t *testing.T, r *Reader, q searchparams.Query) []uint64 {
	t.Helper()
	col := collector.NewTopK(100)
	logger, _ := test.NewNullLogger()
	err := collector.Search(r.Segments(), q, col, collector.Options{Logger: logger})
	require.NoError(t, err)
	var out []uint64
	for _, hit := range col.Results() {
		out = append(out, hit.Global)
	}
	return out
}

func bodies(t *testing.T, r *Reader, q searchparams.Query) []string {
	t.Helper()
	col := collector.NewTopK(100)
	logger, _ := test.NewNullLogger()
	err := collector.Search(r.Segments(), q, col, collector.Options{Logger: logger})
	require.NoError(t, err)
	var out []string
	for _, hit := range col.Results() {
		for _, seg := range r.Segments() {
			if seg.ID() == hit.Segment {
				fields, err := seg.StoredFields(hit.Doc)
				require.NoError(t, err)
				out = append(out, fields["body"].Str)
			}
		}
	}
	return out
}

func TestCommitAndReopen(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	require.NoError(t, w.AddDocument(indexDoc("a", "the quick brown fox")))
	require.NoError(t, w.AddDocument(indexDoc("b", "lazy dogs sleep all day")))
	assert.Equal(t, uint64(2), w.BufferedDocs())

	gen, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	assert.Equal(t, uint64(0), w.BufferedDocs())
	require.NoError(t, w.Close())

	r := newTestReader(t, st, sch)
	defer r.Close()
	assert.Equal(t, uint64(1), r.Generation())
	assert.Equal(t, uint64(2), r.DocCount())
	require.Len(t, r.Segments(), 1)

	got := searchGlobals(t, r, searchparams.Term{Field: "body", Term: []byte("fox")})
	assert.Equal(t, []uint64{0}, got)
}

func TestEmptyCommitIsNoop(t *testing.T) {
	st := store.NewMem()
	w := newTestWriter(t, st, indexSchema())
	defer w.Close()

	gen, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gen)

	names, err := st.List()
	require.NoError(t, err)
	for _, name := range names {
		_, isTOC := parseTOCName(name)
		assert.False(t, isTOC, "no TOC expected, found %s", name)
	}
}

func TestReaderPinsGenerationAndRefresh(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()
	require.NoError(t, w.AddDocument(indexDoc("a", "first batch")))
	_, err := w.Commit()
	require.NoError(t, err)

	r := newTestReader(t, st, sch)
	assert.Equal(t, uint64(1), r.Generation())
	pinned := r.Segments()[0]

	// a commit after open stays invisible to the pinned view
	require.NoError(t, w.AddDocument(indexDoc("b", "second batch")))
	_, err = w.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.DocCount())

	next, err := r.Refresh()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	defer next.Close()

	assert.Equal(t, uint64(2), next.Generation())
	assert.Equal(t, uint64(2), next.DocCount())
	// the untouched segment is adopted, not reopened
	assert.Same(t, pinned, next.Segments()[0])
}

func TestUpdateByUniqueField(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()
	require.NoError(t, w.AddDocument(indexDoc("a", "original text")))
	require.NoError(t, w.AddDocument(indexDoc("b", "untouched neighbor")))
	_, err := w.Commit()
	require.NoError(t, err)

	require.NoError(t, w.UpdateDocument(indexDoc("a", "replacement text")))
	_, err = w.Commit()
	require.NoError(t, err)

	r := newTestReader(t, st, sch)
	defer r.Close()
	assert.Equal(t, uint64(2), r.DocCount())

	got := bodies(t, r, searchparams.Term{Field: "body", Term: []byte("text")})
	assert.Equal(t, []string{"replacement text"}, got)
	got = bodies(t, r, searchparams.Term{Field: "body", Term: []byte("neighbor")})
	assert.Equal(t, []string{"untouched neighbor"}, got)
}

func TestUpdateKeepsOwnDocInSameBatch(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()
	// two updates of the same key in one batch: the later one wins
	require.NoError(t, w.UpdateDocument(indexDoc("a", "first version")))
	require.NoError(t, w.UpdateDocument(indexDoc("a", "second version")))
	_, err := w.Commit()
	require.NoError(t, err)

	r := newTestReader(t, st, sch)
	defer r.Close()
	assert.Equal(t, uint64(1), r.DocCount())
	got := bodies(t, r, searchparams.Term{Field: "body", Term: []byte("version")})
	assert.Equal(t, []string{"second version"}, got)
}

func TestUpdateWithoutUniqueField(t *testing.T) {
	st := store.NewMem()
	sch := schema.MustNew(schema.TextField("body"))

	w := newTestWriter(t, st, sch)
	defer w.Close()
	err := w.UpdateDocument(map[string]storobj.Value{
		"body": storobj.String("no key"),
	})
	assert.ErrorIs(t, err, fterrors.SchemaMismatch)
}

func TestDeleteByTermAndQuery(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()
	require.NoError(t, w.AddDocument(indexDoc("a", "alpha doc")))
	require.NoError(t, w.AddDocument(indexDoc("b", "beta doc")))
	require.NoError(t, w.AddDocument(indexDoc("c", "gamma doc")))
	_, err := w.Commit()
	require.NoError(t, err)

	t.Run("by term", func(t *testing.T) {
		require.NoError(t, w.DeleteByTerm("id", []byte("a")))
		_, err := w.Commit()
		require.NoError(t, err)

		r := newTestReader(t, st, sch)
		defer r.Close()
		assert.Equal(t, uint64(2), r.DocCount())
		got := bodies(t, r, searchparams.Term{Field: "body", Term: []byte("doc")})
		assert.ElementsMatch(t, []string{"beta doc", "gamma doc"}, got)
	})

	t.Run("by query", func(t *testing.T) {
		require.NoError(t, w.DeleteByQuery(
			searchparams.Term{Field: "body", Term: []byte("beta")}))
		_, err := w.Commit()
		require.NoError(t, err)

		r := newTestReader(t, st, sch)
		defer r.Close()
		assert.Equal(t, uint64(1), r.DocCount())
		got := bodies(t, r, searchparams.Term{Field: "body", Term: []byte("doc")})
		assert.Equal(t, []string{"gamma doc"}, got)
	})

	t.Run("unknown field", func(t *testing.T) {
		err := w.DeleteByTerm("missing", []byte("x"))
		assert.ErrorIs(t, err, fterrors.NotFound)
	})
}

func TestCrashedCommitIsInvisible(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	require.NoError(t, w.AddDocument(indexDoc("a", "survives")))
	_, err := w.Commit()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// a crash between fsync and rename leaves segment files plus a .tmp
	// TOC, never a published generation
	orphan := segment.NewID()
	logger, _ := test.NewNullLogger()
	sw := segment.NewWriter(st, sch, orphan, segment.WriterOptions{Logger: logger})
	_, err = sw.AddDocument(indexDoc("b", "lost"))
	require.NoError(t, err)
	_, err = sw.Finish()
	require.NoError(t, err)
	f, err := st.Create(TOCName(2) + ".tmp")
	require.NoError(t, err)
	_, err = f.Write([]byte("half a commit"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := newTestReader(t, st, sch)
	assert.Equal(t, uint64(1), r.Generation())
	assert.Equal(t, uint64(1), r.DocCount())
	require.NoError(t, r.Close())

	// the next writer's cleanup reclaims the orphans
	w2 := newTestWriter(t, st, sch)
	require.NoError(t, w2.Optimize())
	require.NoError(t, w2.Close())

	names, err := st.List()
	require.NoError(t, err)
	for _, name := range names {
		assert.False(t, strings.HasPrefix(name, orphan),
			"orphan file %s not cleaned", name)
		assert.False(t, strings.HasSuffix(name, ".tmp"),
			"tmp file %s not cleaned", name)
	}
}

func TestWriteLock(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()

	logger, _ := test.NewNullLogger()
	_, err := NewWriter(st, sch, WriterOptions{Logger: logger})
	assert.ErrorIs(t, err, fterrors.Locked)

	require.NoError(t, w.Close())
	w2, err := NewWriter(st, sch, WriterOptions{Logger: logger})
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestSchemaExtensionCheck(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	require.NoError(t, w.AddDocument(indexDoc("a", "committed under v1")))
	_, err := w.Commit()
	require.NoError(t, err)
	require.NoError(t, w.Close())

	logger, _ := test.NewNullLogger()

	t.Run("valid extension", func(t *testing.T) {
		extended := schema.MustNew(
			schema.IDField("id", schema.WithUnique()),
			schema.TextField("body"),
			schema.TextField("summary"),
		)
		w2, err := NewWriter(st, extended, WriterOptions{Logger: logger})
		require.NoError(t, err)
		require.NoError(t, w2.Close())
	})

	t.Run("dropped field", func(t *testing.T) {
		shrunk := schema.MustNew(schema.TextField("body"))
		_, err := NewWriter(st, shrunk, WriterOptions{Logger: logger})
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})
}

func TestMergePolicyPlan(t *testing.T) {
	p := newMergePolicy(10, 4)

	entry := func(id string, docs uint64) SegmentEntry {
		return SegmentEntry{ID: id, DocCount: docs}
	}

	t.Run("below threshold", func(t *testing.T) {
		groups := p.plan([]SegmentEntry{
			entry("a", 5), entry("b", 7), entry("c", 3),
		})
		assert.Empty(t, groups)
	})

	t.Run("one full tier", func(t *testing.T) {
		groups := p.plan([]SegmentEntry{
			entry("a", 5), entry("b", 7), entry("c", 3), entry("d", 9),
		})
		require.Len(t, groups, 1)
		assert.Len(t, groups[0], 4)
	})

	t.Run("tiers stay separate", func(t *testing.T) {
		groups := p.plan([]SegmentEntry{
			entry("a", 5), entry("b", 7), entry("c", 3),
			entry("big1", 5000), entry("big2", 7000),
			entry("big3", 3000), entry("big4", 9000),
		})
		require.Len(t, groups, 1)
		for _, e := range groups[0] {
			assert.True(t, e.DocCount >= 1000)
		}
	})

	t.Run("defaults clamp", func(t *testing.T) {
		p := newMergePolicy(0, 0)
		assert.Equal(t, DefaultMergeTierFactor, p.tierFactor)
		assert.Equal(t, DefaultMergeMinSegments, p.minSegments)
	})
}

func TestTieredMergeAfterCommit(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	logger, _ := test.NewNullLogger()
	w, err := NewWriter(st, sch, WriterOptions{
		Quality:          scoring.NewBM25F(),
		MergeMinSegments: 4,
		Logger:           logger,
	})
	require.NoError(t, err)
	defer w.Close()

	// four same-tier single-doc commits trigger one merge
	for i := 0; i < 4; i++ {
		require.NoError(t, w.AddDocument(
			indexDoc(fmt.Sprintf("doc-%d", i), "tiny segment")))
		_, err := w.Commit()
		require.NoError(t, err)
	}

	r := newTestReader(t, st, sch)
	defer r.Close()
	require.Len(t, r.Segments(), 1)
	assert.Equal(t, uint64(4), r.DocCount())
	got := searchGlobals(t, r, searchparams.Term{Field: "body", Term: []byte("tiny")})
	assert.Len(t, got, 4)
}

func TestOptimize(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()

	w := newTestWriter(t, st, sch)
	defer w.Close()
	require.NoError(t, w.AddDocument(indexDoc("a", "kept one")))
	require.NoError(t, w.AddDocument(indexDoc("b", "dropped one")))
	_, err := w.Commit()
	require.NoError(t, err)
	require.NoError(t, w.AddDocument(indexDoc("c", "kept two")))
	_, err = w.Commit()
	require.NoError(t, err)
	require.NoError(t, w.DeleteByTerm("id", []byte("b")))
	_, err = w.Commit()
	require.NoError(t, err)

	require.NoError(t, w.Optimize())

	r := newTestReader(t, st, sch)
	defer r.Close()
	require.Len(t, r.Segments(), 1)
	seg := r.Segments()[0]
	// tombstones are dropped on the way, not carried
	assert.False(t, seg.HasDeletions())
	assert.Equal(t, uint64(2), r.DocCount())

	// the survivor is one compound container plus its TOC
	names, err := st.List()
	require.NoError(t, err)
	var cmp int
	for _, name := range names {
		if strings.HasSuffix(name, ".cmp") {
			cmp++
		}
	}
	assert.Equal(t, 1, cmp)

	got := bodies(t, r, searchparams.Term{Field: "body", Term: []byte("kept")})
	assert.ElementsMatch(t, []string{"kept one", "kept two"}, got)
}

func TestClosedWriterRejectsMutations(t *testing.T) {
	st := store.NewMem()
	w := newTestWriter(t, st, indexSchema())
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.AddDocument(indexDoc("a", "x")), fterrors.ReadOnly)
	_, err := w.Commit()
	assert.ErrorIs(t, err, fterrors.ReadOnly)
	assert.ErrorIs(t, w.Optimize(), fterrors.ReadOnly)
	// Close is idempotent
	require.NoError(t, w.Close())
}

func TestTOCRoundTrip(t *testing.T) {
	st := store.NewMem()
	sch := indexSchema()
	toc := TOC{
		Generation: 7,
		Schema:     sch,
		Segments: []SegmentEntry{
			{ID: "seg-a", Generation: 3, DocCount: 10},
			{ID: "seg-b", Generation: 7, DocCount: 2, DelGen: 1},
		},
	}
	require.NoError(t, writeTOC(st, toc))

	got, err := readTOC(st, 7)
	require.NoError(t, err)
	assert.Equal(t, toc.Generation, got.Generation)
	assert.Equal(t, toc.Segments, got.Segments)

	t.Run("corruption detected", func(t *testing.T) {
		f, err := st.Open(TOCName(7))
		require.NoError(t, err)
		data, err := f.Bytes()
		require.NoError(t, err)
		require.NoError(t, f.Close())

		flipped := append([]byte{}, data...)
		flipped[0] ^= 0xff
		dst, err := st.Create(TOCName(7))
		require.NoError(t, err)
		_, err = dst.Write(flipped)
		require.NoError(t, err)
		require.NoError(t, dst.Close())

		_, err = readTOC(st, 7)
		assert.ErrorIs(t, err, fterrors.Corrupt)
	})
}
