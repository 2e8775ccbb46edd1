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

package docstore

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

func writeFile(t *testing.T, mem *store.Mem, name string, finish func(store.Writer) error) {
	t.Helper()
	f, err := mem.Create(name)
	require.Nil(t, err)
	require.Nil(t, finish(f))
	require.Nil(t, f.Close())
}

func openFile(t *testing.T, mem *store.Mem, name string) store.Reader {
	t.Helper()
	r, err := mem.Open(name)
	require.Nil(t, err)
	return r
}

func TestStoredRoundTrip(t *testing.T) {
	mem := store.NewMem()

	w := NewStoredWriter()
	docs := []map[string]storobj.Value{
		{"title": storobj.String("first"), "views": storobj.Int(3)},
		{"title": storobj.String("second"), "score": storobj.Float(0.25)},
		{},
	}
	for i, fields := range docs {
		docID, err := w.Add(fields)
		require.Nil(t, err)
		assert.Equal(t, uint64(i), docID)
	}
	writeFile(t, mem, "seg.stv", w.Finish)

	r, err := NewStoredReader(openFile(t, mem, "seg.stv"))
	require.Nil(t, err)
	assert.Equal(t, uint64(3), r.NumDocs())

	for i, want := range docs {
		got, err := r.Doc(uint64(i))
		require.Nil(t, err)
		require.Equal(t, len(want), len(got))
		for name, v := range want {
			assert.True(t, v.Equal(got[name]), "field %q of doc %d", name, i)
		}
	}

	_, err = r.Doc(3)
	assert.True(t, errors.Is(err, fterrors.NotFound))
}

func TestStoredRawCarryOver(t *testing.T) {
	mem := store.NewMem()

	src := NewStoredWriter()
	_, err := src.Add(map[string]storobj.Value{"body": storobj.String("carried")})
	require.Nil(t, err)
	writeFile(t, mem, "src.stv", src.Finish)

	srcReader, err := NewStoredReader(openFile(t, mem, "src.stv"))
	require.Nil(t, err)
	blob, err := srcReader.RawDoc(0)
	require.Nil(t, err)

	dst := NewStoredWriter()
	dst.AddRaw(blob)
	writeFile(t, mem, "dst.stv", dst.Finish)

	dstReader, err := NewStoredReader(openFile(t, mem, "dst.stv"))
	require.Nil(t, err)
	fields, err := dstReader.Doc(0)
	require.Nil(t, err)
	assert.True(t, storobj.String("carried").Equal(fields["body"]))
}

func TestLengthsRoundTrip(t *testing.T) {
	mem := store.NewMem()

	w := NewLengthsWriter()
	w.AddDoc(map[uint16]uint32{0: 5, 1: 100})
	w.AddDoc(map[uint16]uint32{0: 12})
	w.AddDoc(map[uint16]uint32{1: 7})
	writeFile(t, mem, "seg.fln", w.Finish)

	r, err := NewLengthsReader(openFile(t, mem, "seg.fln"))
	require.Nil(t, err)
	assert.Equal(t, uint64(3), r.NumDocs())
	assert.Equal(t, []uint16{0, 1}, r.Fields())

	// exact below 16, bucket lower bound above
	assert.Equal(t, uint32(5), r.Length(0, 0))
	assert.Equal(t, uint32(12), r.Length(0, 1))
	assert.Equal(t, uint32(0), r.Length(0, 2))
	assert.LessOrEqual(t, r.Length(1, 0), uint32(100))
	assert.Greater(t, r.Length(1, 0), uint32(64))
	assert.Equal(t, uint32(7), r.Length(1, 2))

	// totals are exact, not bucketed
	assert.Equal(t, uint64(17), r.TotalTokens(0))
	assert.Equal(t, uint64(107), r.TotalTokens(1))
	assert.InDelta(t, 17.0/3.0, r.AvgLength(0), 1e-9)

	// unknown field and out-of-range doc
	assert.Equal(t, uint32(0), r.Length(9, 0))
	assert.Equal(t, uint32(0), r.Length(0, 99))
}

func TestDeletionsRoundTrip(t *testing.T) {
	mem := store.NewMem()

	deleted := sroar.NewBitmap()
	deleted.Set(2)
	deleted.Set(17)
	deleted.Set(100000)
	writeFile(t, mem, "seg.del", func(dst store.Writer) error {
		return WriteDeletions(dst, deleted)
	})

	got, err := LoadDeletions(openFile(t, mem, "seg.del"))
	require.Nil(t, err)
	assert.True(t, got.Contains(2))
	assert.True(t, got.Contains(17))
	assert.True(t, got.Contains(100000))
	assert.False(t, got.Contains(3))
	assert.Equal(t, 3, got.GetCardinality())
}

func TestDeletionsEmpty(t *testing.T) {
	mem := store.NewMem()
	writeFile(t, mem, "seg.del", func(dst store.Writer) error {
		return WriteDeletions(dst, sroar.NewBitmap())
	})
	got, err := LoadDeletions(openFile(t, mem, "seg.del"))
	require.Nil(t, err)
	assert.True(t, got.IsEmpty())
}

func TestVectorsRoundTrip(t *testing.T) {
	mem := store.NewMem()

	w := NewVectorsWriter()
	w.AddDoc(map[uint16][]TermVectorEntry{
		0: {
			{Term: []byte("alpha"), Freq: 2, Positions: []uint32{1, 5}},
			{Term: []byte("beta"), Freq: 1, Positions: []uint32{3}},
		},
	})
	w.AddDoc(nil)
	w.AddDoc(map[uint16][]TermVectorEntry{
		2: {{Term: []byte("gamma"), Freq: 4}},
	})
	writeFile(t, mem, "seg.vps", w.Finish)

	r, err := NewVectorsReader(openFile(t, mem, "seg.vps"))
	require.Nil(t, err)
	assert.Equal(t, uint64(3), r.NumDocs())

	vecs, err := r.Doc(0)
	require.Nil(t, err)
	require.Len(t, vecs, 1)
	entries := vecs[0]
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("alpha"), entries[0].Term)
	assert.Equal(t, uint32(2), entries[0].Freq)
	assert.Equal(t, []uint32{1, 5}, entries[0].Positions)
	assert.Equal(t, []byte("beta"), entries[1].Term)
	assert.Equal(t, []uint32{3}, entries[1].Positions)

	vecs, err = r.Doc(1)
	require.Nil(t, err)
	assert.Empty(t, vecs)

	vecs, err = r.Doc(2)
	require.Nil(t, err)
	require.Len(t, vecs[2], 1)
	assert.Equal(t, uint32(4), vecs[2][0].Freq)
	assert.Nil(t, vecs[2][0].Positions)
}

func TestEnvelopeDetectsBitFlip(t *testing.T) {
	mem := store.NewMem()

	w := NewStoredWriter()
	for i := 0; i < 10; i++ {
		_, err := w.Add(map[string]storobj.Value{"n": storobj.Int(int64(i))})
		require.Nil(t, err)
	}
	writeFile(t, mem, "seg.stv", w.Finish)

	data, err := openFile(t, mem, "seg.stv").Bytes()
	require.Nil(t, err)
	for _, pos := range []int{6, len(data) / 2, len(data) - 30} {
		flipped := append([]byte{}, data...)
		flipped[pos] ^= 0x01
		name := fmt.Sprintf("bad-%d.stv", pos)
		f, err := mem.Create(name)
		require.Nil(t, err)
		_, err = f.Write(flipped)
		require.Nil(t, err)
		require.Nil(t, f.Close())

		_, err = NewStoredReader(openFile(t, mem, name))
		assert.True(t, errors.Is(err, fterrors.Corrupt), "flip at %d", pos)
	}
}
