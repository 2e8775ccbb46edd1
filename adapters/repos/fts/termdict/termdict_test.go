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

package termdict

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

func blockInfo(df, cf uint64, quality float64) TermInfo {
	return TermInfo{
		DF:         df,
		CF:         cf,
		MaxQuality: quality,
		Blocks: []postings.BlockPointer{
			{Offset: 0, Length: 40, BaseDoc: 0, MaxDoc: df, MaxFreq: 3,
				MinLengthByte: 12, Impact: quality},
		},
	}
}

func buildDict(t *testing.T, header []byte, add func(w *Writer)) *Reader {
	t.Helper()
	mem := store.NewMem()

	w := NewWriter(header)
	add(w)

	f, err := mem.Create("seg.trm")
	require.Nil(t, err)
	require.Nil(t, w.Finish(f))
	require.Nil(t, f.Close())

	r, err := mem.Open("seg.trm")
	require.Nil(t, err)
	d, err := NewReader(r)
	require.Nil(t, err)
	return d
}

func TestDictionaryRoundTrip(t *testing.T) {
	d := buildDict(t, []byte("header-blob"), func(w *Writer) {
		require.Nil(t, w.Add(0, []byte("apple"), blockInfo(10, 25, 1.5)))
		require.Nil(t, w.Add(0, []byte("banana"), blockInfo(4, 4, 0.7)))
		require.Nil(t, w.Add(1, []byte("apple"), TermInfo{
			DF: 1, CF: 2, MaxQuality: 0.3,
			Inline: &postings.Posting{DocID: 7, Freq: 2, Positions: []uint32{3, 9}},
		}))
	})

	assert.Equal(t, []byte("header-blob"), d.Header())
	assert.Equal(t, uint64(3), d.NumTerms())

	info, ok, err := d.Get(0, []byte("apple"))
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), info.DF)
	assert.Equal(t, uint64(25), info.CF)
	assert.InDelta(t, 1.5, info.MaxQuality, 1e-12)
	require.Len(t, info.Blocks, 1)
	assert.Equal(t, uint64(10), info.Blocks[0].MaxDoc)
	assert.Equal(t, byte(12), info.Blocks[0].MinLengthByte)

	info, ok, err = d.Get(1, []byte("apple"))
	require.Nil(t, err)
	require.True(t, ok)
	require.NotNil(t, info.Inline)
	assert.Equal(t, uint64(7), info.Inline.DocID)
	assert.Equal(t, uint32(2), info.Inline.Freq)
	assert.Equal(t, []uint32{3, 9}, info.Inline.Positions)

	_, ok, err = d.Get(0, []byte("cherry"))
	require.Nil(t, err)
	assert.False(t, ok)
	_, ok, err = d.Get(2, []byte("apple"))
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestDictionaryOrderEnforced(t *testing.T) {
	w := NewWriter(nil)
	require.Nil(t, w.Add(0, []byte("b"), blockInfo(1, 1, 0)))

	err := w.Add(0, []byte("a"), blockInfo(1, 1, 0))
	assert.True(t, errors.Is(err, fterrors.IndexingError))

	err = w.Add(0, []byte("b"), blockInfo(1, 1, 0))
	assert.True(t, errors.Is(err, fterrors.IndexingError))
}

func TestDictionaryIteration(t *testing.T) {
	// enough terms to cross several sparse index strides
	terms := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		terms = append(terms, fmt.Sprintf("term-%04d", i))
	}
	d := buildDict(t, nil, func(w *Writer) {
		for _, term := range terms {
			require.Nil(t, w.Add(3, []byte(term), blockInfo(2, 2, 0.1)))
		}
	})

	t.Run("full scan", func(t *testing.T) {
		it := d.Iter()
		var got []string
		for it.Next() {
			got = append(got, string(it.Term()))
			assert.Equal(t, uint16(3), it.FieldID())
		}
		require.Nil(t, it.Err())
		assert.Equal(t, terms, got)
	})

	t.Run("from mid key", func(t *testing.T) {
		it := d.IterFrom(3, []byte("term-0123"))
		require.True(t, it.Next())
		assert.Equal(t, "term-0123", string(it.Term()))
	})

	t.Run("from between keys", func(t *testing.T) {
		it := d.IterFrom(3, []byte("term-0123x"))
		require.True(t, it.Next())
		assert.Equal(t, "term-0124", string(it.Term()))
	})

	t.Run("prefix", func(t *testing.T) {
		it := d.IterPrefix(3, []byte("term-01"))
		n := 0
		for it.Next() {
			n++
		}
		require.Nil(t, it.Err())
		assert.Equal(t, 100, n)
	})

	t.Run("prefix of other field", func(t *testing.T) {
		it := d.IterPrefix(2, []byte("term-"))
		assert.False(t, it.Next())
		require.Nil(t, it.Err())
	})

	t.Run("range inclusive", func(t *testing.T) {
		it := d.IterRange(3, []byte("term-0010"), []byte("term-0020"), true, true)
		var got []string
		for it.Next() {
			got = append(got, string(it.Term()))
		}
		require.Nil(t, it.Err())
		require.Len(t, got, 11)
		assert.Equal(t, "term-0010", got[0])
		assert.Equal(t, "term-0020", got[10])
	})

	t.Run("range exclusive", func(t *testing.T) {
		it := d.IterRange(3, []byte("term-0010"), []byte("term-0020"), false, false)
		var got []string
		for it.Next() {
			got = append(got, string(it.Term()))
		}
		require.Nil(t, it.Err())
		require.Len(t, got, 9)
		assert.Equal(t, "term-0011", got[0])
		assert.Equal(t, "term-0019", got[8])
	})

	t.Run("range open ended", func(t *testing.T) {
		it := d.IterRange(3, []byte("term-0297"), nil, true, true)
		n := 0
		for it.Next() {
			n++
		}
		require.Nil(t, it.Err())
		assert.Equal(t, 3, n)
	})
}

func TestDictionaryBloomSidecar(t *testing.T) {
	mem := store.NewMem()

	w := NewWriter(nil)
	require.Nil(t, w.Add(0, []byte("present"), blockInfo(1, 1, 0)))

	f, err := mem.Create("seg.trm")
	require.Nil(t, err)
	require.Nil(t, w.Finish(f))
	require.Nil(t, f.Close())

	bf, err := mem.Create("seg.blm")
	require.Nil(t, err)
	require.Nil(t, w.WriteBloom(bf))
	require.Nil(t, bf.Close())

	r, err := mem.Open("seg.trm")
	require.Nil(t, err)
	d, err := NewReader(r)
	require.Nil(t, err)

	br, err := mem.Open("seg.blm")
	require.Nil(t, err)
	filter, err := LoadBloom(br)
	require.Nil(t, err)
	d.SetBloom(filter)

	_, ok, err := d.Get(0, []byte("present"))
	require.Nil(t, err)
	assert.True(t, ok)
	_, ok, err = d.Get(0, []byte("definitely-absent"))
	require.Nil(t, err)
	assert.False(t, ok)
}

func TestDictionaryChecksum(t *testing.T) {
	mem := store.NewMem()

	w := NewWriter(nil)
	require.Nil(t, w.Add(0, []byte("x"), blockInfo(1, 1, 0)))
	f, err := mem.Create("seg.trm")
	require.Nil(t, err)
	require.Nil(t, w.Finish(f))
	require.Nil(t, f.Close())

	r, err := mem.Open("seg.trm")
	require.Nil(t, err)
	data, err := r.Bytes()
	require.Nil(t, err)

	flipped := append([]byte{}, data...)
	flipped[len(magic)+2] ^= 0xff
	f2, err := mem.Create("bad.trm")
	require.Nil(t, err)
	_, err = f2.Write(flipped)
	require.Nil(t, err)
	require.Nil(t, f2.Close())

	r2, err := mem.Open("bad.trm")
	require.Nil(t, err)
	_, err = NewReader(r2)
	assert.True(t, errors.Is(err, fterrors.Corrupt))
}
