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

package byteops

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

func TestSmallFloatExactBelowSixteen(t *testing.T) {
	for n := uint32(0); n < 16; n++ {
		assert.Equal(t, n, ByteToLength(LengthToByte(n)))
	}
}

func TestSmallFloatMonotonic(t *testing.T) {
	prev := byte(0)
	for n := uint32(0); n < 1<<20; n++ {
		b := LengthToByte(n)
		require.GreaterOrEqual(t, b, prev, "length %d", n)
		prev = b
	}

	prevLen := uint32(0)
	for b := 0; b < 256; b++ {
		l := ByteToLength(byte(b))
		require.GreaterOrEqual(t, l, prevLen, "byte %d", b)
		prevLen = l
	}
}

func TestSmallFloatLowerBound(t *testing.T) {
	cases := []uint32{0, 1, 15, 16, 17, 100, 255, 256, 1000, 65535, 1 << 24, math.MaxUint32}
	for _, n := range cases {
		assert.LessOrEqual(t, ByteToLength(LengthToByte(n)), n, "length %d", n)
	}
}

func TestSortableInt64Order(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 32, -1000, -1, 0, 1, 1000, 1 << 32, math.MaxInt64}
	for i := 1; i < len(values); i++ {
		a := AppendSortableInt64(nil, values[i-1])
		b := AppendSortableInt64(nil, values[i])
		assert.Negative(t, bytes.Compare(a, b), "%d before %d", values[i-1], values[i])
	}
	for _, v := range values {
		assert.Equal(t, v, FromSortableInt64(SortableInt64(v)))
	}
}

func TestSortableFloat64Order(t *testing.T) {
	values := []float64{
		math.Inf(-1), -math.MaxFloat64, -1e10, -1.5, -math.SmallestNonzeroFloat64,
		0, math.SmallestNonzeroFloat64, 1.5, 1e10, math.MaxFloat64, math.Inf(1),
	}
	for i := 1; i < len(values); i++ {
		a := AppendSortableFloat64(nil, values[i-1])
		b := AppendSortableFloat64(nil, values[i])
		assert.Negative(t, bytes.Compare(a, b), "%g before %g", values[i-1], values[i])
	}
	for _, v := range values {
		assert.Equal(t, v, FromSortableFloat64(SortableFloat64(v)))
	}
}

func TestVarintRoundTrip(t *testing.T) {
	t.Run("uvarint", func(t *testing.T) {
		for _, v := range []uint64{0, 1, 127, 128, 1 << 20, math.MaxUint64} {
			buf := AppendUvarint(nil, v)
			got, n, err := Uvarint(buf)
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Equal(t, len(buf), n)
		}
	})

	t.Run("svarint", func(t *testing.T) {
		for _, v := range []int64{0, -1, 1, -64, 63, math.MinInt64, math.MaxInt64} {
			buf := AppendSvarint(nil, v)
			got, n, err := Svarint(buf)
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Equal(t, len(buf), n)
		}
	})

	t.Run("small magnitudes stay short", func(t *testing.T) {
		assert.Len(t, AppendSvarint(nil, -64), 1)
		assert.Len(t, AppendSvarint(nil, 63), 1)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Uvarint(nil)
		assert.ErrorIs(t, err, fterrors.Corrupt)

		buf := AppendUvarint(nil, 1<<20)
		_, _, err = Uvarint(buf[:1])
		assert.ErrorIs(t, err, fterrors.Corrupt)
	})
}

func TestPrefixedBytes(t *testing.T) {
	buf := AppendPrefixedBytes(nil, []byte("hello"))
	buf = AppendPrefixedBytes(buf, nil)
	buf = AppendPrefixedBytes(buf, []byte("world"))

	b, n, err := PrefixedBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)

	b, m, err := PrefixedBytes(buf[n:])
	require.NoError(t, err)
	assert.Empty(t, b)

	b, _, err = PrefixedBytes(buf[n+m:])
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), b)

	t.Run("truncated payload", func(t *testing.T) {
		short := AppendPrefixedBytes(nil, []byte("hello"))
		_, _, err := PrefixedBytes(short[:3])
		assert.ErrorIs(t, err, fterrors.Corrupt)
	})
}

func TestReadWriterRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	w := NewReadWriter(buf)
	w.WriteUint8(7)
	w.WriteUint16(512)
	w.WriteUint32(1 << 30)
	w.WriteUint64(1 << 40)
	require.NoError(t, w.CopyBytesToBufferWithUint32LengthIndicator([]byte("abc")))

	r := NewReadWriter(buf)
	assert.Equal(t, byte(7), r.ReadUint8())
	assert.Equal(t, uint16(512), r.ReadUint16())
	assert.Equal(t, uint32(1<<30), r.ReadUint32())
	assert.Equal(t, uint64(1<<40), r.ReadUint64())
	assert.Equal(t, []byte("abc"), r.ReadBytesFromBufferWithUint32LengthIndicator())
	assert.Equal(t, w.Position, r.Position)
}
