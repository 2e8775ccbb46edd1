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
	"encoding/binary"
	"math"
)

// SortableFloat64 transforms f so that the unsigned comparison of the result
// matches the numeric comparison of the inputs: positives get the sign bit
// flipped, negatives get all bits flipped. Written big-endian, lexicographic
// byte compare then equals numeric compare, which range scans rely on.
func SortableFloat64(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func FromSortableFloat64(u uint64) float64 {
	if u&(1<<63) != 0 {
		return math.Float64frombits(u &^ (1 << 63))
	}
	return math.Float64frombits(^u)
}

// SortableInt64 maps signed ints onto the unsigned order by flipping the
// sign bit.
func SortableInt64(v int64) uint64 {
	return uint64(v) ^ (1 << 63)
}

func FromSortableInt64(u uint64) int64 {
	return int64(u ^ (1 << 63))
}

// AppendSortableFloat64 appends the order-preserving big-endian form.
func AppendSortableFloat64(buf []byte, f float64) []byte {
	return binary.BigEndian.AppendUint64(buf, SortableFloat64(f))
}

// AppendSortableInt64 appends the order-preserving big-endian form.
func AppendSortableInt64(buf []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(buf, SortableInt64(v))
}
