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

import "math/bits"

// Field lengths are stored in one byte using a small-float mapping with a
// 4-bit mantissa: lengths below 16 are exact, larger lengths fall into
// logarithmic buckets of 8 per power of two. The mapping is monotonic
// non-decreasing in both directions. ByteToLength returns the lower bound of
// the bucket, so ByteToLength(LengthToByte(n)) <= n always holds, which
// keeps score upper bounds derived from encoded lengths valid.

// LengthToByte encodes a field length into its one-byte approximation.
func LengthToByte(length uint32) byte {
	if length < 16 {
		return byte(length)
	}
	e := uint32(31 - bits.LeadingZeros32(length))
	mant := length >> (e - 3)
	b := (e-3)*8 + mant
	if b > 255 {
		return 255
	}
	return byte(b)
}

// ByteToLength decodes the approximation back to the bucket's lower bound.
func ByteToLength(b byte) uint32 {
	if b < 16 {
		return uint32(b)
	}
	if b > 239 {
		// never produced by LengthToByte, whose largest code is 239
		return 1<<32 - 1
	}
	e := uint32(b>>3) + 2
	mant := uint32(b&7) + 8
	return mant << (e - 3)
}
