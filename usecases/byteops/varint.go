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

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// AppendUvarint appends v in 7-bit little-endian continuation groups.
func AppendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// Uvarint decodes a uvarint from the start of buf, returning the value and
// the number of bytes consumed.
func Uvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, errors.Wrap(fterrors.Corrupt, "truncated uvarint")
	}
	return v, n, nil
}

// AppendSvarint appends v zig-zag coded over the unsigned form.
func AppendSvarint(buf []byte, v int64) []byte {
	return binary.AppendUvarint(buf, zigzag(v))
}

func Svarint(buf []byte) (int64, int, error) {
	u, n, err := Uvarint(buf)
	if err != nil {
		return 0, 0, err
	}
	return unzigzag(u), n, nil
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// AppendPrefixedBytes appends b with a uvarint length prefix.
func AppendPrefixedBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}

// PrefixedBytes reads a uvarint-length-prefixed byte string. The returned
// slice aliases buf.
func PrefixedBytes(buf []byte) ([]byte, int, error) {
	l, n, err := Uvarint(buf)
	if err != nil {
		return nil, 0, err
	}
	if uint64(len(buf)-n) < l {
		return nil, 0, errors.Wrap(fterrors.Corrupt, "truncated byte string")
	}
	return buf[n : n+int(l)], n + int(l), nil
}
