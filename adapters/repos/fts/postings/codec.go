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

package postings

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

// Block layout:
//
//	uvarint count
//	uvarint maxDocDelta      (maxDoc - baseDoc)
//	uvarint maxFreq
//	byte    minLengthByte
//	byte    maxLengthByte
//	float64 impact           (little-endian bits)
//	count doc deltas         (uvarint, first relative to baseDoc and >= 0, rest >= 1)
//	count freqs              (uvarint, stored as freq-1)
//	if positions:
//	    per posting: uvarint posCount, posCount uvarint position deltas
//
// The header repeats what the dictionary pointer caches so a block stays
// decodable in isolation.

// EncodeBlock appends the encoded form of the given postings to buf and
// returns the extended buffer plus the pointer describing the block. The
// postings must be non-empty and strictly increasing by doc ID, the first one
// at or above baseDoc.
func EncodeBlock(buf []byte, ps []Posting, baseDoc uint64, hasPositions bool,
	quality QualityFunc,
) ([]byte, BlockPointer, error) {
	if len(ps) == 0 || len(ps) > BlockSize {
		return nil, BlockPointer{}, errors.Wrapf(fterrors.Corrupt,
			"block of %d postings", len(ps))
	}

	maxFreq := uint32(0)
	minLenByte := byte(255)
	maxLenByte := byte(0)
	prev := baseDoc
	for i, p := range ps {
		if i == 0 && p.DocID < baseDoc {
			return nil, BlockPointer{}, errors.Wrap(fterrors.Corrupt,
				"posting before block base")
		}
		if i > 0 && p.DocID <= prev {
			return nil, BlockPointer{}, errors.Wrap(fterrors.Corrupt,
				"doc IDs not strictly increasing")
		}
		prev = p.DocID
		if p.Freq > maxFreq {
			maxFreq = p.Freq
		}
		lb := byteops.LengthToByte(p.Length)
		if lb < minLenByte {
			minLenByte = lb
		}
		if lb > maxLenByte {
			maxLenByte = lb
		}
	}

	impact := 0.0
	if quality != nil {
		impact = quality(maxFreq, byteops.ByteToLength(minLenByte))
	}

	start := len(buf)
	maxDoc := ps[len(ps)-1].DocID
	buf = binary.AppendUvarint(buf, uint64(len(ps)))
	buf = binary.AppendUvarint(buf, maxDoc-baseDoc)
	buf = binary.AppendUvarint(buf, uint64(maxFreq))
	buf = append(buf, minLenByte, maxLenByte)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(impact))

	prev = baseDoc
	for i, p := range ps {
		delta := p.DocID - prev
		if i == 0 && delta == 0 {
			// the very first posting of a list may be doc 0
			buf = binary.AppendUvarint(buf, 0)
		} else {
			buf = binary.AppendUvarint(buf, delta)
		}
		prev = p.DocID
	}
	for _, p := range ps {
		if p.Freq == 0 {
			return nil, BlockPointer{}, errors.Wrap(fterrors.Corrupt, "zero term frequency")
		}
		buf = binary.AppendUvarint(buf, uint64(p.Freq-1))
	}
	if hasPositions {
		for _, p := range ps {
			buf = binary.AppendUvarint(buf, uint64(len(p.Positions)))
			prevPos := uint32(0)
			for i, pos := range p.Positions {
				if i > 0 && pos <= prevPos {
					return nil, BlockPointer{}, errors.Wrap(fterrors.Corrupt,
						"positions not strictly increasing")
				}
				buf = binary.AppendUvarint(buf, uint64(pos-prevPos))
				prevPos = pos
			}
		}
	}

	ptr := BlockPointer{
		Length:        uint32(len(buf) - start),
		BaseDoc:       baseDoc,
		MaxDoc:        maxDoc,
		MaxFreq:       maxFreq,
		MinLengthByte: minLenByte,
		Impact:        impact,
	}
	return buf, ptr, nil
}

// DecodeBlock decodes one block. baseDoc must be the pointer's BaseDoc.
func DecodeBlock(data []byte, baseDoc uint64, hasPositions bool) (Block, error) {
	var out Block

	count, n, err := byteops.Uvarint(data)
	if err != nil {
		return out, err
	}
	if count == 0 || count > BlockSize {
		return out, errors.Wrapf(fterrors.Corrupt, "block count %d", count)
	}
	data = data[n:]

	// maxDocDelta, maxFreq, length bytes, impact: skipped, the decoder
	// recomputes nothing from them and matchers read them via the pointer
	if _, n, err = byteops.Uvarint(data); err != nil {
		return out, err
	}
	data = data[n:]
	if _, n, err = byteops.Uvarint(data); err != nil {
		return out, err
	}
	data = data[n:]
	if len(data) < 2+8 {
		return out, errors.Wrap(fterrors.Corrupt, "truncated block header")
	}
	data = data[2+8:]

	out.Docs = make([]uint64, count)
	prev := baseDoc
	for i := uint64(0); i < count; i++ {
		delta, n, err := byteops.Uvarint(data)
		if err != nil {
			return out, err
		}
		data = data[n:]
		doc := prev + delta
		if i > 0 && delta == 0 {
			return out, errors.Wrap(fterrors.Corrupt, "doc IDs not strictly increasing")
		}
		out.Docs[i] = doc
		prev = doc
	}

	out.Freqs = make([]uint32, count)
	for i := uint64(0); i < count; i++ {
		f, n, err := byteops.Uvarint(data)
		if err != nil {
			return out, err
		}
		data = data[n:]
		out.Freqs[i] = uint32(f) + 1
	}

	if hasPositions {
		out.Positions = make([][]uint32, count)
		for i := uint64(0); i < count; i++ {
			posCount, n, err := byteops.Uvarint(data)
			if err != nil {
				return out, err
			}
			data = data[n:]
			positions := make([]uint32, posCount)
			pos := uint32(0)
			for j := uint64(0); j < posCount; j++ {
				delta, n, err := byteops.Uvarint(data)
				if err != nil {
					return out, err
				}
				data = data[n:]
				pos += uint32(delta)
				positions[j] = pos
			}
			out.Positions[i] = positions
		}
	}

	return out, nil
}
