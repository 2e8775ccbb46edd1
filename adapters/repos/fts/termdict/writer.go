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
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/pkg/errors"
	"github.com/willf/bloom"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

// bloomFalsePositiveRate matches the sidecar sizing to roughly 1 wasted
// dictionary probe per 100 misses.
const bloomFalsePositiveRate = 0.01

// Writer builds the dictionary in memory and serializes it in one pass on
// Finish. Entries must be added in (field, term) order.
type Writer struct {
	buf       []byte
	index     []indexEntry
	keys      [][]byte
	count     uint64
	lastField uint16
	lastTerm  []byte
	started   bool
	finished  bool
}

type indexEntry struct {
	fieldID uint16
	term    []byte
	offset  uint64
	ordinal uint64
}

// NewWriter starts a dictionary whose header blob (opaque to this package,
// the segment writer stores its msgpack header there) precedes the entries.
func NewWriter(header []byte) *Writer {
	buf := append([]byte{}, magic...)
	buf = append(buf, version)
	buf = byteops.AppendPrefixedBytes(buf, header)
	return &Writer{buf: buf}
}

// Add appends one entry. Terms must arrive strictly increasing within a
// field and fields in increasing ID order.
func (w *Writer) Add(fieldID uint16, term []byte, info TermInfo) error {
	if w.finished {
		return errors.Wrap(fterrors.IndexingError, "add after finish")
	}
	if w.started {
		if fieldID < w.lastField ||
			(fieldID == w.lastField && bytes.Compare(term, w.lastTerm) <= 0) {
			return errors.Wrapf(fterrors.IndexingError,
				"term %q of field %d out of order", term, fieldID)
		}
	}
	if info.Inline == nil && len(info.Blocks) == 0 {
		return errors.Wrapf(fterrors.IndexingError,
			"term %q has neither inline posting nor blocks", term)
	}
	if info.Inline != nil && len(info.Blocks) > 0 {
		return errors.Wrapf(fterrors.IndexingError,
			"term %q has both inline posting and blocks", term)
	}
	w.started = true
	w.lastField = fieldID
	w.lastTerm = append(w.lastTerm[:0], term...)

	if w.count%indexInterval == 0 {
		w.index = append(w.index, indexEntry{
			fieldID: fieldID,
			term:    append([]byte{}, term...),
			offset:  uint64(len(w.buf)),
			ordinal: w.count,
		})
	}
	w.keys = append(w.keys, bloomKey(fieldID, term))
	w.count++

	w.buf = byteops.AppendUvarint(w.buf, uint64(fieldID))
	w.buf = byteops.AppendPrefixedBytes(w.buf, term)

	flags := entryFlags(0)
	if info.Inline != nil {
		flags |= flagInline
		if len(info.Inline.Positions) > 0 {
			flags |= flagInlinePositions
		}
	}
	w.buf = append(w.buf, byte(flags))
	w.buf = byteops.AppendUvarint(w.buf, info.DF)
	w.buf = byteops.AppendUvarint(w.buf, info.CF)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(info.MaxQuality))

	if info.Inline != nil {
		p := info.Inline
		if p.Freq == 0 {
			return errors.Wrapf(fterrors.IndexingError,
				"term %q inline posting with zero frequency", term)
		}
		w.buf = byteops.AppendUvarint(w.buf, p.DocID)
		w.buf = byteops.AppendUvarint(w.buf, uint64(p.Freq-1))
		if flags&flagInlinePositions != 0 {
			w.buf = byteops.AppendUvarint(w.buf, uint64(len(p.Positions)))
			prev := uint32(0)
			for _, pos := range p.Positions {
				w.buf = byteops.AppendUvarint(w.buf, uint64(pos-prev))
				prev = pos
			}
		}
		return nil
	}

	w.buf = byteops.AppendUvarint(w.buf, uint64(len(info.Blocks)))
	prevOffset := uint64(0)
	prevBase := uint64(0)
	for i, b := range info.Blocks {
		if i > 0 && (b.Offset < prevOffset || b.BaseDoc < prevBase) {
			return errors.Wrapf(fterrors.IndexingError,
				"term %q block pointers out of order", term)
		}
		w.buf = byteops.AppendUvarint(w.buf, b.Offset-prevOffset)
		w.buf = byteops.AppendUvarint(w.buf, uint64(b.Length))
		w.buf = byteops.AppendUvarint(w.buf, b.BaseDoc-prevBase)
		w.buf = byteops.AppendUvarint(w.buf, b.MaxDoc-b.BaseDoc)
		w.buf = byteops.AppendUvarint(w.buf, uint64(b.MaxFreq))
		w.buf = append(w.buf, b.MinLengthByte)
		w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(b.Impact))
		prevOffset = b.Offset
		prevBase = b.BaseDoc
	}
	return nil
}

// NumTerms returns the number of entries added so far.
func (w *Writer) NumTerms() uint64 {
	return w.count
}

// Finish appends the sparse index and footer, then writes the whole
// dictionary to dst. The writer cannot be reused afterwards.
func (w *Writer) Finish(dst store.Writer) error {
	if w.finished {
		return errors.Wrap(fterrors.IndexingError, "finish called twice")
	}
	w.finished = true

	indexOffset := uint64(len(w.buf))
	w.buf = byteops.AppendUvarint(w.buf, uint64(len(w.index)))
	for _, e := range w.index {
		w.buf = byteops.AppendUvarint(w.buf, uint64(e.fieldID))
		w.buf = byteops.AppendPrefixedBytes(w.buf, e.term)
		w.buf = byteops.AppendUvarint(w.buf, e.offset)
		w.buf = byteops.AppendUvarint(w.buf, e.ordinal)
	}

	w.buf = binary.LittleEndian.AppendUint64(w.buf, indexOffset)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, w.count)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, crc32.ChecksumIEEE(w.buf))
	w.buf = append(w.buf, magic...)

	if _, err := dst.Write(w.buf); err != nil {
		return errors.Wrap(err, "write term dictionary")
	}
	return nil
}

// WriteBloom builds the bloom sidecar over all added keys and writes it to
// dst. Call after Finish.
func (w *Writer) WriteBloom(dst store.Writer) error {
	n := uint(len(w.keys))
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(n, bloomFalsePositiveRate)
	for _, k := range w.keys {
		f.Add(k)
	}
	if _, err := f.WriteTo(dst); err != nil {
		return errors.Wrap(err, "write bloom sidecar")
	}
	return nil
}

// bloomKey is the sidecar key of one dictionary entry.
func bloomKey(fieldID uint16, term []byte) []byte {
	k := byteops.AppendUvarint(make([]byte, 0, 3+len(term)), uint64(fieldID))
	return append(k, term...)
}
