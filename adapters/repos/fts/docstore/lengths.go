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
	"encoding/binary"
	"hash/crc32"
	"sort"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

const lengthsVersion = 1

var lengthsMagic = []byte{'w', 'f', 'l', 'n'}

// LengthsWriter collects the one-byte field length of every doc for each
// scorable field. The dense column layout gives scorers O(1) access without
// touching stored values.
type LengthsWriter struct {
	cols    map[uint16][]byte
	totals  map[uint16]uint64
	numDocs uint64
}

func NewLengthsWriter() *LengthsWriter {
	return &LengthsWriter{
		cols:   map[uint16][]byte{},
		totals: map[uint16]uint64{},
	}
}

// AddDoc records the token counts of the next doc ID. Fields absent from
// the map get length 0.
func (w *LengthsWriter) AddDoc(lengths map[uint16]uint32) uint64 {
	docID := w.numDocs
	w.numDocs++
	for fieldID, length := range lengths {
		col, ok := w.cols[fieldID]
		if !ok {
			col = make([]byte, 0, w.numDocs)
		}
		for uint64(len(col)) < docID {
			col = append(col, 0)
		}
		col = append(col, byteops.LengthToByte(length))
		w.cols[fieldID] = col
		w.totals[fieldID] += uint64(length)
	}
	return docID
}

func (w *LengthsWriter) NumDocs() uint64 {
	return w.numDocs
}

// TotalTokens returns the exact token count accumulated for a field so far.
func (w *LengthsWriter) TotalTokens(fieldID uint16) uint64 {
	return w.totals[fieldID]
}

func (w *LengthsWriter) Finish(dst store.Writer) error {
	buf := append([]byte{}, lengthsMagic...)
	buf = append(buf, lengthsVersion)
	buf = byteops.AppendUvarint(buf, w.numDocs)

	fieldIDs := make([]uint16, 0, len(w.cols))
	for fieldID := range w.cols {
		fieldIDs = append(fieldIDs, fieldID)
	}
	sort.Slice(fieldIDs, func(i, j int) bool { return fieldIDs[i] < fieldIDs[j] })

	buf = byteops.AppendUvarint(buf, uint64(len(fieldIDs)))
	for _, fieldID := range fieldIDs {
		col := w.cols[fieldID]
		for uint64(len(col)) < w.numDocs {
			col = append(col, 0)
		}
		buf = byteops.AppendUvarint(buf, uint64(fieldID))
		buf = byteops.AppendUvarint(buf, w.totals[fieldID])
		buf = append(buf, col...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	buf = append(buf, lengthsMagic...)
	if _, err := dst.Write(buf); err != nil {
		return errors.Wrap(err, "write field lengths")
	}
	return nil
}

// LengthsReader serves per-doc field lengths and the per-field aggregates
// scorers need for length normalization.
type LengthsReader struct {
	numDocs uint64
	cols    map[uint16][]byte
	totals  map[uint16]uint64
}

func NewLengthsReader(r store.Reader) (*LengthsReader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read field lengths")
	}
	if err := checkEnvelope(data, lengthsMagic, lengthsVersion); err != nil {
		return nil, err
	}
	buf := data[len(lengthsMagic)+1 : len(data)-8]

	lr := &LengthsReader{
		cols:   map[uint16][]byte{},
		totals: map[uint16]uint64{},
	}
	n := 0
	if lr.numDocs, n, err = byteops.Uvarint(buf); err != nil {
		return nil, err
	}
	buf = buf[n:]
	fieldCount, n, err := byteops.Uvarint(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[n:]
	for i := uint64(0); i < fieldCount; i++ {
		fid, n, err := byteops.Uvarint(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		total, n, err := byteops.Uvarint(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		if uint64(len(buf)) < lr.numDocs {
			return nil, errors.Wrap(fterrors.Corrupt, "truncated length column")
		}
		lr.cols[uint16(fid)] = buf[:lr.numDocs]
		lr.totals[uint16(fid)] = total
		buf = buf[lr.numDocs:]
	}
	return lr, nil
}

func (r *LengthsReader) NumDocs() uint64 {
	return r.numDocs
}

// Length returns the decoded (bucketed) token count of the field in docID,
// 0 when the field is unknown or empty in that doc.
func (r *LengthsReader) Length(fieldID uint16, docID uint64) uint32 {
	col, ok := r.cols[fieldID]
	if !ok || docID >= uint64(len(col)) {
		return 0
	}
	return byteops.ByteToLength(col[docID])
}

// LengthByte returns the raw encoded length byte.
func (r *LengthsReader) LengthByte(fieldID uint16, docID uint64) byte {
	col, ok := r.cols[fieldID]
	if !ok || docID >= uint64(len(col)) {
		return 0
	}
	return col[docID]
}

// TotalTokens returns the exact token count of the field across the
// segment, tracked at index time rather than summed from the lossy bytes.
func (r *LengthsReader) TotalTokens(fieldID uint16) uint64 {
	return r.totals[fieldID]
}

// AvgLength returns the average field length over all docs of the segment.
func (r *LengthsReader) AvgLength(fieldID uint16) float64 {
	if r.numDocs == 0 {
		return 0
	}
	return float64(r.totals[fieldID]) / float64(r.numDocs)
}

// Fields returns the field IDs carrying a length column, sorted.
func (r *LengthsReader) Fields() []uint16 {
	out := make([]uint16, 0, len(r.cols))
	for fieldID := range r.cols {
		out = append(out, fieldID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
