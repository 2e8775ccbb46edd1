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

const vectorsVersion = 1

var vectorsMagic = []byte{'w', 'v', 'p', 's'}

// TermVectorEntry is one term of a document's term vector, with its
// occurrence count and, when the field records them, token positions.
type TermVectorEntry struct {
	Term      []byte
	Freq      uint32
	Positions []uint32
}

// VectorsWriter serializes per-doc term vectors. Docs must be added in
// doc ID order, every doc gets an entry even when no field stores vectors.
type VectorsWriter struct {
	buf     []byte
	offsets []uint64
}

func NewVectorsWriter() *VectorsWriter {
	buf := append([]byte{}, vectorsMagic...)
	buf = append(buf, vectorsVersion)
	return &VectorsWriter{buf: buf}
}

// AddDoc appends the vectors of the next doc ID, keyed by field. Entries of
// each field must be sorted by term.
func (w *VectorsWriter) AddDoc(fields map[uint16][]TermVectorEntry) uint64 {
	docID := uint64(len(w.offsets))
	w.offsets = append(w.offsets, uint64(len(w.buf)))

	fieldIDs := make([]uint16, 0, len(fields))
	for fieldID := range fields {
		if len(fields[fieldID]) == 0 {
			continue
		}
		fieldIDs = append(fieldIDs, fieldID)
	}
	sort.Slice(fieldIDs, func(i, j int) bool { return fieldIDs[i] < fieldIDs[j] })

	w.buf = byteops.AppendUvarint(w.buf, uint64(len(fieldIDs)))
	for _, fieldID := range fieldIDs {
		entries := fields[fieldID]
		w.buf = byteops.AppendUvarint(w.buf, uint64(fieldID))
		w.buf = byteops.AppendUvarint(w.buf, uint64(len(entries)))
		for _, e := range entries {
			w.buf = byteops.AppendPrefixedBytes(w.buf, e.Term)
			w.buf = byteops.AppendUvarint(w.buf, uint64(e.Freq))
			w.buf = byteops.AppendUvarint(w.buf, uint64(len(e.Positions)))
			prev := uint32(0)
			for _, pos := range e.Positions {
				w.buf = byteops.AppendUvarint(w.buf, uint64(pos-prev))
				prev = pos
			}
		}
	}
	return docID
}

func (w *VectorsWriter) NumDocs() uint64 {
	return uint64(len(w.offsets))
}

func (w *VectorsWriter) Finish(dst store.Writer) error {
	tableOffset := uint64(len(w.buf))
	for _, off := range w.offsets {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, off)
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, tableOffset)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(len(w.offsets)))
	w.buf = binary.LittleEndian.AppendUint32(w.buf, crc32.ChecksumIEEE(w.buf))
	w.buf = append(w.buf, vectorsMagic...)
	if _, err := dst.Write(w.buf); err != nil {
		return errors.Wrap(err, "write term vectors")
	}
	return nil
}

// VectorsReader decodes per-doc term vectors on demand.
type VectorsReader struct {
	data        []byte
	tableOffset uint64
	numDocs     uint64
}

func NewVectorsReader(r store.Reader) (*VectorsReader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read term vectors")
	}
	if err := checkEnvelope(data, vectorsMagic, vectorsVersion); err != nil {
		return nil, err
	}
	if len(data) < len(vectorsMagic)+1+24 {
		return nil, errors.Wrap(fterrors.Corrupt, "term vectors trailer truncated")
	}
	vr := &VectorsReader{
		data:        data,
		tableOffset: binary.LittleEndian.Uint64(data[len(data)-24:]),
		numDocs:     binary.LittleEndian.Uint64(data[len(data)-16:]),
	}
	if vr.tableOffset+vr.numDocs*8 > uint64(len(data)) {
		return nil, errors.Wrap(fterrors.Corrupt, "term vectors offset table out of range")
	}
	return vr, nil
}

func (r *VectorsReader) NumDocs() uint64 {
	return r.numDocs
}

// Doc returns the term vectors of docID keyed by field ID. Docs without
// vectors yield an empty map.
func (r *VectorsReader) Doc(docID uint64) (map[uint16][]TermVectorEntry, error) {
	if docID >= r.numDocs {
		return nil, errors.Wrapf(fterrors.NotFound, "doc %d of %d", docID, r.numDocs)
	}
	off := binary.LittleEndian.Uint64(r.data[r.tableOffset+docID*8:])
	if off >= r.tableOffset {
		return nil, errors.Wrap(fterrors.Corrupt, "vector offset past table")
	}
	buf := r.data[off:r.tableOffset]

	fieldCount, n, err := byteops.Uvarint(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[n:]
	out := make(map[uint16][]TermVectorEntry, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		fid, n, err := byteops.Uvarint(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		termCount, n, err := byteops.Uvarint(buf)
		if err != nil {
			return nil, err
		}
		buf = buf[n:]
		entries := make([]TermVectorEntry, termCount)
		for j := uint64(0); j < termCount; j++ {
			e := &entries[j]
			term, n, err := byteops.PrefixedBytes(buf)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
			e.Term = term
			freq, n, err := byteops.Uvarint(buf)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
			e.Freq = uint32(freq)
			posCount, n, err := byteops.Uvarint(buf)
			if err != nil {
				return nil, err
			}
			buf = buf[n:]
			if posCount > 0 {
				e.Positions = make([]uint32, posCount)
				pos := uint32(0)
				for k := uint64(0); k < posCount; k++ {
					delta, n, err := byteops.Uvarint(buf)
					if err != nil {
						return nil, err
					}
					buf = buf[n:]
					pos += uint32(delta)
					e.Positions[k] = pos
				}
			}
		}
		out[uint16(fid)] = entries
	}
	return out, nil
}
