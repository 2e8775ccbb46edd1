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

// Package docstore holds the per-document side files of a segment: stored
// field values, dense field lengths, the deletion bitset and optional term
// vectors. Documents are addressed by their segment-local doc ID, assigned
// densely from 0 in insertion order.
package docstore

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

const storedVersion = 1

var storedMagic = []byte{'w', 's', 't', 'v'}

// StoredWriter accumulates msgpack-encoded documents and a fixed-width
// offset table for random access.
type StoredWriter struct {
	buf     []byte
	offsets []uint64
}

func NewStoredWriter() *StoredWriter {
	buf := append([]byte{}, storedMagic...)
	buf = append(buf, storedVersion)
	return &StoredWriter{buf: buf}
}

// Add appends the stored fields of the next doc ID and returns it.
func (w *StoredWriter) Add(fields map[string]storobj.Value) (uint64, error) {
	blob, err := storobj.MarshalFields(fields)
	if err != nil {
		return 0, err
	}
	docID := uint64(len(w.offsets))
	w.offsets = append(w.offsets, uint64(len(w.buf)))
	w.buf = byteops.AppendPrefixedBytes(w.buf, blob)
	return docID, nil
}

// AddRaw appends an already-encoded document blob, used when carrying docs
// over during a merge without a decode round trip.
func (w *StoredWriter) AddRaw(blob []byte) uint64 {
	docID := uint64(len(w.offsets))
	w.offsets = append(w.offsets, uint64(len(w.buf)))
	w.buf = byteops.AppendPrefixedBytes(w.buf, blob)
	return docID
}

func (w *StoredWriter) NumDocs() uint64 {
	return uint64(len(w.offsets))
}

func (w *StoredWriter) Finish(dst store.Writer) error {
	tableOffset := uint64(len(w.buf))
	for _, off := range w.offsets {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, off)
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, tableOffset)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(len(w.offsets)))
	w.buf = binary.LittleEndian.AppendUint32(w.buf, crc32.ChecksumIEEE(w.buf))
	w.buf = append(w.buf, storedMagic...)
	if _, err := dst.Write(w.buf); err != nil {
		return errors.Wrap(err, "write docstore")
	}
	return nil
}

// StoredReader decodes documents on demand from the file bytes.
type StoredReader struct {
	data        []byte
	tableOffset uint64
	numDocs     uint64
}

func NewStoredReader(r store.Reader) (*StoredReader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read docstore")
	}
	if err := checkEnvelope(data, storedMagic, storedVersion); err != nil {
		return nil, err
	}
	if len(data) < len(storedMagic)+1+24 {
		return nil, errors.Wrap(fterrors.Corrupt, "docstore trailer truncated")
	}
	sr := &StoredReader{
		data:        data,
		tableOffset: binary.LittleEndian.Uint64(data[len(data)-24:]),
		numDocs:     binary.LittleEndian.Uint64(data[len(data)-16:]),
	}
	if sr.tableOffset+sr.numDocs*8 > uint64(len(data)) {
		return nil, errors.Wrap(fterrors.Corrupt, "docstore offset table out of range")
	}
	return sr, nil
}

func (r *StoredReader) NumDocs() uint64 {
	return r.numDocs
}

// Doc decodes the stored fields of docID.
func (r *StoredReader) Doc(docID uint64) (map[string]storobj.Value, error) {
	blob, err := r.RawDoc(docID)
	if err != nil {
		return nil, err
	}
	return storobj.UnmarshalFields(blob)
}

// RawDoc returns the encoded blob of docID without decoding it.
func (r *StoredReader) RawDoc(docID uint64) ([]byte, error) {
	if docID >= r.numDocs {
		return nil, errors.Wrapf(fterrors.NotFound, "doc %d of %d", docID, r.numDocs)
	}
	off := binary.LittleEndian.Uint64(r.data[r.tableOffset+docID*8:])
	if off >= r.tableOffset {
		return nil, errors.Wrap(fterrors.Corrupt, "doc offset past table")
	}
	blob, _, err := byteops.PrefixedBytes(r.data[off:r.tableOffset])
	return blob, err
}

// checkEnvelope validates the shared framing of the docstore side files:
// magic and version up front, crc32 over everything before the trailer and
// the magic repeated at the very end. Fixed trailer fields of the concrete
// file sit before the crc and are covered by it.
func checkEnvelope(data, magic []byte, version byte) error {
	if len(data) < len(magic)+1+4+len(magic) {
		return errors.Wrap(fterrors.Corrupt, "file too short")
	}
	if !bytes.Equal(data[:len(magic)], magic) ||
		!bytes.Equal(data[len(data)-len(magic):], magic) {
		return errors.Wrap(fterrors.Corrupt, "bad magic")
	}
	if data[len(magic)] != version {
		return errors.Wrapf(fterrors.Corrupt, "unsupported version %d", data[len(magic)])
	}
	crcPos := len(data) - len(magic) - 4
	want := binary.LittleEndian.Uint32(data[crcPos:])
	if got := crc32.ChecksumIEEE(data[:crcPos]); got != want {
		return errors.Wrapf(fterrors.Corrupt, "checksum %08x, expected %08x", got, want)
	}
	return nil
}
