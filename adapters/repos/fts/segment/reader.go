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

package segment

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/docstore"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/termdict"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

// Reader is the read-only view over one segment. It binds to the segment
// files at open time: a deletion flush by a later writer is invisible until
// the segment is reopened.
type Reader struct {
	id     string
	hdr    Header
	schema *schema.Schema

	dict     *termdict.Reader
	postings store.Reader
	stored   *docstore.StoredReader
	lengths  *docstore.LengthsReader
	vectors  *docstore.VectorsReader
	deleted  *sroar.Bitmap

	closers []func() error
}

// Open opens all side files of segment id and validates the header against
// the current schema.
func Open(st store.Store, id string, sch *schema.Schema, logger logrus.FieldLogger) (*Reader, error) {
	r := &Reader{id: id, schema: sch}
	ok := false
	defer func() {
		if !ok {
			r.Close()
		}
	}()

	trm, err := st.Open(TermsFile(id))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, trm.Close)
	if r.dict, err = termdict.NewReader(trm); err != nil {
		return nil, errors.Wrapf(err, "segment %s", id)
	}
	if r.hdr, err = unmarshalHeader(r.dict.Header()); err != nil {
		return nil, errors.Wrapf(err, "segment %s", id)
	}
	if r.hdr.ID != id {
		return nil, errors.Wrapf(fterrors.Corrupt,
			"segment %s header claims id %s", id, r.hdr.ID)
	}
	if !sch.CompatibleWith(r.hdr.SchemaFingerprint) {
		return nil, errors.Wrapf(fterrors.SchemaMismatch,
			"segment %s written under fingerprint %x", id, r.hdr.SchemaFingerprint)
	}

	if blm, err := st.Open(BloomFile(id)); err == nil {
		r.closers = append(r.closers, blm.Close)
		filter, err := termdict.LoadBloom(blm)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %s", id)
		}
		r.dict.SetBloom(filter)
	} else if !errors.Is(err, fterrors.NotFound) {
		return nil, err
	}

	if r.postings, err = st.Open(PostingsFile(id)); err != nil {
		return nil, err
	}
	r.closers = append(r.closers, r.postings.Close)

	stv, err := st.Open(StoredFile(id))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, stv.Close)
	if r.stored, err = docstore.NewStoredReader(stv); err != nil {
		return nil, errors.Wrapf(err, "segment %s", id)
	}

	fln, err := st.Open(LengthsFile(id))
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, fln.Close)
	if r.lengths, err = docstore.NewLengthsReader(fln); err != nil {
		return nil, errors.Wrapf(err, "segment %s", id)
	}

	if r.hdr.HasVectors {
		vps, err := st.Open(VectorsFile(id))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, vps.Close)
		if r.vectors, err = docstore.NewVectorsReader(vps); err != nil {
			return nil, errors.Wrapf(err, "segment %s", id)
		}
	}

	if del, err := st.Open(DeletionsFile(id)); err == nil {
		r.closers = append(r.closers, del.Close)
		if r.deleted, err = docstore.LoadDeletions(del); err != nil {
			return nil, errors.Wrapf(err, "segment %s", id)
		}
	} else if !errors.Is(err, fterrors.NotFound) {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"action":  "segment_open",
		"segment": id,
		"docs":    r.hdr.DocCount,
		"terms":   r.dict.NumTerms(),
	}).Debug("opened segment")

	ok = true
	return r, nil
}

func (r *Reader) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

func (r *Reader) ID() string {
	return r.id
}

func (r *Reader) Schema() *schema.Schema {
	return r.schema
}

// DocCountAll returns the number of docs in the segment including deleted
// ones.
func (r *Reader) DocCountAll() uint64 {
	return r.hdr.DocCount
}

// DocCount returns the number of live docs.
func (r *Reader) DocCount() uint64 {
	if r.deleted == nil {
		return r.hdr.DocCount
	}
	return r.hdr.DocCount - uint64(r.deleted.GetCardinality())
}

func (r *Reader) HasDeletions() bool {
	return r.deleted != nil && !r.deleted.IsEmpty()
}

func (r *Reader) IsDeleted(docID uint64) bool {
	return r.deleted != nil && r.deleted.Contains(docID)
}

// Deleted returns the deletion bitset, nil when the segment has none. The
// bitmap is shared, callers must not mutate it.
func (r *Reader) Deleted() *sroar.Bitmap {
	return r.deleted
}

// TermInfo looks up one term of a named field.
func (r *Reader) TermInfo(field string, term []byte) (termdict.TermInfo, bool, error) {
	fieldID, ok := r.schema.FieldID(field)
	if !ok {
		return termdict.TermInfo{}, false, errors.Wrapf(fterrors.NotFound,
			"field %q", field)
	}
	return r.dict.Get(fieldID, term)
}

// Dict exposes the term dictionary for iteration-based expansion.
func (r *Reader) Dict() *termdict.Reader {
	return r.dict
}

// DocsWithTerm returns the local IDs of every doc containing the exact term,
// deleted docs included. A field unknown to this segment matches nothing.
func (r *Reader) DocsWithTerm(field string, term []byte) ([]uint64, error) {
	info, ok, err := r.TermInfo(field, term)
	if err != nil {
		if errors.Is(err, fterrors.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if info.Inline != nil {
		return []uint64{info.Inline.DocID}, nil
	}
	f, _ := r.schema.Field(field)
	var out []uint64
	for _, ptr := range info.Blocks {
		data, err := r.BlockData(ptr)
		if err != nil {
			return nil, err
		}
		block, err := postings.DecodeBlock(data, ptr.BaseDoc, f.Positions)
		if err != nil {
			return nil, err
		}
		out = append(out, block.Docs...)
	}
	return out, nil
}

// BlockData reads the raw bytes of one posting block.
func (r *Reader) BlockData(ptr postings.BlockPointer) ([]byte, error) {
	buf := make([]byte, ptr.Length)
	if _, err := r.postings.ReadAt(buf, int64(ptr.Offset)); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, "posting block read")
	}
	return buf, nil
}

// StoredFields returns the stored values of docID.
func (r *Reader) StoredFields(docID uint64) (map[string]storobj.Value, error) {
	return r.stored.Doc(docID)
}

// RawStoredFields returns the encoded stored blob, used by merges.
func (r *Reader) RawStoredFields(docID uint64) ([]byte, error) {
	return r.stored.RawDoc(docID)
}

// DocFieldLength returns the bucketed token count of a field in docID, or
// def when the field has no recorded length there.
func (r *Reader) DocFieldLength(docID uint64, field string, def uint32) uint32 {
	fieldID, ok := r.schema.FieldID(field)
	if !ok {
		return def
	}
	if l := r.lengths.Length(fieldID, docID); l > 0 {
		return l
	}
	return def
}

// FieldLength returns the exact total token count of a field in this
// segment.
func (r *Reader) FieldLength(field string) uint64 {
	fieldID, ok := r.schema.FieldID(field)
	if !ok {
		return 0
	}
	return r.lengths.TotalTokens(fieldID)
}

// AvgFieldLength returns the segment's average token count of a field.
func (r *Reader) AvgFieldLength(field string) float64 {
	fieldID, ok := r.schema.FieldID(field)
	if !ok {
		return 0
	}
	return r.lengths.AvgLength(fieldID)
}

// Lengths exposes the raw length columns for scorers.
func (r *Reader) Lengths() *docstore.LengthsReader {
	return r.lengths
}

// TermVector returns the term vector of a field in docID. Empty when the
// field does not record vectors.
func (r *Reader) TermVector(docID uint64, field string) ([]docstore.TermVectorEntry, error) {
	if r.vectors == nil {
		return nil, nil
	}
	fieldID, ok := r.schema.FieldID(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	vecs, err := r.vectors.Doc(docID)
	if err != nil {
		return nil, err
	}
	return vecs[fieldID], nil
}
