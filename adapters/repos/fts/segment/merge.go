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
	"bytes"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/docstore"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/priorityqueue"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/termdict"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/monitoring"
)

// MergeOptions configure one segment merge.
type MergeOptions struct {
	Quality QualityProvider
	Logger  logrus.FieldLogger
	Metrics *monitoring.Metrics
}

// Merge compacts the source segments into one new segment with the given ID.
// Deleted docs are dropped and the survivors renumbered densely, sources in
// order. Sources must all be open under the same schema. The new segment's
// files are written fsynced, but nothing is published: the caller swaps the
// table of contents.
func Merge(st store.Store, id string, sources []*Reader, sch *schema.Schema,
	opts MergeOptions,
) (Header, error) {
	if len(sources) == 0 {
		return Header{}, errors.Wrap(fterrors.IndexingError, "merge of zero segments")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	started := time.Now()

	m := &merger{
		st:      st,
		sch:     sch,
		id:      id,
		opts:    opts,
		sources: sources,
		stored:  docstore.NewStoredWriter(),
		lengths: docstore.NewLengthsWriter(),
	}
	for _, f := range sch.Fields {
		if f.TermVector {
			m.hasVectors = true
		}
	}
	if m.hasVectors {
		m.vectors = docstore.NewVectorsWriter()
	}

	hdr, err := m.run()
	if err != nil {
		for _, name := range Files(id) {
			st.Delete(name)
		}
		return Header{}, err
	}

	sourceIDs := make([]string, len(sources))
	for i, r := range sources {
		sourceIDs[i] = r.ID()
	}
	opts.Logger.WithFields(logrus.Fields{
		"action":  "segment_merge",
		"segment": id,
		"sources": sourceIDs,
		"docs":    hdr.DocCount,
		"took":    time.Since(started),
	}).Info("merged segments")
	opts.Metrics.AddSegmentsMerged(len(sources))
	opts.Metrics.ObserveMergeDuration(time.Since(started).Seconds())
	return hdr, nil
}

type merger struct {
	st      store.Store
	sch     *schema.Schema
	id      string
	opts    MergeOptions
	sources []*Reader

	// remaps[src][oldDoc] is the new doc ID, only meaningful for live docs.
	remaps  [][]uint64
	numDocs uint64

	stored     *docstore.StoredWriter
	lengths    *docstore.LengthsWriter
	vectors    *docstore.VectorsWriter
	hasVectors bool
}

func (m *merger) run() (Header, error) {
	if err := m.copyDocs(); err != nil {
		return Header{}, err
	}

	hdr := Header{
		ID:                m.id,
		DocCount:          m.numDocs,
		SchemaFingerprint: m.sch.Fingerprint(),
		HasVectors:        m.hasVectors,
	}
	headerBlob, err := hdr.marshal()
	if err != nil {
		return Header{}, err
	}
	dict := termdict.NewWriter(headerBlob)
	pstBuf := append([]byte{}, postingsMagic...)

	pstBuf, err = m.mergeDicts(dict, pstBuf)
	if err != nil {
		return Header{}, err
	}
	if err := writeSegmentFiles(m.st, m.id, dict, pstBuf, m.stored, m.lengths,
		m.vectors); err != nil {
		return Header{}, err
	}
	return hdr, nil
}

// copyDocs renumbers the live docs of every source and carries their stored
// values, length columns and term vectors over unchanged.
func (m *merger) copyDocs() error {
	m.remaps = make([][]uint64, len(m.sources))
	for src, r := range m.sources {
		total := r.DocCountAll()
		remap := make([]uint64, total)
		fields := r.lengths.Fields()
		for docID := uint64(0); docID < total; docID++ {
			if r.IsDeleted(docID) {
				continue
			}
			remap[docID] = m.numDocs
			m.numDocs++

			blob, err := r.RawStoredFields(docID)
			if err != nil {
				return errors.Wrapf(err, "segment %s doc %d", r.ID(), docID)
			}
			m.stored.AddRaw(blob)

			lengths := map[uint16]uint32{}
			for _, fieldID := range fields {
				if b := r.lengths.LengthByte(fieldID, docID); b != 0 {
					lengths[fieldID] = byteops.ByteToLength(b)
				}
			}
			m.lengths.AddDoc(lengths)

			if m.vectors != nil {
				var vecs map[uint16][]docstore.TermVectorEntry
				if r.vectors != nil {
					if vecs, err = r.vectors.Doc(docID); err != nil {
						return errors.Wrapf(err, "segment %s doc %d", r.ID(), docID)
					}
				}
				m.vectors.AddDoc(vecs)
			}
		}
		m.remaps[src] = remap
	}
	return nil
}

// dictCursor walks one source dictionary during the k-way merge.
type dictCursor struct {
	source int
	it     *termdict.Iterator
}

// mergeDicts walks all source dictionaries in lockstep, re-encodes each
// term's surviving postings and feeds the new dictionary in key order.
func (m *merger) mergeDicts(dict *termdict.Writer, pstBuf []byte) ([]byte, error) {
	queue := priorityqueue.New[*dictCursor](len(m.sources),
		func(a, b *dictCursor) bool {
			if a.it.FieldID() != b.it.FieldID() {
				return a.it.FieldID() < b.it.FieldID()
			}
			if c := bytes.Compare(a.it.Term(), b.it.Term()); c != 0 {
				return c < 0
			}
			return a.source < b.source
		})
	for src, r := range m.sources {
		c := &dictCursor{source: src, it: r.Dict().Iter()}
		if c.it.Next() {
			queue.Insert(c)
		} else if err := c.it.Err(); err != nil {
			return nil, errors.Wrapf(err, "segment %s", r.ID())
		}
	}

	qualities := map[uint16]postings.QualityFunc{}
	for queue.Len() > 0 {
		fieldID := queue.Top().it.FieldID()
		term := append([]byte{}, queue.Top().it.Term()...)
		field, ok := m.sch.FieldByID(fieldID)
		if !ok {
			return nil, errors.Wrapf(fterrors.Corrupt,
				"merged postings for unknown field %d", fieldID)
		}

		var merged []postings.Posting
		for queue.Len() > 0 && queue.Top().it.FieldID() == fieldID &&
			bytes.Equal(queue.Top().it.Term(), term) {
			c := queue.Pop()
			ps, err := m.sourcePostings(c.source, fieldID, c.it.Info(), field.Positions)
			if err != nil {
				return nil, errors.Wrapf(err, "term %q of field %q", term, field.Name)
			}
			merged = append(merged, ps...)
			if c.it.Next() {
				queue.Insert(c)
			} else if err := c.it.Err(); err != nil {
				return nil, errors.Wrapf(err, "segment %s", m.sources[c.source].ID())
			}
		}
		if len(merged) == 0 {
			continue
		}

		qf, ok := qualities[fieldID]
		if !ok {
			qf = m.qualityFor(field, fieldID)
			qualities[fieldID] = qf
		}
		info, grown, err := encodePostings(pstBuf, merged, field.Positions, qf)
		if err != nil {
			return nil, errors.Wrapf(err, "term %q of field %q", term, field.Name)
		}
		pstBuf = grown
		if err := dict.Add(fieldID, term, info); err != nil {
			return nil, err
		}
	}
	return pstBuf, nil
}

// sourcePostings decodes one source's posting list for a term, drops deleted
// docs and remaps the survivors. The result stays sorted because the remap
// is monotone within a source.
func (m *merger) sourcePostings(source int, fieldID uint16, info termdict.TermInfo,
	hasPositions bool,
) ([]postings.Posting, error) {
	r := m.sources[source]
	remap := m.remaps[source]

	if info.Inline != nil {
		p := *info.Inline
		if r.IsDeleted(p.DocID) {
			return nil, nil
		}
		p.Length = byteops.ByteToLength(r.lengths.LengthByte(fieldID, p.DocID))
		p.DocID = remap[p.DocID]
		return []postings.Posting{p}, nil
	}

	var out []postings.Posting
	for _, ptr := range info.Blocks {
		data, err := r.BlockData(ptr)
		if err != nil {
			return nil, err
		}
		blk, err := postings.DecodeBlock(data, ptr.BaseDoc, hasPositions)
		if err != nil {
			return nil, err
		}
		for i, doc := range blk.Docs {
			if r.IsDeleted(doc) {
				continue
			}
			p := postings.Posting{
				DocID:  remap[doc],
				Freq:   blk.Freqs[i],
				Length: byteops.ByteToLength(r.lengths.LengthByte(fieldID, doc)),
			}
			if hasPositions {
				p.Positions = blk.Positions[i]
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *merger) qualityFor(field schema.Field, fieldID uint16) postings.QualityFunc {
	if m.opts.Quality == nil {
		return nil
	}
	avg := 0.0
	if m.numDocs > 0 {
		avg = float64(m.lengths.TotalTokens(fieldID)) / float64(m.numDocs)
	}
	return m.opts.Quality.BlockQuality(field, avg)
}
