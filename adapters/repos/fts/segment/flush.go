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
)

var postingsMagic = []byte{'w', 'p', 's', 't', 1}

// postingCursor yields (key, postings) pairs in key order from one source:
// a spilled run or the in-memory accumulator tail.
type postingCursor struct {
	source int
	key    []byte
	ps     []postings.Posting
	next   func() ([]byte, []postings.Posting, error)
}

func (c *postingCursor) advance() error {
	key, ps, err := c.next()
	if err != nil {
		return err
	}
	c.key = key
	c.ps = ps
	return nil
}

// Finish merges all runs with the in-memory tail, encodes posting blocks
// and the dictionary, and writes every segment file fsynced. The returned
// header is what a later Open will find.
func (w *Writer) Finish() (Header, error) {
	if w.finished {
		return Header{}, errors.Wrap(fterrors.ReadOnly, "segment writer finished")
	}
	w.finished = true
	started := time.Now()

	hdr := Header{
		ID:                w.id,
		DocCount:          w.numDocs,
		SchemaFingerprint: w.sch.Fingerprint(),
		HasVectors:        w.hasVectors,
	}
	headerBlob, err := hdr.marshal()
	if err != nil {
		return Header{}, err
	}
	dict := termdict.NewWriter(headerBlob)
	pstBuf := append([]byte{}, postingsMagic...)

	cursors, err := w.mergeCursors()
	if err != nil {
		return Header{}, err
	}
	queue := priorityqueue.New[*postingCursor](len(cursors),
		func(a, b *postingCursor) bool {
			if c := bytes.Compare(a.key, b.key); c != 0 {
				return c < 0
			}
			return a.source < b.source
		})
	for _, c := range cursors {
		if c.key != nil {
			queue.Insert(c)
		}
	}

	qualities := map[uint16]postings.QualityFunc{}
	for queue.Len() > 0 {
		key := append([]byte{}, queue.Top().key...)
		var merged []postings.Posting
		for queue.Len() > 0 && bytes.Equal(queue.Top().key, key) {
			c := queue.Pop()
			merged = append(merged, c.ps...)
			if err := c.advance(); err != nil {
				return Header{}, err
			}
			if c.key != nil {
				queue.Insert(c)
			}
		}

		fieldID, term, err := splitAccKey(string(key))
		if err != nil {
			return Header{}, err
		}
		field, ok := w.sch.FieldByID(fieldID)
		if !ok {
			return Header{}, errors.Wrapf(fterrors.Corrupt,
				"accumulated postings for unknown field %d", fieldID)
		}
		qf, ok := qualities[fieldID]
		if !ok {
			qf = w.qualityFor(field, fieldID)
			qualities[fieldID] = qf
		}

		info, grown, err := encodePostings(pstBuf, merged, field.Positions, qf)
		if err != nil {
			return Header{}, errors.Wrapf(err, "term %q of field %q", term, field.Name)
		}
		pstBuf = grown
		if err := dict.Add(fieldID, term, info); err != nil {
			return Header{}, err
		}
	}

	if err := writeSegmentFiles(w.st, w.id, dict, pstBuf, w.stored, w.lengths,
		w.vectors); err != nil {
		w.Abort()
		return Header{}, err
	}
	w.deleteRuns()

	w.opts.Logger.WithFields(logrus.Fields{
		"action":  "segment_flush",
		"segment": w.id,
		"docs":    w.numDocs,
		"terms":   dict.NumTerms(),
		"took":    time.Since(started),
	}).Info("flushed segment")
	w.opts.Metrics.IncSegmentsFlushed()
	return hdr, nil
}

// Abort removes every file the writer may have created. Safe to call after
// a failed Finish.
func (w *Writer) Abort() {
	w.finished = true
	w.deleteRuns()
	for _, name := range Files(w.id) {
		w.st.Delete(name)
	}
}

func (w *Writer) deleteRuns() {
	for _, name := range w.runs {
		w.st.Delete(name)
	}
	w.runs = nil
}

func (w *Writer) qualityFor(field schema.Field, fieldID uint16) postings.QualityFunc {
	if w.opts.Quality == nil {
		return nil
	}
	avg := 0.0
	if w.numDocs > 0 {
		avg = float64(w.lengths.TotalTokens(fieldID)) / float64(w.numDocs)
	}
	return w.opts.Quality.BlockQuality(field, avg)
}

// encodePostings block-encodes one merged posting list and returns its
// dictionary entry. Lists with a single posting are inlined.
func encodePostings(pstBuf []byte, ps []postings.Posting, hasPositions bool,
	qf postings.QualityFunc,
) (termdict.TermInfo, []byte, error) {
	info := termdict.TermInfo{DF: uint64(len(ps))}
	for _, p := range ps {
		info.CF += uint64(p.Freq)
	}

	if len(ps) == 1 {
		p := ps[0]
		if !hasPositions {
			p.Positions = nil
		}
		if qf != nil {
			info.MaxQuality = qf(p.Freq, p.Length)
		}
		info.Inline = &p
		return info, pstBuf, nil
	}

	baseDoc := uint64(0)
	for start := 0; start < len(ps); start += postings.BlockSize {
		end := start + postings.BlockSize
		if end > len(ps) {
			end = len(ps)
		}
		offset := uint64(len(pstBuf))
		grown, ptr, err := postings.EncodeBlock(pstBuf, ps[start:end], baseDoc,
			hasPositions, qf)
		if err != nil {
			return termdict.TermInfo{}, nil, err
		}
		pstBuf = grown
		ptr.Offset = offset
		info.Blocks = append(info.Blocks, ptr)
		if ptr.Impact > info.MaxQuality {
			info.MaxQuality = ptr.Impact
		}
		baseDoc = ptr.MaxDoc
	}
	return info, pstBuf, nil
}

// mergeCursors opens one cursor per spilled run plus one over the in-memory
// accumulator, each already positioned on its first key.
func (w *Writer) mergeCursors() ([]*postingCursor, error) {
	var out []*postingCursor
	for i, name := range w.runs {
		r, err := w.st.Open(name)
		if err != nil {
			return nil, err
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		c, err := newRunCursor(i, data)
		if err != nil {
			return nil, errors.Wrapf(err, "spill run %s", name)
		}
		out = append(out, c)
	}

	keys := w.sortedAccKeys()
	idx := 0
	mem := &postingCursor{source: len(w.runs)}
	mem.next = func() ([]byte, []postings.Posting, error) {
		if idx >= len(keys) {
			return nil, nil, nil
		}
		key := keys[idx]
		idx++
		return []byte(key), w.acc[key], nil
	}
	if err := mem.advance(); err != nil {
		return nil, err
	}
	out = append(out, mem)
	return out, nil
}

func newRunCursor(source int, data []byte) (*postingCursor, error) {
	remaining, n, err := byteops.Uvarint(data)
	if err != nil {
		return nil, err
	}
	data = data[n:]

	c := &postingCursor{source: source}
	c.next = func() ([]byte, []postings.Posting, error) {
		if remaining == 0 {
			return nil, nil, nil
		}
		remaining--

		key, n, err := byteops.PrefixedBytes(data)
		if err != nil {
			return nil, nil, err
		}
		data = data[n:]
		count, n, err := byteops.Uvarint(data)
		if err != nil {
			return nil, nil, err
		}
		data = data[n:]

		ps := make([]postings.Posting, count)
		prevDoc := uint64(0)
		for i := range ps {
			p := &ps[i]
			delta, n, err := byteops.Uvarint(data)
			if err != nil {
				return nil, nil, err
			}
			data = data[n:]
			p.DocID = prevDoc + delta
			prevDoc = p.DocID
			freq, n, err := byteops.Uvarint(data)
			if err != nil {
				return nil, nil, err
			}
			data = data[n:]
			p.Freq = uint32(freq)
			length, n, err := byteops.Uvarint(data)
			if err != nil {
				return nil, nil, err
			}
			data = data[n:]
			p.Length = uint32(length)
			posCount, n, err := byteops.Uvarint(data)
			if err != nil {
				return nil, nil, err
			}
			data = data[n:]
			if posCount > 0 {
				p.Positions = make([]uint32, posCount)
				pos := uint32(0)
				for j := uint64(0); j < posCount; j++ {
					delta, n, err := byteops.Uvarint(data)
					if err != nil {
						return nil, nil, err
					}
					data = data[n:]
					pos += uint32(delta)
					p.Positions[j] = pos
				}
			}
		}
		return key, ps, nil
	}
	if err := c.advance(); err != nil {
		return nil, err
	}
	return c, nil
}

// writeSegmentFiles persists every segment artifact, fsyncing each before
// return. Shared between fresh flushes and merges.
func writeSegmentFiles(st store.Store, id string, dict *termdict.Writer,
	pstBuf []byte, stored *docstore.StoredWriter, lengths *docstore.LengthsWriter,
	vectors *docstore.VectorsWriter,
) error {
	if err := writeRaw(st, PostingsFile(id), pstBuf); err != nil {
		return err
	}
	if err := writeWith(st, TermsFile(id), dict.Finish); err != nil {
		return err
	}
	if err := writeWith(st, BloomFile(id), dict.WriteBloom); err != nil {
		return err
	}
	if err := writeWith(st, StoredFile(id), stored.Finish); err != nil {
		return err
	}
	if err := writeWith(st, LengthsFile(id), lengths.Finish); err != nil {
		return err
	}
	if vectors != nil {
		if err := writeWith(st, VectorsFile(id), vectors.Finish); err != nil {
			return err
		}
	}
	return nil
}

func writeRaw(st store.Store, name string, data []byte) error {
	return writeWith(st, name, func(dst store.Writer) error {
		_, err := dst.Write(data)
		return errors.Wrapf(err, "write %s", name)
	})
}

func writeWith(st store.Store, name string, fill func(store.Writer) error) error {
	f, err := st.Create(name)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "fsync %s", name)
	}
	return errors.Wrapf(f.Close(), "close %s", name)
}
