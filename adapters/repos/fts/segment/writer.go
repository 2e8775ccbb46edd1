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
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/docstore"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/analysis"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/monitoring"
)

// QualityProvider computes the index-time block impact bound. Implemented
// by the scorer so segments stay scorer-agnostic.
type QualityProvider interface {
	BlockQuality(field schema.Field, avgFieldLength float64) postings.QualityFunc
}

// WriterOptions configure one segment build.
type WriterOptions struct {
	// RAMLimit bounds the posting accumulator in bytes. When exceeded the
	// accumulator is spilled as a sorted run. Zero means no spilling.
	RAMLimit int
	Analyzer analysis.Analyzer
	Quality  QualityProvider
	Logger   logrus.FieldLogger
	Metrics  *monitoring.Metrics
}

// Writer accumulates documents and builds one immutable segment on Finish.
// Not safe for concurrent use.
type Writer struct {
	st   store.Store
	sch  *schema.Schema
	id   string
	opts WriterOptions

	acc      map[string][]postings.Posting
	accBytes int
	runs     []string

	stored     *docstore.StoredWriter
	lengths    *docstore.LengthsWriter
	vectors    *docstore.VectorsWriter
	hasVectors bool

	numDocs  uint64
	finished bool
}

func NewWriter(st store.Store, sch *schema.Schema, id string, opts WriterOptions) *Writer {
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.Simple{}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	hasVectors := false
	for _, f := range sch.Fields {
		if f.TermVector {
			hasVectors = true
		}
	}
	w := &Writer{
		st:         st,
		sch:        sch,
		id:         id,
		opts:       opts,
		acc:        map[string][]postings.Posting{},
		stored:     docstore.NewStoredWriter(),
		lengths:    docstore.NewLengthsWriter(),
		hasVectors: hasVectors,
	}
	if hasVectors {
		w.vectors = docstore.NewVectorsWriter()
	}
	return w
}

func (w *Writer) ID() string {
	return w.id
}

func (w *Writer) NumDocs() uint64 {
	return w.numDocs
}

// AddDocument analyzes and buffers one document, returning its local doc
// ID. Unknown fields fail with SchemaMismatch, values inconsistent with
// their field kind with IndexingError.
func (w *Writer) AddDocument(doc map[string]storobj.Value) (uint64, error) {
	if w.finished {
		return 0, errors.Wrap(fterrors.ReadOnly, "segment writer finished")
	}
	for name := range doc {
		if _, ok := w.sch.Field(name); !ok {
			return 0, errors.Wrapf(fterrors.SchemaMismatch, "unknown field %q", name)
		}
	}

	docID := w.numDocs
	storedFields := map[string]storobj.Value{}
	lengths := map[uint16]uint32{}
	var vectorFields map[uint16][]docstore.TermVectorEntry

	for _, f := range w.sch.Fields {
		v, ok := doc[f.Name]
		if !ok {
			continue
		}
		fieldID, _ := w.sch.FieldID(f.Name)

		if f.Indexed {
			tokens, err := w.fieldTokens(f, v)
			if err != nil {
				return 0, err
			}
			if f.Scorable {
				lengths[fieldID] = uint32(len(tokens))
			}
			terms := groupTokens(tokens, f.Positions)
			for _, tp := range terms {
				key := accKey(fieldID, tp.term)
				w.acc[key] = append(w.acc[key], postings.Posting{
					DocID:     docID,
					Freq:      tp.freq,
					Positions: tp.positions,
					Length:    uint32(len(tokens)),
				})
				w.accBytes += len(tp.term) + 48 + 4*len(tp.positions)
			}
			if f.TermVector {
				if vectorFields == nil {
					vectorFields = map[uint16][]docstore.TermVectorEntry{}
				}
				vectorFields[fieldID] = termVector(terms)
			}
		}
		if f.Stored {
			storedFields[f.Name] = v
		}
	}

	if _, err := w.stored.Add(storedFields); err != nil {
		return 0, err
	}
	w.lengths.AddDoc(lengths)
	if w.vectors != nil {
		w.vectors.AddDoc(vectorFields)
	}
	w.numDocs++
	w.opts.Metrics.IncDocumentsAdded()

	if w.opts.RAMLimit > 0 && w.accBytes > w.opts.RAMLimit {
		if err := w.spill(); err != nil {
			return 0, err
		}
	}
	return docID, nil
}

type termPostings struct {
	term      []byte
	freq      uint32
	positions []uint32
}

// groupTokens folds a token stream into per-term frequency and position
// lists, sorted by term.
func groupTokens(tokens []analysis.Token, keepPositions bool) []termPostings {
	byTerm := map[string]*termPostings{}
	for _, tok := range tokens {
		tp, ok := byTerm[string(tok.Term)]
		if !ok {
			tp = &termPostings{term: tok.Term}
			byTerm[string(tok.Term)] = tp
		}
		tp.freq++
		if keepPositions {
			tp.positions = append(tp.positions, tok.Position)
		}
	}
	out := make([]termPostings, 0, len(byTerm))
	for _, tp := range byTerm {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].term, out[j].term) < 0
	})
	return out
}

func termVector(terms []termPostings) []docstore.TermVectorEntry {
	out := make([]docstore.TermVectorEntry, len(terms))
	for i, tp := range terms {
		out[i] = docstore.TermVectorEntry{
			Term:      tp.term,
			Freq:      tp.freq,
			Positions: tp.positions,
		}
	}
	return out
}

// fieldTokens converts a field value into its token stream according to the
// field kind.
func (w *Writer) fieldTokens(f schema.Field, v storobj.Value) ([]analysis.Token, error) {
	switch f.Type {
	case schema.FieldTypeText:
		if v.Type != storobj.TypeString {
			return nil, errors.Wrapf(fterrors.IndexingError,
				"text field %q needs a string, got %v", f.Name, v.Type)
		}
		return w.opts.Analyzer.Analyze(f.Name, v.Str), nil

	case schema.FieldTypeID:
		term, err := IDTerm(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		return []analysis.Token{{Term: term, Boost: 1}}, nil

	case schema.FieldTypeNumeric:
		term, err := NumericTerm(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", f.Name)
		}
		return []analysis.Token{{Term: term, Boost: 1}}, nil

	default:
		return nil, errors.Wrapf(fterrors.IndexingError,
			"field %q of kind %s cannot be indexed", f.Name, f.Type)
	}
}

// IDTerm converts a value into the single index term of an ID field.
func IDTerm(v storobj.Value) ([]byte, error) {
	switch v.Type {
	case storobj.TypeString:
		return []byte(v.Str), nil
	case storobj.TypeBytes:
		return v.Bytes, nil
	case storobj.TypeInt:
		return byteops.AppendSortableInt64(nil, v.Int), nil
	case storobj.TypeFloat:
		return byteops.AppendSortableFloat64(nil, v.Float), nil
	default:
		return nil, errors.Wrapf(fterrors.IndexingError,
			"value of type %v cannot form an ID term", v.Type)
	}
}

// NumericTerm converts a value into the order-preserving term of a numeric
// field. Ints and floats use separate encodings, a field must stick to one.
func NumericTerm(v storobj.Value) ([]byte, error) {
	switch v.Type {
	case storobj.TypeInt:
		return byteops.AppendSortableInt64(nil, v.Int), nil
	case storobj.TypeFloat:
		return byteops.AppendSortableFloat64(nil, v.Float), nil
	default:
		return nil, errors.Wrapf(fterrors.IndexingError,
			"value of type %v is not numeric", v.Type)
	}
}

func accKey(fieldID uint16, term []byte) string {
	key := byteops.AppendUvarint(make([]byte, 0, 3+len(term)), uint64(fieldID))
	return string(append(key, term...))
}

func splitAccKey(key string) (uint16, []byte, error) {
	fieldID, n, err := byteops.Uvarint([]byte(key))
	if err != nil {
		return 0, nil, err
	}
	return uint16(fieldID), []byte(key[n:]), nil
}

// spill writes the sorted accumulator as one run file and resets it.
func (w *Writer) spill() error {
	if len(w.acc) == 0 {
		return nil
	}
	started := time.Now()
	name := fmt.Sprintf("%s.run%d", w.id, len(w.runs))
	keys := w.sortedAccKeys()

	buf := byteops.AppendUvarint(nil, uint64(len(keys)))
	for _, key := range keys {
		buf = byteops.AppendPrefixedBytes(buf, []byte(key))
		ps := w.acc[key]
		buf = byteops.AppendUvarint(buf, uint64(len(ps)))
		prevDoc := uint64(0)
		for i, p := range ps {
			if i == 0 {
				buf = byteops.AppendUvarint(buf, p.DocID)
			} else {
				buf = byteops.AppendUvarint(buf, p.DocID-prevDoc)
			}
			prevDoc = p.DocID
			buf = byteops.AppendUvarint(buf, uint64(p.Freq))
			buf = byteops.AppendUvarint(buf, uint64(p.Length))
			buf = byteops.AppendUvarint(buf, uint64(len(p.Positions)))
			prevPos := uint32(0)
			for _, pos := range p.Positions {
				buf = byteops.AppendUvarint(buf, uint64(pos-prevPos))
				prevPos = pos
			}
		}
	}

	f, err := w.st.Create(name)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return errors.Wrap(err, "write spill run")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close spill run")
	}

	w.opts.Logger.WithFields(logrus.Fields{
		"action":  "segment_spill",
		"segment": w.id,
		"run":     name,
		"terms":   len(keys),
		"took":    time.Since(started),
	}).Debug("spilled posting accumulator")
	w.opts.Metrics.IncSpilledRuns()

	w.runs = append(w.runs, name)
	w.acc = map[string][]postings.Posting{}
	w.accBytes = 0
	return nil
}

func (w *Writer) sortedAccKeys() []string {
	keys := make([]string, 0, len(w.acc))
	for key := range w.acc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
