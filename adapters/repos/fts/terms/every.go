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

package terms

import (
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
)

// Every matches every doc of the segment with a constant score of 1.
type Every struct {
	id     uint64
	limit  uint64
	active bool
}

func NewEvery(seg *segment.Reader) Matcher {
	limit := seg.DocCountAll()
	return &Every{limit: limit, active: limit > 0}
}

func (m *Every) IsActive() bool {
	return m.active
}

func (m *Every) ID() uint64 {
	return m.id
}

func (m *Every) Next() error {
	m.id++
	if m.id >= m.limit {
		m.active = false
	}
	return nil
}

func (m *Every) SkipTo(target uint64) error {
	if target > m.id {
		m.id = target
	}
	if m.id >= m.limit {
		m.active = false
	}
	return nil
}

func (m *Every) Weight() float64             { return 1 }
func (m *Every) Score() float64              { return 1 }
func (m *Every) SupportsQuality() bool       { return false }
func (m *Every) MaxQuality() float64         { return 1 }
func (m *Every) BlockQuality() float64       { return 1 }
func (m *Every) SkipToQuality(float64) error { return nil }

func (m *Every) Copy() Matcher {
	clone := *m
	return &clone
}

// Bitmap matches exactly the docs of a precomputed set with a constant
// score. Backs field-scoped Every queries and filter-style constructs.
type Bitmap struct {
	docs   []uint64
	cur    int
	score  float64
	active bool
}

// NewBitmap snapshots the given doc set. The bitmap itself is not retained.
func NewBitmap(docs *sroar.Bitmap, score float64) Matcher {
	if docs == nil || docs.IsEmpty() {
		return Empty{}
	}
	return &Bitmap{docs: docs.ToArray(), score: score, active: true}
}

// NewFieldEvery matches every doc in which the named field recorded at
// least one token. Sourced from the length column, so it covers scorable
// fields, the shape Every(field) queries take.
func NewFieldEvery(seg *segment.Reader, field string) Matcher {
	fieldID, ok := seg.Schema().FieldID(field)
	if !ok {
		return Empty{}
	}
	docs := sroar.NewBitmap()
	for docID := uint64(0); docID < seg.DocCountAll(); docID++ {
		if seg.Lengths().LengthByte(fieldID, docID) != 0 {
			docs.Set(docID)
		}
	}
	return NewBitmap(docs, 1)
}

func (m *Bitmap) IsActive() bool {
	return m.active
}

func (m *Bitmap) ID() uint64 {
	return m.docs[m.cur]
}

func (m *Bitmap) Next() error {
	m.cur++
	if m.cur >= len(m.docs) {
		m.active = false
	}
	return nil
}

func (m *Bitmap) SkipTo(target uint64) error {
	for m.active && m.docs[m.cur] < target {
		if err := m.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Bitmap) Weight() float64             { return m.score }
func (m *Bitmap) Score() float64              { return m.score }
func (m *Bitmap) SupportsQuality() bool       { return false }
func (m *Bitmap) MaxQuality() float64         { return m.score }
func (m *Bitmap) BlockQuality() float64       { return m.score }
func (m *Bitmap) SkipToQuality(float64) error { return nil }

func (m *Bitmap) Copy() Matcher {
	clone := *m
	return &clone
}
