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

package collector

import (
	"bytes"
	"strings"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/priorityqueue"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/storobj"
)

// SortByField keeps the K hits ranked by a stored field value instead of
// the score. Score-based pruning is unavailable in this mode, Threshold
// always reports not-ok.
type SortByField struct {
	field   string
	k       int
	reverse bool
	queue   *priorityqueue.Queue[sortHit]
	seg     *segment.Reader
	segID   string
	base    uint64
}

type sortHit struct {
	key storobj.Value
	hit Hit
}

// NewSortByField sorts ascending by the field's stored value; reverse flips
// the order. Docs without the field sort as null, before every other value.
func NewSortByField(field string, k int, reverse bool) *SortByField {
	if k < 1 {
		k = 1
	}
	c := &SortByField{field: field, k: k, reverse: reverse}
	c.queue = priorityqueue.New[sortHit](k, c.worse)
	return c
}

// worse keeps the hit that would be dropped first on top of the heap. For
// an ascending sort that is the largest key.
func (c *SortByField) worse(a, b sortHit) bool {
	cmp := compareValues(a.key, b.key)
	if c.reverse {
		cmp = -cmp
	}
	if cmp != 0 {
		return cmp > 0
	}
	return a.hit.Global > b.hit.Global
}

func (c *SortByField) SetSegment(seg *segment.Reader, base uint64) {
	c.seg = seg
	c.segID = seg.ID()
	c.base = base
}

func (c *SortByField) Collect(doc uint64, score float64) error {
	fields, err := c.seg.StoredFields(doc)
	if err != nil {
		return err
	}
	sh := sortHit{
		key: fields[c.field],
		hit: Hit{Segment: c.segID, Doc: doc, Global: c.base + doc, Score: score},
	}
	if c.queue.Len() < c.k {
		c.queue.Insert(sh)
		return nil
	}
	if c.worse(c.queue.Top(), sh) {
		c.queue.ReplaceTop(sh)
	}
	return nil
}

func (c *SortByField) Threshold() (float64, bool) { return 0, false }

func (c *SortByField) Results() []Hit {
	out := make([]Hit, c.queue.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = c.queue.Pop().hit
	}
	return out
}

// typeRank orders values of different kinds so mixed columns still sort
// deterministically. Ints and floats share a rank and compare numerically.
func typeRank(t storobj.ValueType) int {
	switch t {
	case storobj.TypeNull:
		return 0
	case storobj.TypeBool:
		return 1
	case storobj.TypeInt, storobj.TypeFloat:
		return 2
	case storobj.TypeBytes:
		return 3
	case storobj.TypeString:
		return 4
	default:
		return 5
	}
}

func compareValues(a, b storobj.Value) int {
	ra, rb := typeRank(a.Type), typeRank(b.Type)
	if ra != rb {
		return ra - rb
	}
	switch {
	case a.Type == storobj.TypeNull:
		return 0
	case a.Type == storobj.TypeBool:
		if a.Bool == b.Bool {
			return 0
		}
		if !a.Bool {
			return -1
		}
		return 1
	case ra == 2:
		fa, fb := numeric(a), numeric(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case a.Type == storobj.TypeBytes:
		return bytes.Compare(a.Bytes, b.Bytes)
	case a.Type == storobj.TypeString:
		return strings.Compare(a.Str, b.Str)
	default:
		return 0
	}
}

func numeric(v storobj.Value) float64 {
	if v.Type == storobj.TypeInt {
		return float64(v.Int)
	}
	return v.Float
}
