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
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/priorityqueue"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
)

// TopK keeps the K best hits in a bounded min-heap. The heap top is the
// worst retained hit, so its score is the pruning threshold once the heap
// is full. Ties are broken toward the lower global doc ID.
type TopK struct {
	k     int
	queue *priorityqueue.Queue[Hit]
	seg   string
	base  uint64
}

// worseHit orders the heap with the weakest hit on top.
func worseHit(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Global > b.Global
}

func NewTopK(k int) *TopK {
	if k < 1 {
		k = 1
	}
	return &TopK{k: k, queue: priorityqueue.New[Hit](k, worseHit)}
}

func (c *TopK) SetSegment(seg *segment.Reader, base uint64) {
	c.seg = seg.ID()
	c.base = base
}

func (c *TopK) Collect(doc uint64, score float64) error {
	hit := Hit{Segment: c.seg, Doc: doc, Global: c.base + doc, Score: score}
	if c.queue.Len() < c.k {
		c.queue.Insert(hit)
		return nil
	}
	if worseHit(c.queue.Top(), hit) {
		c.queue.ReplaceTop(hit)
	}
	return nil
}

// Threshold is the score of the worst retained hit. Docs stream in by
// increasing global ID, so a later doc scoring at or below it always loses
// the tie-break and matchers may skip every block bounded by it.
func (c *TopK) Threshold() (float64, bool) {
	if c.queue.Len() < c.k {
		return 0, false
	}
	return c.queue.Top().Score, true
}

// Results drains the heap, best hit first. The collector is empty
// afterwards.
func (c *TopK) Results() []Hit {
	out := make([]Hit, c.queue.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = c.queue.Pop()
	}
	return out
}
