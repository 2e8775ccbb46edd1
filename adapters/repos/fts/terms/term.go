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
	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/termdict"
)

// TermMatcher walks one term's posting list block by block. Blocks are
// decoded lazily so quality skips never touch skipped payloads.
type TermMatcher struct {
	seg          *segment.Reader
	fieldID      uint16
	hasPositions bool
	info         termdict.TermInfo
	scorer       Scorer
	boost        float64
	stats        *Stats

	blockIdx int
	block    postings.Block
	cur      int
	active   bool
}

// NewTerm positions a matcher on the first posting of term in field. A term
// absent from the segment yields Empty, an unknown field an error.
func NewTerm(seg *segment.Reader, field string, term []byte, scorer Scorer,
	boost float64, stats *Stats,
) (Matcher, error) {
	info, ok, err := seg.TermInfo(field, term)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Empty{}, nil
	}
	f, _ := seg.Schema().Field(field)
	fieldID, _ := seg.Schema().FieldID(field)

	m := &TermMatcher{
		seg:          seg,
		fieldID:      fieldID,
		hasPositions: f.Positions,
		info:         info,
		scorer:       scorer,
		boost:        boost,
		stats:        stats,
		blockIdx:     -1,
	}
	if err := m.loadBlock(0); err != nil {
		return nil, err
	}
	return m, nil
}

// Info returns the dictionary entry the matcher cursors over.
func (m *TermMatcher) Info() termdict.TermInfo {
	return m.info
}

func (m *TermMatcher) loadBlock(i int) error {
	if m.info.Inline != nil {
		if i > 0 {
			m.active = false
			return nil
		}
		p := m.info.Inline
		m.block = postings.Block{
			Docs:  []uint64{p.DocID},
			Freqs: []uint32{p.Freq},
		}
		if m.hasPositions {
			m.block.Positions = [][]uint32{p.Positions}
		}
		m.blockIdx = 0
		m.cur = 0
		m.active = true
		return nil
	}
	if i >= len(m.info.Blocks) {
		m.active = false
		return nil
	}
	ptr := m.info.Blocks[i]
	data, err := m.seg.BlockData(ptr)
	if err != nil {
		return err
	}
	blk, err := postings.DecodeBlock(data, ptr.BaseDoc, m.hasPositions)
	if err != nil {
		return errors.Wrapf(err, "block %d", i)
	}
	m.blockIdx = i
	m.block = blk
	m.cur = 0
	m.active = true
	return nil
}

func (m *TermMatcher) IsActive() bool {
	return m.active
}

func (m *TermMatcher) ID() uint64 {
	return m.block.Docs[m.cur]
}

func (m *TermMatcher) Next() error {
	if !m.active {
		return nil
	}
	m.cur++
	if m.cur < len(m.block.Docs) {
		return nil
	}
	return m.loadBlock(m.blockIdx + 1)
}

func (m *TermMatcher) SkipTo(target uint64) error {
	if !m.active || m.ID() >= target {
		return nil
	}
	if m.info.Inline != nil {
		m.active = false
		return nil
	}
	i := m.blockIdx
	for i < len(m.info.Blocks) && m.info.Blocks[i].MaxDoc < target {
		i++
	}
	if i >= len(m.info.Blocks) {
		m.active = false
		return nil
	}
	if i != m.blockIdx {
		if err := m.loadBlock(i); err != nil {
			return err
		}
	}
	// the block's MaxDoc is >= target, the scan cannot run off the end
	for m.block.Docs[m.cur] < target {
		m.cur++
	}
	return nil
}

// Freq returns the term frequency of the current posting.
func (m *TermMatcher) Freq() uint32 {
	return m.block.Freqs[m.cur]
}

// Positions returns the current posting's positions, nil when the field
// records none.
func (m *TermMatcher) Positions() []uint32 {
	if m.block.Positions == nil {
		return nil
	}
	return m.block.Positions[m.cur]
}

func (m *TermMatcher) Weight() float64 {
	return m.boost * float64(m.Freq())
}

func (m *TermMatcher) Score() float64 {
	if m.scorer == nil {
		return m.Weight()
	}
	length := m.seg.Lengths().Length(m.fieldID, m.ID())
	return m.boost * m.scorer.Score(m.Freq(), length)
}

func (m *TermMatcher) SupportsQuality() bool {
	return m.scorer != nil
}

func (m *TermMatcher) quality(impact float64) float64 {
	if m.scorer == nil {
		return m.boost * impact
	}
	return m.boost * m.scorer.Quality(impact)
}

func (m *TermMatcher) MaxQuality() float64 {
	return m.quality(m.info.MaxQuality)
}

func (m *TermMatcher) BlockQuality() float64 {
	if m.info.Inline != nil {
		return m.quality(m.info.MaxQuality)
	}
	return m.quality(m.info.Blocks[m.blockIdx].Impact)
}

func (m *TermMatcher) SkipToQuality(min float64) error {
	if !m.active || m.BlockQuality() > min {
		return nil
	}
	if m.info.Inline != nil {
		m.active = false
		return nil
	}
	i := m.blockIdx + 1
	for i < len(m.info.Blocks) && m.quality(m.info.Blocks[i].Impact) <= min {
		i++
	}
	if m.stats != nil {
		m.stats.BlocksSkipped += i - m.blockIdx
	}
	return m.loadBlock(i)
}

func (m *TermMatcher) Copy() Matcher {
	clone := *m
	return &clone
}

// NewTerms builds one matcher per expanded term and folds them into a
// disjunction, the shape of prefix, range, wildcard and fuzzy queries.
func NewTerms(seg *segment.Reader, field string, expanded [][]byte,
	scorer func(term []byte) Scorer, boost float64, stats *Stats,
) (Matcher, error) {
	children := make([]Matcher, 0, len(expanded))
	for _, term := range expanded {
		var s Scorer
		if scorer != nil {
			s = scorer(term)
		}
		child, err := NewTerm(seg, field, term, s, boost, stats)
		if err != nil {
			return nil, errors.Wrapf(err, "term %q", term)
		}
		if child.IsActive() {
			children = append(children, child)
		}
	}
	return NewDisjunction(children)
}

// activeOnly drops inactive children up front so composites only juggle
// positioned matchers.
func activeOnly(children []Matcher) []Matcher {
	out := children[:0]
	for _, c := range children {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	return out
}
