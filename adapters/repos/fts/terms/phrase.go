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

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// Phrase intersects its term children and additionally requires the terms
// to occur in sequence within the doc: each term at most slop positions
// after the previous one. Slop 1 means adjacent.
type Phrase struct {
	children []*TermMatcher
	slop     uint32
	active   bool
}

// NewPhrase builds a phrase matcher over the given terms of one field. The
// field must record positions. A term absent from the segment makes the
// phrase unmatchable.
func NewPhrase(seg *segment.Reader, field string, phraseTerms [][]byte,
	slop int, scorer func(term []byte) Scorer, boost float64, stats *Stats,
) (Matcher, error) {
	f, ok := seg.Schema().Field(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	if !f.Positions {
		return nil, errors.Wrapf(fterrors.IndexingError,
			"phrase over field %q which records no positions", field)
	}
	if len(phraseTerms) == 0 {
		return Empty{}, nil
	}
	if slop < 1 {
		slop = 1
	}

	children := make([]*TermMatcher, 0, len(phraseTerms))
	for _, term := range phraseTerms {
		var s Scorer
		if scorer != nil {
			s = scorer(term)
		}
		child, err := NewTerm(seg, field, term, s, boost, stats)
		if err != nil {
			return nil, errors.Wrapf(err, "term %q", term)
		}
		tm, ok := child.(*TermMatcher)
		if !ok {
			return Empty{}, nil
		}
		children = append(children, tm)
	}
	if len(children) == 1 {
		return children[0], nil
	}

	m := &Phrase{children: children, slop: uint32(slop), active: true}
	if err := m.settle(); err != nil {
		return nil, err
	}
	return m, nil
}

// align is the conjunction leapfrog over the phrase's terms.
func (m *Phrase) align() error {
	for {
		leader := m.children[0].ID()
		agreed := true
		for _, c := range m.children {
			if c.ID() > leader {
				leader = c.ID()
			}
		}
		for _, c := range m.children {
			if c.ID() == leader {
				continue
			}
			agreed = false
			if err := c.SkipTo(leader); err != nil {
				return err
			}
			if !c.IsActive() {
				m.active = false
				return nil
			}
		}
		if agreed {
			return nil
		}
	}
}

// settle advances until the aligned doc also passes the position check.
func (m *Phrase) settle() error {
	if err := m.align(); err != nil {
		return err
	}
	for m.active {
		if m.matchesPositions() {
			return nil
		}
		if err := m.children[0].Next(); err != nil {
			return err
		}
		if !m.children[0].IsActive() {
			m.active = false
			return nil
		}
		if err := m.align(); err != nil {
			return err
		}
	}
	return nil
}

// matchesPositions checks for one occurrence of the terms in order, each at
// most slop positions after its predecessor.
func (m *Phrase) matchesPositions() bool {
	candidates := m.children[0].Positions()
	for _, c := range m.children[1:] {
		positions := c.Positions()
		var next []uint32
		j := 0
		for _, p := range candidates {
			lo, hi := p+1, p+m.slop
			for j < len(positions) && positions[j] < lo {
				j++
			}
			k := j
			for k < len(positions) && positions[k] <= hi {
				if len(next) == 0 || next[len(next)-1] != positions[k] {
					next = append(next, positions[k])
				}
				k++
			}
		}
		if len(next) == 0 {
			return false
		}
		candidates = next
	}
	return true
}

func (m *Phrase) IsActive() bool {
	return m.active
}

func (m *Phrase) ID() uint64 {
	return m.children[0].ID()
}

func (m *Phrase) Next() error {
	if !m.active {
		return nil
	}
	if err := m.children[0].Next(); err != nil {
		return err
	}
	if !m.children[0].IsActive() {
		m.active = false
		return nil
	}
	return m.settle()
}

func (m *Phrase) SkipTo(target uint64) error {
	if !m.active || m.ID() >= target {
		return nil
	}
	if err := m.children[0].SkipTo(target); err != nil {
		return err
	}
	if !m.children[0].IsActive() {
		m.active = false
		return nil
	}
	return m.settle()
}

func (m *Phrase) Weight() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.Weight()
	}
	return sum
}

func (m *Phrase) Score() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.Score()
	}
	return sum
}

func (m *Phrase) SupportsQuality() bool {
	for _, c := range m.children {
		if !c.SupportsQuality() {
			return false
		}
	}
	return true
}

func (m *Phrase) MaxQuality() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.MaxQuality()
	}
	return sum
}

func (m *Phrase) BlockQuality() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.BlockQuality()
	}
	return sum
}

func (m *Phrase) SkipToQuality(min float64) error {
	if !m.active {
		return nil
	}
	total := m.MaxQuality()
	for _, c := range m.children {
		if err := c.SkipToQuality(min - (total - c.MaxQuality())); err != nil {
			return err
		}
		if !c.IsActive() {
			m.active = false
			return nil
		}
	}
	return m.settle()
}

func (m *Phrase) Copy() Matcher {
	children := make([]*TermMatcher, len(m.children))
	for i, c := range m.children {
		children[i] = c.Copy().(*TermMatcher)
	}
	return &Phrase{children: children, slop: m.slop, active: m.active}
}
