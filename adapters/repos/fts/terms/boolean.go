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
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/priorityqueue"
)

// Conjunction matches docs present in every child, scoring with the sum of
// child scores.
type Conjunction struct {
	children []Matcher
	active   bool
}

// NewConjunction intersects the children. Any inactive child makes the whole
// conjunction inactive.
func NewConjunction(children []Matcher) (Matcher, error) {
	if len(children) == 0 {
		return Empty{}, nil
	}
	for _, c := range children {
		if !c.IsActive() {
			return Empty{}, nil
		}
	}
	if len(children) == 1 {
		return children[0], nil
	}
	m := &Conjunction{children: children, active: true}
	if err := m.align(); err != nil {
		return nil, err
	}
	return m, nil
}

// align skips the lagging children to the leader's doc until all children
// agree, the textbook leapfrog intersection.
func (m *Conjunction) align() error {
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

func (m *Conjunction) IsActive() bool {
	return m.active
}

func (m *Conjunction) ID() uint64 {
	return m.children[0].ID()
}

func (m *Conjunction) Next() error {
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
	return m.align()
}

func (m *Conjunction) SkipTo(target uint64) error {
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
	return m.align()
}

func (m *Conjunction) Weight() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.Weight()
	}
	return sum
}

func (m *Conjunction) Score() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.Score()
	}
	return sum
}

func (m *Conjunction) SupportsQuality() bool {
	for _, c := range m.children {
		if !c.SupportsQuality() {
			return false
		}
	}
	return true
}

func (m *Conjunction) MaxQuality() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.MaxQuality()
	}
	return sum
}

func (m *Conjunction) BlockQuality() float64 {
	sum := 0.0
	for _, c := range m.children {
		sum += c.BlockQuality()
	}
	return sum
}

// SkipToQuality lets every child skip the blocks it can prove useless even
// if all other children contribute their full bound.
func (m *Conjunction) SkipToQuality(min float64) error {
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
	return m.align()
}

func (m *Conjunction) Copy() Matcher {
	children := make([]Matcher, len(m.children))
	for i, c := range m.children {
		children[i] = c.Copy()
	}
	return &Conjunction{children: children, active: m.active}
}

// Disjunction matches docs present in any child. Children positioned on the
// current doc live in a scratch list, the rest wait in a min-heap by doc ID.
type Disjunction struct {
	queue   *priorityqueue.Queue[Matcher]
	current []Matcher
	active  bool
}

func NewDisjunction(children []Matcher) (Matcher, error) {
	children = activeOnly(children)
	if len(children) == 0 {
		return Empty{}, nil
	}
	if len(children) == 1 {
		return children[0], nil
	}
	m := &Disjunction{
		queue: priorityqueue.New[Matcher](len(children),
			func(a, b Matcher) bool { return a.ID() < b.ID() }),
	}
	for _, c := range children {
		m.queue.Insert(c)
	}
	m.settle()
	return m, nil
}

// settle pops every child positioned on the minimum doc into the scratch
// list.
func (m *Disjunction) settle() {
	if m.queue.Len() == 0 {
		m.active = false
		return
	}
	id := m.queue.Top().ID()
	for m.queue.Len() > 0 && m.queue.Top().ID() == id {
		m.current = append(m.current, m.queue.Pop())
	}
	m.active = true
}

// release moves the scratch children back into the heap.
func (m *Disjunction) release() {
	for _, c := range m.current {
		if c.IsActive() {
			m.queue.Insert(c)
		}
	}
	m.current = m.current[:0]
}

func (m *Disjunction) IsActive() bool {
	return m.active
}

func (m *Disjunction) ID() uint64 {
	return m.current[0].ID()
}

func (m *Disjunction) Next() error {
	if !m.active {
		return nil
	}
	for _, c := range m.current {
		if err := c.Next(); err != nil {
			return err
		}
	}
	m.release()
	m.settle()
	return nil
}

func (m *Disjunction) SkipTo(target uint64) error {
	if !m.active || m.ID() >= target {
		return nil
	}
	m.release()
	for m.queue.Len() > 0 && m.queue.Top().ID() < target {
		c := m.queue.Pop()
		if err := c.SkipTo(target); err != nil {
			return err
		}
		if c.IsActive() {
			m.queue.Insert(c)
		}
	}
	m.settle()
	return nil
}

func (m *Disjunction) Weight() float64 {
	sum := 0.0
	for _, c := range m.current {
		sum += c.Weight()
	}
	return sum
}

func (m *Disjunction) Score() float64 {
	sum := 0.0
	for _, c := range m.current {
		sum += c.Score()
	}
	return sum
}

func (m *Disjunction) each(fn func(Matcher)) {
	for _, c := range m.current {
		fn(c)
	}
	for _, c := range m.queue.Items() {
		fn(c)
	}
}

func (m *Disjunction) SupportsQuality() bool {
	ok := true
	m.each(func(c Matcher) {
		if !c.SupportsQuality() {
			ok = false
		}
	})
	return ok
}

func (m *Disjunction) MaxQuality() float64 {
	sum := 0.0
	m.each(func(c Matcher) { sum += c.MaxQuality() })
	return sum
}

func (m *Disjunction) BlockQuality() float64 {
	sum := 0.0
	m.each(func(c Matcher) { sum += c.BlockQuality() })
	return sum
}

// SkipToQuality skips any child whose own bound cannot lift a doc above min
// even with every other child at full strength, the WAND pruning step.
func (m *Disjunction) SkipToQuality(min float64) error {
	if !m.active {
		return nil
	}
	total := m.MaxQuality()
	m.release()
	children := append([]Matcher{}, m.queue.Items()...)
	m.queue.Reset()
	for _, c := range children {
		if err := c.SkipToQuality(min - (total - c.MaxQuality())); err != nil {
			return err
		}
		if c.IsActive() {
			m.queue.Insert(c)
		}
	}
	m.settle()
	return nil
}

func (m *Disjunction) Copy() Matcher {
	var children []Matcher
	for _, c := range m.current {
		children = append(children, c.Copy())
	}
	for _, c := range m.queue.Items() {
		children = append(children, c.Copy())
	}
	clone := &Disjunction{
		queue: priorityqueue.New[Matcher](len(children),
			func(a, b Matcher) bool { return a.ID() < b.ID() }),
	}
	for _, c := range children {
		if c.IsActive() {
			clone.queue.Insert(c)
		}
	}
	clone.settle()
	return clone
}

// AndNot matches docs of the positive child absent from the negative one.
type AndNot struct {
	pos Matcher
	neg Matcher
}

func NewAndNot(pos, neg Matcher) (Matcher, error) {
	m := &AndNot{pos: pos, neg: neg}
	if err := m.settle(); err != nil {
		return nil, err
	}
	return m, nil
}

// settle advances the positive child past every doc the negative child also
// matches.
func (m *AndNot) settle() error {
	for m.pos.IsActive() && m.neg.IsActive() {
		if err := m.neg.SkipTo(m.pos.ID()); err != nil {
			return err
		}
		if !m.neg.IsActive() || m.neg.ID() != m.pos.ID() {
			return nil
		}
		if err := m.pos.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (m *AndNot) IsActive() bool {
	return m.pos.IsActive()
}

func (m *AndNot) ID() uint64 {
	return m.pos.ID()
}

func (m *AndNot) Next() error {
	if err := m.pos.Next(); err != nil {
		return err
	}
	return m.settle()
}

func (m *AndNot) SkipTo(target uint64) error {
	if err := m.pos.SkipTo(target); err != nil {
		return err
	}
	return m.settle()
}

func (m *AndNot) Weight() float64 {
	return m.pos.Weight()
}

func (m *AndNot) Score() float64 {
	return m.pos.Score()
}

func (m *AndNot) SupportsQuality() bool {
	return m.pos.SupportsQuality()
}

func (m *AndNot) MaxQuality() float64 {
	return m.pos.MaxQuality()
}

func (m *AndNot) BlockQuality() float64 {
	return m.pos.BlockQuality()
}

func (m *AndNot) SkipToQuality(min float64) error {
	if err := m.pos.SkipToQuality(min); err != nil {
		return err
	}
	return m.settle()
}

func (m *AndNot) Copy() Matcher {
	return &AndNot{pos: m.pos.Copy(), neg: m.neg.Copy()}
}
