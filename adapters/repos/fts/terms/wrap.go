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

// Boost scales a wrapped matcher's scores and bounds by a constant factor.
type Boost struct {
	child  Matcher
	factor float64
}

func NewBoost(child Matcher, factor float64) Matcher {
	if factor == 1 {
		return child
	}
	return &Boost{child: child, factor: factor}
}

func (m *Boost) IsActive() bool            { return m.child.IsActive() }
func (m *Boost) ID() uint64                { return m.child.ID() }
func (m *Boost) Next() error               { return m.child.Next() }
func (m *Boost) SkipTo(target uint64) error { return m.child.SkipTo(target) }
func (m *Boost) Weight() float64           { return m.factor * m.child.Weight() }
func (m *Boost) Score() float64            { return m.factor * m.child.Score() }
func (m *Boost) SupportsQuality() bool     { return m.child.SupportsQuality() }
func (m *Boost) MaxQuality() float64       { return m.factor * m.child.MaxQuality() }
func (m *Boost) BlockQuality() float64     { return m.factor * m.child.BlockQuality() }

func (m *Boost) SkipToQuality(min float64) error {
	return m.child.SkipToQuality(min / m.factor)
}

func (m *Boost) Copy() Matcher {
	return &Boost{child: m.child.Copy(), factor: m.factor}
}

// Constant matches the wrapped matcher's docs but reports a fixed score,
// detaching ranking from the child's statistics.
type Constant struct {
	child Matcher
	score float64
}

func NewConstant(child Matcher, score float64) Matcher {
	return &Constant{child: child, score: score}
}

func (m *Constant) IsActive() bool            { return m.child.IsActive() }
func (m *Constant) ID() uint64                { return m.child.ID() }
func (m *Constant) Next() error               { return m.child.Next() }
func (m *Constant) SkipTo(target uint64) error { return m.child.SkipTo(target) }
func (m *Constant) Weight() float64           { return m.score }
func (m *Constant) Score() float64            { return m.score }
func (m *Constant) SupportsQuality() bool     { return true }
func (m *Constant) MaxQuality() float64       { return m.score }
func (m *Constant) BlockQuality() float64     { return m.score }

func (m *Constant) SkipToQuality(min float64) error {
	if m.score <= min {
		// no doc of this matcher can beat min
		return m.child.SkipTo(^uint64(0))
	}
	return nil
}

func (m *Constant) Copy() Matcher {
	return &Constant{child: m.child.Copy(), score: m.score}
}
