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
	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/scoring"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/terms"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/searchparams"
)

// compiler lowers a query tree into matchers over one segment at a time.
// Document frequencies span the whole segment list so idf stays comparable
// across segments, and are cached per (field, term) because the same tree
// is compiled once per segment. Average field lengths stay per segment,
// matching the lengths the index-time block impacts were derived from so
// quality bounds keep dominating real scores.
type compiler struct {
	segs     []*segment.Reader
	model    scoring.Model
	stats    *terms.Stats
	docCount uint64
	docFreq  map[string]uint64
	limit    int
}

func newCompiler(segs []*segment.Reader, model scoring.Model,
	stats *terms.Stats, expansionLimit int,
) *compiler {
	var docCount uint64
	for _, seg := range segs {
		docCount += seg.DocCountAll()
	}
	if expansionLimit <= 0 {
		expansionLimit = terms.DefaultExpansionLimit
	}
	return &compiler{
		segs:     segs,
		model:    model,
		stats:    stats,
		docCount: docCount,
		docFreq:  map[string]uint64{},
		limit:    expansionLimit,
	}
}

func (c *compiler) df(field string, term []byte) uint64 {
	key := field + "\x00" + string(term)
	if df, ok := c.docFreq[key]; ok {
		return df
	}
	var df uint64
	for _, seg := range c.segs {
		if info, ok, err := seg.TermInfo(field, term); err == nil && ok {
			df += info.DF
		}
	}
	c.docFreq[key] = df
	return df
}

// scorerFor returns the per-term scorer factory of one field, or nil when
// the field is unknown or not scorable so matches score by raw weight.
func (c *compiler) scorerFor(seg *segment.Reader, field string) func(term []byte) terms.Scorer {
	f, ok := seg.Schema().Field(field)
	if !ok || !f.Scorable {
		return nil
	}
	avg := seg.AvgFieldLength(field)
	return func(term []byte) terms.Scorer {
		return c.model.TermScorer(f, scoring.TermStats{
			DocCount:       c.docCount,
			DocFreq:        c.df(field, term),
			AvgFieldLength: avg,
		})
	}
}

func (c *compiler) compile(seg *segment.Reader, q searchparams.Query) (terms.Matcher, error) {
	switch q := q.(type) {
	case searchparams.Term:
		return c.term(seg, q.Field, q.Term)
	case searchparams.Phrase:
		return terms.NewPhrase(seg, q.Field, q.Terms, q.Slop,
			c.scorerFor(seg, q.Field), 1, c.stats)
	case searchparams.And:
		children, err := c.compileAll(seg, q.Subqueries)
		if err != nil {
			return nil, err
		}
		return terms.NewConjunction(children)
	case searchparams.Or:
		children, err := c.compileAll(seg, q.Subqueries)
		if err != nil {
			return nil, err
		}
		return terms.NewDisjunction(children)
	case searchparams.AndNot:
		pos, err := c.compile(seg, q.Include)
		if err != nil {
			return nil, err
		}
		neg, err := c.compile(seg, q.Exclude)
		if err != nil {
			return nil, err
		}
		return terms.NewAndNot(pos, neg)
	case searchparams.Range:
		expanded, err := terms.ExpandRange(seg, q.Field, q.Lo, q.Hi,
			q.InclLo, q.InclHi, c.limit)
		if err != nil {
			return nil, err
		}
		return c.multi(seg, q.Field, expanded)
	case searchparams.Prefix:
		expanded, err := terms.ExpandPrefix(seg, q.Field, q.Prefix, c.limit)
		if err != nil {
			return nil, err
		}
		return c.multi(seg, q.Field, expanded)
	case searchparams.Wildcard:
		expanded, err := terms.ExpandWildcard(seg, q.Field, q.Pattern, c.limit)
		if err != nil {
			return nil, err
		}
		return c.multi(seg, q.Field, expanded)
	case searchparams.Fuzzy:
		expanded, err := terms.ExpandFuzzy(seg, q.Field, q.Term, q.MaxDist, c.limit)
		if err != nil {
			return nil, err
		}
		return c.multi(seg, q.Field, expanded)
	case searchparams.Every:
		if q.Field == "" {
			return terms.NewEvery(seg), nil
		}
		return terms.NewFieldEvery(seg, q.Field), nil
	case searchparams.Boost:
		child, err := c.compile(seg, q.Sub)
		if err != nil {
			return nil, err
		}
		return terms.NewBoost(child, q.Factor), nil
	case searchparams.Constant:
		child, err := c.compile(seg, q.Sub)
		if err != nil {
			return nil, err
		}
		return terms.NewConstant(child, q.Score), nil
	default:
		return nil, errors.Errorf("unsupported query node %T", q)
	}
}

func (c *compiler) compileAll(seg *segment.Reader, qs []searchparams.Query) ([]terms.Matcher, error) {
	children := make([]terms.Matcher, 0, len(qs))
	for _, q := range qs {
		m, err := c.compile(seg, q)
		if err != nil {
			return nil, err
		}
		children = append(children, m)
	}
	return children, nil
}

func (c *compiler) term(seg *segment.Reader, field string, term []byte) (terms.Matcher, error) {
	var s terms.Scorer
	if factory := c.scorerFor(seg, field); factory != nil {
		s = factory(term)
	}
	return terms.NewTerm(seg, field, term, s, 1, c.stats)
}

func (c *compiler) multi(seg *segment.Reader, field string, expanded [][]byte) (terms.Matcher, error) {
	return terms.NewTerms(seg, field, expanded, c.scorerFor(seg, field), 1, c.stats)
}
