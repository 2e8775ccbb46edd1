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
	"bytes"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/segment"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/termdict"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// DefaultExpansionLimit bounds how many terms a multi-term query may expand
// into before the scan stops.
const DefaultExpansionLimit = 1024

func collectTerms(it *termdict.Iterator, limit int) ([][]byte, error) {
	var out [][]byte
	for it.Next() {
		out = append(out, append([]byte{}, it.Term()...))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpandPrefix lists up to limit terms of field starting with prefix.
func ExpandPrefix(seg *segment.Reader, field string, prefix []byte, limit int) ([][]byte, error) {
	fieldID, ok := seg.Schema().FieldID(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	return collectTerms(seg.Dict().IterPrefix(fieldID, prefix), limit)
}

// ExpandRange lists up to limit terms of field between lo and hi. A nil
// bound leaves that side open.
func ExpandRange(seg *segment.Reader, field string, lo, hi []byte,
	inclLo, inclHi bool, limit int,
) ([][]byte, error) {
	fieldID, ok := seg.Schema().FieldID(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	return collectTerms(seg.Dict().IterRange(fieldID, lo, hi, inclLo, inclHi), limit)
}

// ExpandWildcard lists up to limit terms of field matching a pattern with
// `*` (any run) and `?` (any single byte). The scan is bounded to the
// pattern's literal prefix.
func ExpandWildcard(seg *segment.Reader, field, pattern string, limit int) ([][]byte, error) {
	fieldID, ok := seg.Schema().FieldID(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	prefix := literalPrefix(pattern)
	if len(prefix) == len(pattern) {
		// no metacharacters, a plain term lookup
		return [][]byte{[]byte(pattern)}, nil
	}

	var out [][]byte
	it := seg.Dict().IterPrefix(fieldID, []byte(prefix))
	for it.Next() {
		if wildcardMatch(pattern, string(it.Term())) {
			out = append(out, append([]byte{}, it.Term()...))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func literalPrefix(pattern string) string {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' || pattern[i] == '?' {
			return pattern[:i]
		}
	}
	return pattern
}

// wildcardMatch runs the standard backtracking glob match over bytes.
func wildcardMatch(pattern, s string) bool {
	p, i := 0, 0
	star, starMatch := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			starMatch = i
			p++
		case star >= 0:
			p = star + 1
			starMatch++
			i = starMatch
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// ExpandFuzzy lists up to limit terms of field within the given Levenshtein
// distance of term. Candidates sharing no viable length are rejected before
// the DP runs.
func ExpandFuzzy(seg *segment.Reader, field string, term []byte,
	maxDist, limit int,
) ([][]byte, error) {
	fieldID, ok := seg.Schema().FieldID(field)
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "field %q", field)
	}
	if maxDist < 1 {
		maxDist = 1
	}

	var out [][]byte
	it := seg.Dict().IterPrefix(fieldID, nil)
	for it.Next() {
		cand := it.Term()
		diff := len(cand) - len(term)
		if diff < -maxDist || diff > maxDist {
			continue
		}
		if bytes.Equal(cand, term) || withinDistance(term, cand, maxDist) {
			out = append(out, append([]byte{}, cand...))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// withinDistance is a two-row Levenshtein check that bails out as soon as a
// full DP row exceeds max.
func withinDistance(a, b []byte, max int) bool {
	prev := make([]int, len(b)+1)
	row := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		row[0] = i
		best := row[0]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			row[j] = min3(prev[j]+1, row[j-1]+1, prev[j-1]+cost)
			if row[j] < best {
				best = row[j]
			}
		}
		if best > max {
			return false
		}
		prev, row = row, prev
	}
	return prev[len(b)] <= max
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
