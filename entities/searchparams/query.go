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

// Package searchparams defines the query tree consumed by the searcher. No
// parser lives here: callers (or an external grammar) construct trees
// programmatically.
package searchparams

// Query is the closed set of query tree nodes.
type Query interface {
	isQuery()
}

// Term matches documents containing the exact term bytes in a field.
type Term struct {
	Field string
	Term  []byte
}

// Phrase matches documents where the given terms occur in order, each at
// most Slop positions after the previous one. Slop 0 and 1 both mean
// adjacent.
type Phrase struct {
	Field string
	Terms [][]byte
	Slop  int
}

// And intersects its subqueries.
type And struct {
	Subqueries []Query
}

// Or unions its subqueries.
type Or struct {
	Subqueries []Query
}

// AndNot matches Include minus Exclude.
type AndNot struct {
	Include Query
	Exclude Query
}

// Range matches terms within [Lo, Hi] under lexicographic byte order, with
// per-bound inclusivity. Nil bounds are open.
type Range struct {
	Field  string
	Lo     []byte
	Hi     []byte
	InclLo bool
	InclHi bool
}

// Prefix matches all terms starting with the given bytes.
type Prefix struct {
	Field  string
	Prefix []byte
}

// Wildcard matches terms against a glob pattern with `*` and `?`.
type Wildcard struct {
	Field   string
	Pattern string
}

// Fuzzy matches terms within MaxDist Levenshtein edits of Term.
type Fuzzy struct {
	Field   string
	Term    []byte
	MaxDist int
}

// Every matches all live documents, or all documents with at least one term
// in Field when Field is non-empty.
type Every struct {
	Field string
}

// Boost multiplies the score of its subquery.
type Boost struct {
	Sub    Query
	Factor float64
}

// Constant scores every match of its subquery with a fixed value.
type Constant struct {
	Sub   Query
	Score float64
}

func (Term) isQuery()     {}
func (Phrase) isQuery()   {}
func (And) isQuery()      {}
func (Or) isQuery()       {}
func (AndNot) isQuery()   {}
func (Range) isQuery()    {}
func (Prefix) isQuery()   {}
func (Wildcard) isQuery() {}
func (Fuzzy) isQuery()    {}
func (Every) isQuery()    {}
func (Boost) isQuery()    {}
func (Constant) isQuery() {}
