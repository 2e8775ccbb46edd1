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

// Package termdict implements the sorted on-disk term dictionary of a
// segment. Entries map (field, term) to document/collection frequencies and
// either one inline posting or the block pointer list into the postings
// file. Lookups go through an in-memory sparse index over every 64th entry,
// point lookups can additionally be guarded by a bloom sidecar.
package termdict

import (
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
)

const (
	// indexInterval is the entry stride of the in-memory sparse index.
	indexInterval = 64

	version = 1
)

var magic = []byte{'w', 't', 'r', 'm'}

// TermInfo is the dictionary value of one (field, term) pair.
type TermInfo struct {
	// DF is the number of documents containing the term, CF the total
	// number of occurrences across the segment.
	DF uint64
	CF uint64
	// MaxQuality is the largest block impact of the term's posting list.
	MaxQuality float64
	// Inline holds the single posting of a df==1 term, saving the block
	// round trip. Nil when Blocks is used.
	Inline *postings.Posting
	// Blocks point into the postings file. Empty when Inline is set.
	Blocks []postings.BlockPointer
}

type entryFlags byte

const (
	flagInline entryFlags = 1 << iota
	flagInlinePositions
)
