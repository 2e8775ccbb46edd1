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

// Package postings encodes and decodes the fixed-size posting blocks of a
// segment. Blocks are self-sufficient: any block can be decoded knowing only
// its bytes and the base doc ID cached in the term dictionary's pointer
// list.
package postings

// BlockSize is the maximum number of postings per block. The final block of
// a list may be short.
const BlockSize = 128

// Posting is one (term, doc) occurrence record.
type Posting struct {
	DocID uint64
	Freq  uint32
	// Positions are strictly increasing token positions within the doc.
	// Empty unless the field records positions.
	Positions []uint32
	// Length is the token count of the field in this doc. Only consulted
	// at index time for the block statistics, it is not encoded per
	// posting (dense per-doc lengths live in the docstore).
	Length uint32
}

// BlockPointer locates one encoded block and caches the skip data matchers
// need to step over it without touching the payload.
type BlockPointer struct {
	// Offset and Length address the block inside the postings file.
	Offset uint64
	Length uint32
	// BaseDoc is the doc ID the block's first delta is relative to: the
	// previous block's last doc, or 0 for the first block.
	BaseDoc uint64
	// MaxDoc is the last doc ID contained in the block.
	MaxDoc uint64
	// MaxFreq and MinLengthByte bound the block for scoring.
	MaxFreq       uint32
	MinLengthByte byte
	// Impact is the precomputed score upper bound of the block under the
	// index-time quality function, excluding the per-term idf factor.
	Impact float64
}

// QualityFunc computes the index-time impact bound of a block from its
// recorded statistics. Provided by the scorer so the codec stays
// scorer-agnostic.
type QualityFunc func(maxFreq uint32, minLength uint32) float64

// Block is the decoded form of one posting block.
type Block struct {
	Docs  []uint64
	Freqs []uint32
	// Positions[i] holds the positions of Docs[i]. Nil when the field
	// does not record positions.
	Positions [][]uint32
}
