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

package schema

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// Fingerprint hashes the semantic content of the schema. Segments record it
// in their header so that an index opened with an incompatible schema fails
// fast instead of misreading postings.
//
// The hash covers names, types and flags in declaration order. Field boosts
// are a query-time concern and are deliberately excluded.
func (s *Schema) Fingerprint() uint64 {
	h := murmur3.New64()
	var buf [4]byte
	for _, f := range s.Fields {
		h.Write([]byte(f.Name))
		binary.LittleEndian.PutUint32(buf[:], uint32(f.Type))
		h.Write(buf[:])
		h.Write([]byte{
			b2b(f.Indexed), b2b(f.Stored), b2b(f.Scorable), b2b(f.Positions),
			b2b(f.Offsets), b2b(f.Boosts), b2b(f.Unique), b2b(f.TermVector),
		})
	}
	return h.Sum64()
}

// CompatibleWith reports whether a segment fingerprint is that of s or of a
// prefix of s (its first fields in declaration order), which is the
// schema-extension rule: a segment written under a schema stays readable
// under any extension of it.
func (s *Schema) CompatibleWith(segmentFingerprint uint64) bool {
	if s.Fingerprint() == segmentFingerprint {
		return true
	}
	// A segment written under a prefix of the current schema is compatible.
	prefix := &Schema{}
	for _, f := range s.Fields {
		prefix.Fields = append(prefix.Fields, f)
		prefix.byName = nil
		if prefix.Fingerprint() == segmentFingerprint {
			return true
		}
	}
	return false
}

func b2b(b bool) byte {
	if b {
		return 1
	}
	return 0
}
