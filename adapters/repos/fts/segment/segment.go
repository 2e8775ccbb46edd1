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

// Package segment builds and reads the immutable on-disk segments of the
// index. A segment is a bundle of side files sharing one id: term
// dictionary (.trm), posting blocks (.pst), stored values (.stv), field
// lengths (.fln), optional term vectors (.vps), optional deletion bitset
// (.del) and the bloom sidecar (.blm). All files except .del are written
// once and never touched again.
package segment

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/docstore"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// Header is the per-segment metadata embedded in the term dictionary.
type Header struct {
	ID                string `msgpack:"id"`
	DocCount          uint64 `msgpack:"docCount"`
	SchemaFingerprint uint64 `msgpack:"schemaFingerprint"`
	HasVectors        bool   `msgpack:"hasVectors"`
}

func (h Header) marshal() ([]byte, error) {
	blob, err := msgpack.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "marshal segment header")
	}
	return blob, nil
}

func unmarshalHeader(blob []byte) (Header, error) {
	var h Header
	if err := msgpack.Unmarshal(blob, &h); err != nil {
		return Header{}, errors.Wrap(fterrors.Corrupt, "segment header")
	}
	return h, nil
}

// NewID returns a fresh random segment id.
func NewID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("segment id entropy: %v", err))
	}
	return hex.EncodeToString(b[:])
}

// File names of a segment's side files.
func TermsFile(id string) string     { return id + ".trm" }
func PostingsFile(id string) string  { return id + ".pst" }
func StoredFile(id string) string    { return id + ".stv" }
func LengthsFile(id string) string   { return id + ".fln" }
func VectorsFile(id string) string   { return id + ".vps" }
func DeletionsFile(id string) string { return id + ".del" }
func BloomFile(id string) string     { return id + ".blm" }

// Files lists every file the segment may own, the .del and .vps entries
// exist only when deletions or vectors were written.
func Files(id string) []string {
	return []string{
		TermsFile(id), PostingsFile(id), StoredFile(id), LengthsFile(id),
		VectorsFile(id), DeletionsFile(id), BloomFile(id), CompoundFile(id),
	}
}

// WriteDeletions replaces the segment's tombstone set. The only mutation a
// sealed segment ever sees, made atomic with a temp file rename so readers
// observe either the old or the new set.
func WriteDeletions(st store.Store, id string, deleted *sroar.Bitmap) error {
	tmp := DeletionsFile(id) + ".tmp"
	if err := writeWith(st, tmp, func(dst store.Writer) error {
		return docstore.WriteDeletions(dst, deleted)
	}); err != nil {
		return err
	}
	return errors.Wrapf(st.Rename(tmp, DeletionsFile(id)),
		"publish deletions of segment %s", id)
}
