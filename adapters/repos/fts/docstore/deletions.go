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

package docstore

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
	"github.com/weaviate/sroar"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

const deletionsVersion = 1

var deletionsMagic = []byte{'w', 'd', 'e', 'l'}

// WriteDeletions serializes the tombstone bitset of a segment. Deletion
// files are the only segment files rewritten after the segment is sealed,
// each rewrite replaces the whole file under a fresh generation.
func WriteDeletions(dst store.Writer, deleted *sroar.Bitmap) error {
	buf := append([]byte{}, deletionsMagic...)
	buf = append(buf, deletionsVersion)
	buf = byteops.AppendPrefixedBytes(buf, deleted.ToBuffer())
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	buf = append(buf, deletionsMagic...)
	if _, err := dst.Write(buf); err != nil {
		return errors.Wrap(err, "write deletions")
	}
	return nil
}

// LoadDeletions reads a tombstone bitset. The returned bitmap is a private
// copy, callers may mutate it.
func LoadDeletions(r store.Reader) (*sroar.Bitmap, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read deletions")
	}
	if err := checkEnvelope(data, deletionsMagic, deletionsVersion); err != nil {
		return nil, err
	}
	blob, _, err := byteops.PrefixedBytes(data[len(deletionsMagic)+1 : len(data)-8])
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return sroar.NewBitmap(), nil
	}
	return sroar.FromBufferWithCopy(blob), nil
}
