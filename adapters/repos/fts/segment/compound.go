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

package segment

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
)

// CompoundFile is the single-container rendition of a segment's immutable
// side files, written by optimize to cut the per-segment file count.
func CompoundFile(id string) string { return id + ".cmp" }

var compoundMagic = []byte{'w', 'c', 'm', 'p', 1}

type compoundSpan struct {
	Offset uint64 `msgpack:"o"`
	Length uint64 `msgpack:"l"`
}

// WriteCompound packs the segment's immutable files into one container and
// deletes the originals. The deletion bitset stays outside, it is the only
// file that may still change.
func WriteCompound(st store.Store, id string) error {
	var members []string
	for _, name := range Files(id) {
		if name == DeletionsFile(id) || name == CompoundFile(id) {
			continue
		}
		members = append(members, name)
	}

	dir := map[string]compoundSpan{}
	err := writeWith(st, CompoundFile(id), func(dst store.Writer) error {
		if _, err := dst.Write(compoundMagic); err != nil {
			return err
		}
		for _, name := range members {
			f, err := st.Open(name)
			if err != nil {
				if errors.Is(err, fterrors.NotFound) {
					continue
				}
				return err
			}
			data, err := f.Bytes()
			if err != nil {
				f.Close()
				return err
			}
			dir[name] = compoundSpan{Offset: dst.Offset(), Length: uint64(len(data))}
			if _, err := dst.Write(data); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}

		blob, err := msgpack.Marshal(dir)
		if err != nil {
			return errors.Wrap(err, "marshal compound directory")
		}
		trailer := make([]byte, 0, len(blob)+8)
		trailer = append(trailer, blob...)
		trailer = binary.LittleEndian.AppendUint32(trailer, crc32.ChecksumIEEE(blob))
		trailer = binary.LittleEndian.AppendUint32(trailer, uint32(len(blob)))
		_, err = dst.Write(trailer)
		return err
	})
	if err != nil {
		st.Delete(CompoundFile(id))
		return errors.Wrapf(err, "write compound segment %s", id)
	}

	for _, name := range members {
		st.Delete(name)
	}
	return nil
}

// compoundStore resolves the packed member files as slices of the container
// and falls through to the base store for everything else, notably the
// deletion bitset.
type compoundStore struct {
	store.Store
	file store.Reader
	dir  map[string]compoundSpan
}

func openCompoundStore(base store.Store, file store.Reader) (*compoundStore, error) {
	size := file.Size()
	if size < uint64(len(compoundMagic))+8 {
		return nil, errors.Wrap(fterrors.Corrupt, "compound file truncated")
	}

	tail := make([]byte, 8)
	if _, err := file.ReadAt(tail, int64(size-8)); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, "compound trailer read")
	}
	want := binary.LittleEndian.Uint32(tail[:4])
	dirLen := uint64(binary.LittleEndian.Uint32(tail[4:]))
	if dirLen+8+uint64(len(compoundMagic)) > size {
		return nil, errors.Wrap(fterrors.Corrupt, "compound directory length")
	}

	blob := make([]byte, dirLen)
	if _, err := file.ReadAt(blob, int64(size-8-dirLen)); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, "compound directory read")
	}
	if got := crc32.ChecksumIEEE(blob); got != want {
		return nil, errors.Wrapf(fterrors.Corrupt,
			"compound directory checksum %08x, want %08x", got, want)
	}

	var dir map[string]compoundSpan
	if err := msgpack.Unmarshal(blob, &dir); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, "unmarshal compound directory")
	}
	return &compoundStore{Store: base, file: file, dir: dir}, nil
}

func (s *compoundStore) Open(name string) (store.Reader, error) {
	if span, ok := s.dir[name]; ok {
		return s.file.Slice(span.Offset, span.Length)
	}
	return s.Store.Open(name)
}

// OpenAuto opens a segment through its compound container when one exists
// and from the plain side files otherwise.
func OpenAuto(st store.Store, id string, sch *schema.Schema, logger logrus.FieldLogger) (*Reader, error) {
	cmp, err := st.Open(CompoundFile(id))
	if errors.Is(err, fterrors.NotFound) {
		return Open(st, id, sch, logger)
	}
	if err != nil {
		return nil, err
	}
	cs, err := openCompoundStore(st, cmp)
	if err != nil {
		cmp.Close()
		return nil, errors.Wrapf(err, "segment %s", id)
	}
	r, err := Open(cs, id, sch, logger)
	if err != nil {
		cmp.Close()
		return nil, err
	}
	r.closers = append(r.closers, cmp.Close)
	return r, nil
}
