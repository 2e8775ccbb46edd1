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

// Package index ties committed segments into one index: the TOC commit
// protocol with its generation counter, the reader that pins a generation,
// and the writer coordinator with its tiered merge policy.
package index

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/schema"
)

const tocPrefix = "TOC."

// SegmentEntry is one live segment in a TOC.
type SegmentEntry struct {
	ID string `msgpack:"id"`
	// Generation is the commit generation that introduced the segment.
	Generation uint64 `msgpack:"gen"`
	// DocCount is the segment's total doc count including deleted docs.
	DocCount uint64 `msgpack:"docCount"`
	// DelGen counts tombstone rewrites of the segment, letting readers
	// decide whether a pinned segment reader is still current.
	DelGen uint64 `msgpack:"delGen"`
}

// TOC is one committed snapshot of the index. The segment list is ordered
// by (Generation, ID), which fixes the global doc ID space of a search.
type TOC struct {
	Generation uint64         `msgpack:"generation"`
	Schema     *schema.Schema `msgpack:"schema"`
	Segments   []SegmentEntry `msgpack:"segments"`
}

// TOCName returns the file name of one generation's TOC.
func TOCName(gen uint64) string {
	return fmt.Sprintf("%s%020d", tocPrefix, gen)
}

func parseTOCName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, tocPrefix) || strings.HasSuffix(name, ".tmp") {
		return 0, false
	}
	gen, err := strconv.ParseUint(name[len(tocPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return gen, true
}

// writeTOC publishes a snapshot. The rename from the temp name is the
// linearization point of a commit: readers observe either the previous
// generation or this one, never a mix.
func writeTOC(st store.Store, toc TOC) error {
	blob, err := msgpack.Marshal(toc)
	if err != nil {
		return errors.Wrap(err, "marshal TOC")
	}
	blob = binary.LittleEndian.AppendUint32(blob, crc32.ChecksumIEEE(blob))

	name := TOCName(toc.Generation)
	tmp := name + ".tmp"
	f, err := st.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := f.Write(blob); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "fsync %s", tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp)
	}
	return errors.Wrapf(st.Rename(tmp, name), "publish %s", name)
}

func readTOC(st store.Store, gen uint64) (TOC, error) {
	f, err := st.Open(TOCName(gen))
	if err != nil {
		return TOC{}, err
	}
	defer f.Close()

	data, err := f.Bytes()
	if err != nil {
		return TOC{}, err
	}
	if len(data) < 4 {
		return TOC{}, errors.Wrapf(fterrors.Corrupt, "TOC %d truncated", gen)
	}
	crcPos := len(data) - 4
	want := binary.LittleEndian.Uint32(data[crcPos:])
	if got := crc32.ChecksumIEEE(data[:crcPos]); got != want {
		return TOC{}, errors.Wrapf(fterrors.Corrupt,
			"TOC %d checksum %08x, want %08x", gen, got, want)
	}

	var toc TOC
	if err := msgpack.Unmarshal(data[:crcPos], &toc); err != nil {
		return TOC{}, errors.Wrapf(fterrors.Corrupt, "unmarshal TOC %d", gen)
	}
	if toc.Generation != gen {
		return TOC{}, errors.Wrapf(fterrors.Corrupt,
			"TOC file %d claims generation %d", gen, toc.Generation)
	}
	return toc, nil
}

// Init publishes generation zero of a fresh index, an empty segment list
// carrying only the schema.
func Init(st store.Store, sch *schema.Schema) error {
	return writeTOC(st, TOC{Schema: sch})
}

// Latest returns the highest committed snapshot, ok false when the store
// holds no index.
func Latest(st store.Store) (TOC, bool, error) {
	return latestTOC(st)
}

// latestTOC scans the directory for the highest committed generation. A
// half-written commit leaves only a .tmp file and is invisible here. ok is
// false for a never-committed index.
func latestTOC(st store.Store) (TOC, bool, error) {
	names, err := st.List()
	if err != nil {
		return TOC{}, false, err
	}
	best, found := uint64(0), false
	for _, name := range names {
		if gen, ok := parseTOCName(name); ok && (!found || gen > best) {
			best, found = gen, true
		}
	}
	if !found {
		return TOC{}, false, nil
	}
	toc, err := readTOC(st, best)
	if err != nil {
		return TOC{}, false, err
	}
	return toc, true, nil
}
