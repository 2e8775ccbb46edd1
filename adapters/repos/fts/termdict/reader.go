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

package termdict

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/willf/bloom"

	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/postings"
	"github.com/Sygil-Dev/whoosh-reloaded/adapters/repos/fts/store"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
	"github.com/Sygil-Dev/whoosh-reloaded/usecases/byteops"
)

// footer is indexOffset + entryCount + crc + magic.
const footerSize = 8 + 8 + 4 + 4

// Reader gives random and ordered access to a finished dictionary. The
// sparse index is held in memory, entries are decoded on demand from the
// (typically mmapped) file bytes.
type Reader struct {
	data         []byte
	header       []byte
	entriesStart uint64
	indexOffset  uint64
	count        uint64
	index        []indexEntry
	bloom        *bloom.BloomFilter
}

// NewReader validates the checksum and loads the sparse index.
func NewReader(r store.Reader) (*Reader, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read term dictionary")
	}
	if len(data) < len(magic)+1+footerSize {
		return nil, errors.Wrap(fterrors.Corrupt, "term dictionary too short")
	}
	if !bytes.Equal(data[:len(magic)], magic) ||
		!bytes.Equal(data[len(data)-len(magic):], magic) {
		return nil, errors.Wrap(fterrors.Corrupt, "term dictionary magic")
	}
	if data[len(magic)] != version {
		return nil, errors.Wrapf(fterrors.Corrupt,
			"term dictionary version %d", data[len(magic)])
	}

	crcPos := len(data) - footerSize + 16
	want := binary.LittleEndian.Uint32(data[crcPos:])
	if got := crc32.ChecksumIEEE(data[:crcPos]); got != want {
		return nil, errors.Wrapf(fterrors.Corrupt,
			"term dictionary checksum %08x, expected %08x", got, want)
	}

	d := &Reader{
		data:        data,
		indexOffset: binary.LittleEndian.Uint64(data[len(data)-footerSize:]),
		count:       binary.LittleEndian.Uint64(data[len(data)-footerSize+8:]),
	}
	if d.indexOffset > uint64(crcPos) {
		return nil, errors.Wrap(fterrors.Corrupt, "sparse index offset out of range")
	}

	hdr, n, err := byteops.PrefixedBytes(data[len(magic)+1:])
	if err != nil {
		return nil, err
	}
	d.header = hdr
	d.entriesStart = uint64(len(magic) + 1 + n)

	if err := d.loadIndex(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Reader) loadIndex() error {
	buf := d.data[d.indexOffset:]
	n, consumed, err := byteops.Uvarint(buf)
	if err != nil {
		return err
	}
	buf = buf[consumed:]
	d.index = make([]indexEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		var e indexEntry
		fid, c, err := byteops.Uvarint(buf)
		if err != nil {
			return err
		}
		buf = buf[c:]
		e.fieldID = uint16(fid)
		if e.term, c, err = byteops.PrefixedBytes(buf); err != nil {
			return err
		}
		buf = buf[c:]
		if e.offset, c, err = byteops.Uvarint(buf); err != nil {
			return err
		}
		buf = buf[c:]
		if e.ordinal, c, err = byteops.Uvarint(buf); err != nil {
			return err
		}
		buf = buf[c:]
		d.index = append(d.index, e)
	}
	return nil
}

// SetBloom attaches the sidecar filter so point lookups can skip the
// dictionary scan on definite misses.
func (d *Reader) SetBloom(f *bloom.BloomFilter) {
	d.bloom = f
}

// Header returns the opaque header blob stored by the writer.
func (d *Reader) Header() []byte {
	return d.header
}

// NumTerms returns the number of entries in the dictionary.
func (d *Reader) NumTerms() uint64 {
	return d.count
}

// Get looks up one (field, term) pair. The boolean reports presence, an
// absent term is not an error.
func (d *Reader) Get(fieldID uint16, term []byte) (TermInfo, bool, error) {
	if d.bloom != nil && !d.bloom.Test(bloomKey(fieldID, term)) {
		return TermInfo{}, false, nil
	}
	it := d.seek(fieldID, term)
	for it.Next() {
		c := compareKeys(it.fieldID, it.term, fieldID, term)
		if c == 0 {
			return it.info, true, nil
		}
		if c > 0 {
			return TermInfo{}, false, nil
		}
	}
	return TermInfo{}, false, it.Err()
}

// Contains reports whether the dictionary holds an entry for (field, term).
func (d *Reader) Contains(fieldID uint16, term []byte) (bool, error) {
	_, ok, err := d.Get(fieldID, term)
	return ok, err
}

// Iter iterates the whole dictionary in (field, term) order.
func (d *Reader) Iter() *Iterator {
	return &Iterator{
		d:         d,
		pos:       d.entriesStart,
		remaining: d.count,
	}
}

// IterFrom positions an iterator at the first entry >= (fieldID, term).
func (d *Reader) IterFrom(fieldID uint16, term []byte) *Iterator {
	it := d.seek(fieldID, term)
	it.skipBelow(fieldID, term)
	return it
}

// IterPrefix iterates the entries of fieldID whose term has the given
// prefix.
func (d *Reader) IterPrefix(fieldID uint16, prefix []byte) *Iterator {
	it := d.IterFrom(fieldID, prefix)
	p := append([]byte{}, prefix...)
	it.stop = func(f uint16, term []byte) bool {
		return f != fieldID || !bytes.HasPrefix(term, p)
	}
	return it
}

// IterRange iterates the entries of fieldID with lo <= term <= hi under the
// given inclusivity. A nil lo starts at the field's first term, a nil hi
// runs to its last.
func (d *Reader) IterRange(fieldID uint16, lo, hi []byte, inclLo, inclHi bool) *Iterator {
	it := d.seek(fieldID, lo)
	it.skipBelow(fieldID, lo)
	if lo != nil && !inclLo {
		loCopy := append([]byte{}, lo...)
		it.skipWhile(func(f uint16, term []byte) bool {
			return f == fieldID && bytes.Equal(term, loCopy)
		})
	}
	var hiCopy []byte
	if hi != nil {
		hiCopy = append([]byte{}, hi...)
	}
	it.stop = func(f uint16, term []byte) bool {
		if f != fieldID {
			return true
		}
		if hiCopy == nil {
			return false
		}
		c := bytes.Compare(term, hiCopy)
		if inclHi {
			return c > 0
		}
		return c >= 0
	}
	return it
}

// seek returns an iterator positioned at the sparse index entry preceding
// (fieldID, term). The caller scans forward from there.
func (d *Reader) seek(fieldID uint16, term []byte) *Iterator {
	i := sort.Search(len(d.index), func(i int) bool {
		return compareKeys(d.index[i].fieldID, d.index[i].term, fieldID, term) > 0
	})
	if i == 0 {
		return d.Iter()
	}
	e := d.index[i-1]
	return &Iterator{
		d:         d,
		pos:       e.offset,
		remaining: d.count - e.ordinal,
	}
}

func compareKeys(af uint16, at []byte, bf uint16, bt []byte) int {
	if af != bf {
		if af < bf {
			return -1
		}
		return 1
	}
	return bytes.Compare(at, bt)
}

// LoadBloom reads a bloom sidecar written by Writer.WriteBloom.
func LoadBloom(r store.Reader) (*bloom.BloomFilter, error) {
	data, err := r.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "read bloom sidecar")
	}
	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, "bloom sidecar")
	}
	return f, nil
}

// decodeEntry decodes the entry starting at data[pos], returning the bytes
// consumed.
func (d *Reader) decodeEntry(pos uint64) (fieldID uint16, term []byte, info TermInfo, consumed uint64, err error) {
	if pos >= d.indexOffset {
		err = errors.Wrap(fterrors.Corrupt, "entry offset past sparse index")
		return
	}
	buf := d.data[pos:d.indexOffset]
	total := 0

	fid, n, err := byteops.Uvarint(buf)
	if err != nil {
		return
	}
	buf, total = buf[n:], total+n
	fieldID = uint16(fid)

	if term, n, err = byteops.PrefixedBytes(buf); err != nil {
		return
	}
	buf, total = buf[n:], total+n

	if len(buf) < 1 {
		err = errors.Wrap(fterrors.Corrupt, "truncated entry flags")
		return
	}
	flags := entryFlags(buf[0])
	buf, total = buf[1:], total+1

	if info.DF, n, err = byteops.Uvarint(buf); err != nil {
		return
	}
	buf, total = buf[n:], total+n
	if info.CF, n, err = byteops.Uvarint(buf); err != nil {
		return
	}
	buf, total = buf[n:], total+n

	if len(buf) < 8 {
		err = errors.Wrap(fterrors.Corrupt, "truncated entry quality")
		return
	}
	info.MaxQuality = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	buf, total = buf[8:], total+8

	if flags&flagInline != 0 {
		var p postings.Posting
		if p.DocID, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		var freq uint64
		if freq, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		p.Freq = uint32(freq) + 1
		if flags&flagInlinePositions != 0 {
			var posCount uint64
			if posCount, n, err = byteops.Uvarint(buf); err != nil {
				return
			}
			buf, total = buf[n:], total+n
			p.Positions = make([]uint32, posCount)
			pv := uint32(0)
			for j := uint64(0); j < posCount; j++ {
				var delta uint64
				if delta, n, err = byteops.Uvarint(buf); err != nil {
					return
				}
				buf, total = buf[n:], total+n
				pv += uint32(delta)
				p.Positions[j] = pv
			}
		}
		info.Inline = &p
		consumed = uint64(total)
		return
	}

	blockCount, n, err := byteops.Uvarint(buf)
	if err != nil {
		return
	}
	buf, total = buf[n:], total+n
	info.Blocks = make([]postings.BlockPointer, blockCount)
	prevOffset := uint64(0)
	prevBase := uint64(0)
	for i := uint64(0); i < blockCount; i++ {
		b := &info.Blocks[i]
		var v uint64
		if v, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		b.Offset = prevOffset + v
		if v, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		b.Length = uint32(v)
		if v, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		b.BaseDoc = prevBase + v
		if v, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		b.MaxDoc = b.BaseDoc + v
		if v, n, err = byteops.Uvarint(buf); err != nil {
			return
		}
		buf, total = buf[n:], total+n
		b.MaxFreq = uint32(v)
		if len(buf) < 1+8 {
			err = errors.Wrap(fterrors.Corrupt, "truncated block pointer")
			return
		}
		b.MinLengthByte = buf[0]
		b.Impact = math.Float64frombits(binary.LittleEndian.Uint64(buf[1:]))
		buf, total = buf[9:], total+9
		prevOffset = b.Offset
		prevBase = b.BaseDoc
	}
	consumed = uint64(total)
	return
}
