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

// Iterator walks dictionary entries in (field, term) order. The usual loop:
//
//	for it.Next() {
//		use it.FieldID(), it.Term(), it.Info()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	d         *Reader
	pos       uint64
	remaining uint64
	// stop ends the iteration once it reports true for the decoded entry.
	stop func(fieldID uint16, term []byte) bool

	fieldID uint16
	term    []byte
	info    TermInfo
	err     error
}

// Next advances to the following entry, reporting false at the end of the
// iteration or on error.
func (it *Iterator) Next() bool {
	if it.err != nil || it.remaining == 0 {
		return false
	}
	fieldID, term, info, consumed, err := it.d.decodeEntry(it.pos)
	if err != nil {
		it.err = err
		return false
	}
	if it.stop != nil && it.stop(fieldID, term) {
		it.remaining = 0
		return false
	}
	it.fieldID = fieldID
	it.term = term
	it.info = info
	it.pos += consumed
	it.remaining--
	return true
}

// FieldID returns the field of the current entry.
func (it *Iterator) FieldID() uint16 {
	return it.fieldID
}

// Term returns the current term. The slice aliases the dictionary bytes and
// stays valid until the reader closes.
func (it *Iterator) Term() []byte {
	return it.term
}

// Info returns the current entry's value.
func (it *Iterator) Info() TermInfo {
	return it.info
}

// Err returns the first decode error encountered, if any.
func (it *Iterator) Err() error {
	return it.err
}

// skipBelow advances past all entries ordered before (fieldID, term)
// without surfacing them. The iterator is left so the next call to Next
// yields the first entry >= the key.
func (it *Iterator) skipBelow(fieldID uint16, term []byte) {
	if term == nil {
		it.skipWhile(func(f uint16, _ []byte) bool {
			return f < fieldID
		})
		return
	}
	it.skipWhile(func(f uint16, t []byte) bool {
		return compareKeys(f, t, fieldID, term) < 0
	})
}

// skipWhile advances past entries for which keep reports true.
func (it *Iterator) skipWhile(keep func(fieldID uint16, term []byte) bool) {
	for it.err == nil && it.remaining > 0 {
		fieldID, term, _, consumed, err := it.d.decodeEntry(it.pos)
		if err != nil {
			it.err = err
			return
		}
		if !keep(fieldID, term) {
			return
		}
		it.pos += consumed
		it.remaining--
	}
}
