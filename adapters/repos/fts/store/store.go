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

// Package store abstracts the directory of named append-only files a segment
// index lives in. The atomic rename is the only commit primitive the rest of
// the core relies on.
package store

import (
	"io"
)

// Writer writes a new named file. Data only becomes durable after Sync and
// Close both return nil.
type Writer interface {
	io.Writer
	// Sync flushes the file to stable storage.
	Sync() error
	io.Closer
	// Offset is the number of bytes written so far.
	Offset() uint64
}

// Reader is a read-only view of a named file supporting absolute reads.
type Reader interface {
	io.ReaderAt
	io.Closer
	// Size is the byte length of the view.
	Size() uint64
	// Slice bounds further reads to [off, off+length). Used to pack many
	// logical files into one physical container. The slice shares the
	// underlying file, Close on a slice is a no-op.
	Slice(off, length uint64) (Reader, error)
	// Bytes returns the whole view as one buffer. Implementations may
	// return a memory-mapped region, callers must not mutate it.
	Bytes() ([]byte, error)
}

// Store is a flat namespace of files with an atomic rename.
type Store interface {
	// Create opens a new file for writing. Creating an existing name
	// truncates it, half-written commit leftovers are overwritten on retry.
	Create(name string) (Writer, error)
	// Open opens an existing file for reading.
	Open(name string) (Reader, error)
	// List returns all file names, unordered.
	List() ([]string, error)
	// Delete removes a file. Deleting a missing file is not an error.
	Delete(name string) error
	// Rename atomically replaces to with from.
	Rename(from, to string) error
	// Lock acquires the advisory lock of the given name, blocking until
	// available. The returned release function is idempotent.
	Lock(name string) (release func() error, err error)
	// TryLock is Lock without blocking, failing with fterrors.Locked.
	TryLock(name string) (release func() error, err error)
}
