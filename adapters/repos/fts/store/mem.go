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

package store

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// Mem is an in-memory store for tests. It mirrors the FS semantics,
// including atomic rename and advisory locks.
type Mem struct {
	mu    sync.Mutex
	files map[string][]byte
	locks map[string]*sync.Mutex
}

func NewMem() *Mem {
	return &Mem{
		files: map[string][]byte{},
		locks: map[string]*sync.Mutex{},
	}
}

func (m *Mem) Create(name string) (Writer, error) {
	return &memWriter{store: m, name: name}, nil
}

func (m *Mem) Open(name string) (Reader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, errors.Wrapf(fterrors.NotFound, "file %q", name)
	}
	return &memReader{data: data}, nil
}

func (m *Mem) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for name := range m.files {
		out = append(out, name)
	}
	return out, nil
}

func (m *Mem) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

func (m *Mem) Rename(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[from]
	if !ok {
		return errors.Wrapf(fterrors.NotFound, "rename source %q", from)
	}
	m.files[to] = data
	delete(m.files, from)
	return nil
}

func (m *Mem) Lock(name string) (func() error, error) {
	l := m.lockFor(name)
	l.Lock()
	return m.releaser(l), nil
}

func (m *Mem) TryLock(name string) (func() error, error) {
	l := m.lockFor(name)
	if !l.TryLock() {
		return nil, errors.Wrapf(fterrors.Locked, "lock %q", name)
	}
	return m.releaser(l), nil
}

func (m *Mem) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

func (m *Mem) releaser(l *sync.Mutex) func() error {
	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		l.Unlock()
		return nil
	}
}

type memWriter struct {
	store *Mem
	name  string
	buf   []byte
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memWriter) Sync() error {
	return nil
}

func (w *memWriter) Close() error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()
	w.store.files[w.name] = w.buf
	return nil
}

func (w *memWriter) Offset() uint64 {
	return uint64(len(w.buf))
}

type memReader struct {
	data []byte
}

func (r *memReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(r.data)) {
		return 0, errors.Wrap(fterrors.Corrupt, "read past end of slice")
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (r *memReader) Size() uint64 {
	return uint64(len(r.data))
}

func (r *memReader) Slice(off, length uint64) (Reader, error) {
	if off+length > uint64(len(r.data)) {
		return nil, errors.Wrap(fterrors.Corrupt, "slice out of bounds")
	}
	return &memReader{data: r.data[off : off+length]}, nil
}

func (r *memReader) Bytes() ([]byte, error) {
	return r.data, nil
}

func (r *memReader) Close() error {
	return nil
}
