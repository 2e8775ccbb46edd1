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
	"os"
	"path/filepath"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/diskio"
	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// FS is the filesystem-backed store rooted at one directory.
type FS struct {
	dir  string
	mmap bool
}

type FSOption func(*FS)

// WithMMap makes readers hand out memory-mapped buffers instead of reading
// files into heap memory.
func WithMMap() FSOption {
	return func(f *FS) { f.mmap = true }
}

func NewFS(dir string, opts ...FSOption) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create store directory")
	}
	f := &FS{dir: dir}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FS) Dir() string {
	return f.dir
}

func (f *FS) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *FS) Create(name string) (Writer, error) {
	file, err := os.OpenFile(f.path(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %q", name)
	}
	return &fsWriter{f: file}, nil
}

func (f *FS) Open(name string) (Reader, error) {
	file, err := os.Open(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(fterrors.NotFound, "file %q", name)
		}
		return nil, errors.Wrapf(err, "open %q", name)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat %q", name)
	}

	r := &fsReader{
		file: file,
		off:  0,
		size: uint64(info.Size()),
	}
	if f.mmap && info.Size() > 0 {
		m, err := mmap.Map(file, mmap.RDONLY, 0)
		if err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "mmap %q", name)
		}
		r.mapped = m
	}
	return r, nil
}

func (f *FS) List() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, errors.Wrap(err, "list store directory")
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

func (f *FS) Delete(name string) error {
	err := os.Remove(f.path(name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %q", name)
	}
	return nil
}

func (f *FS) Rename(from, to string) error {
	if err := os.Rename(f.path(from), f.path(to)); err != nil {
		return errors.Wrapf(err, "rename %q -> %q", from, to)
	}
	return diskio.SyncDir(f.dir)
}

func (f *FS) Lock(name string) (func() error, error) {
	return f.lock(name, false)
}

func (f *FS) TryLock(name string) (func() error, error) {
	return f.lock(name, true)
}

func (f *FS) lock(name string, nonblock bool) (func() error, error) {
	file, err := os.OpenFile(f.path(name), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open lock file %q", name)
	}

	how := unix.LOCK_EX
	if nonblock {
		how |= unix.LOCK_NB
	}
	if err := unix.Flock(int(file.Fd()), how); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, errors.Wrapf(fterrors.Locked, "lock %q", name)
		}
		return nil, errors.Wrapf(err, "flock %q", name)
	}

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
			file.Close()
			return errors.Wrapf(err, "unlock %q", name)
		}
		return file.Close()
	}, nil
}

type fsWriter struct {
	f      *os.File
	offset uint64
}

func (w *fsWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.offset += uint64(n)
	return n, err
}

func (w *fsWriter) Sync() error {
	return w.f.Sync()
}

func (w *fsWriter) Close() error {
	return w.f.Close()
}

func (w *fsWriter) Offset() uint64 {
	return w.offset
}

type fsReader struct {
	file   *os.File
	mapped mmap.MMap
	off    uint64
	size   uint64
	// slices share the parent's file handle and must not close it
	isSlice bool
}

func (r *fsReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off) > r.size {
		return 0, errors.Wrap(fterrors.Corrupt, "read past end of slice")
	}
	max := r.size - uint64(off)
	n := len(p)
	short := false
	if uint64(n) > max {
		n = int(max)
		short = true
	}
	if r.mapped != nil {
		copy(p[:n], r.mapped[r.off+uint64(off):r.off+uint64(off)+uint64(n)])
		if short {
			return n, io.EOF
		}
		return n, nil
	}
	read, err := r.file.ReadAt(p[:n], int64(r.off)+off)
	if err == nil && short {
		err = io.EOF
	}
	return read, err
}

func (r *fsReader) Size() uint64 {
	return r.size
}

func (r *fsReader) Slice(off, length uint64) (Reader, error) {
	if off+length > r.size {
		return nil, errors.Wrap(fterrors.Corrupt, "slice out of bounds")
	}
	return &fsReader{
		file:    r.file,
		mapped:  r.mapped,
		off:     r.off + off,
		size:    length,
		isSlice: true,
	}, nil
}

func (r *fsReader) Bytes() ([]byte, error) {
	if r.mapped != nil {
		return r.mapped[r.off : r.off+r.size], nil
	}
	buf := make([]byte, r.size)
	if r.size == 0 {
		return buf, nil
	}
	if _, err := r.file.ReadAt(buf, int64(r.off)); err != nil {
		return nil, errors.Wrap(err, "read file contents")
	}
	return buf, nil
}

func (r *fsReader) Close() error {
	if r.isSlice {
		return nil
	}
	if r.mapped != nil {
		m := r.mapped
		r.mapped = nil
		if err := m.Unmap(); err != nil {
			r.file.Close()
			return err
		}
	}
	return r.file.Close()
}
