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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

func stores(t *testing.T) map[string]Store {
	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)
	mfs, err := NewFS(t.TempDir(), WithMMap())
	require.NoError(t, err)
	return map[string]Store{
		"mem":     NewMem(),
		"fs":      fs,
		"fs mmap": mfs,
	}
}

func writeFile(t *testing.T, st Store, name string, data []byte) {
	w, err := st.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.Equal(t, uint64(len(data)), w.Offset())
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
}

func TestStoreReadWrite(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeFile(t, st, "a", []byte("hello world"))

			r, err := st.Open("a")
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, uint64(11), r.Size())

			buf := make([]byte, 5)
			_, err = r.ReadAt(buf, 6)
			require.NoError(t, err)
			assert.Equal(t, []byte("world"), buf)

			all, err := r.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("hello world"), all)
		})
	}
}

func TestStoreSlice(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeFile(t, st, "a", []byte("hello world"))

			r, err := st.Open("a")
			require.NoError(t, err)
			defer r.Close()

			s, err := r.Slice(6, 5)
			require.NoError(t, err)
			assert.Equal(t, uint64(5), s.Size())

			data, err := s.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("world"), data)

			buf := make([]byte, 3)
			_, err = s.ReadAt(buf, 1)
			require.NoError(t, err)
			assert.Equal(t, []byte("orl"), buf)

			// closing a slice must not close the parent
			require.NoError(t, s.Close())
			_, err = r.ReadAt(buf, 0)
			assert.NoError(t, err)
		})
	}
}

func TestStoreListDeleteRename(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeFile(t, st, "a", []byte("1"))
			writeFile(t, st, "b.tmp", []byte("2"))

			names, err := st.List()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b.tmp"}, names)

			require.NoError(t, st.Rename("b.tmp", "b"))
			names, err = st.List()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b"}, names)

			r, err := st.Open("b")
			require.NoError(t, err)
			data, err := r.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), data)
			require.NoError(t, r.Close())

			require.NoError(t, st.Delete("a"))
			_, err = st.Open("a")
			assert.ErrorIs(t, err, fterrors.NotFound)

			// deleting a missing file is fine
			assert.NoError(t, st.Delete("a"))
		})
	}
}

func TestStoreCreateTruncates(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			writeFile(t, st, "a", []byte("long old content"))
			writeFile(t, st, "a", []byte("new"))

			r, err := st.Open("a")
			require.NoError(t, err)
			defer r.Close()
			data, err := r.Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte("new"), data)
		})
	}
}

func TestStoreLock(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			release, err := st.TryLock("write.lock")
			require.NoError(t, err)

			_, err = st.TryLock("write.lock")
			assert.ErrorIs(t, err, fterrors.Locked)

			require.NoError(t, release())
			// release is idempotent
			require.NoError(t, release())

			release2, err := st.TryLock("write.lock")
			require.NoError(t, err)
			require.NoError(t, release2())
		})
	}
}

func TestStoreOpenMissing(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Open("nope")
			assert.ErrorIs(t, err, fterrors.NotFound)
		})
	}
}
