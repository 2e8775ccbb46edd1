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

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

func TestFieldLookup(t *testing.T) {
	s := MustNew(
		IDField("id", WithUnique()),
		TextField("title", WithFieldBoost(2)),
		NumericField("year"),
		StoredField("raw"),
	)

	require.Equal(t, 4, s.Len())

	id, ok := s.FieldID("title")
	require.True(t, ok)
	assert.Equal(t, uint16(1), id)

	f, ok := s.FieldByID(2)
	require.True(t, ok)
	assert.Equal(t, "year", f.Name)
	assert.Equal(t, FieldTypeNumeric, f.Type)

	_, ok = s.FieldID("nope")
	assert.False(t, ok)
	_, ok = s.FieldByID(4)
	assert.False(t, ok)

	title, ok := s.Field("title")
	require.True(t, ok)
	assert.True(t, title.Scorable)
	assert.True(t, title.Positions)
	assert.Equal(t, float64(2), title.Boost)

	raw, ok := s.Field("raw")
	require.True(t, ok)
	assert.False(t, raw.Indexed)
	assert.True(t, raw.Stored)
}

func TestFieldSets(t *testing.T) {
	s := MustNew(
		IDField("id", WithUnique()),
		TextField("title"),
		TextField("body"),
		IDField("key", WithUnique()),
	)

	assert.Equal(t, []string{"body", "title"}, s.ScorableFields())
	assert.Equal(t, []string{"id", "key"}, s.UniqueFields())
}

func TestAddField(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		_, err := New(TextField(""))
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})

	t.Run("identical redeclaration is a no-op", func(t *testing.T) {
		s := MustNew(TextField("body"))
		require.NoError(t, s.AddField(TextField("body")))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("conflicting redeclaration", func(t *testing.T) {
		s := MustNew(TextField("body"))
		err := s.AddField(IDField("body"))
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})

	t.Run("boost does not conflict", func(t *testing.T) {
		s := MustNew(TextField("body"))
		require.NoError(t, s.AddField(TextField("body", WithFieldBoost(3))))
	})
}

func TestExtendedBy(t *testing.T) {
	base := MustNew(IDField("id", WithUnique()), TextField("body"))

	t.Run("identical", func(t *testing.T) {
		assert.NoError(t, base.ExtendedBy(MustNew(
			IDField("id", WithUnique()), TextField("body"))))
	})

	t.Run("appended field", func(t *testing.T) {
		assert.NoError(t, base.ExtendedBy(MustNew(
			IDField("id", WithUnique()), TextField("body"), NumericField("year"))))
	})

	t.Run("dropped field", func(t *testing.T) {
		err := base.ExtendedBy(MustNew(IDField("id", WithUnique())))
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})

	t.Run("changed semantics", func(t *testing.T) {
		err := base.ExtendedBy(MustNew(
			IDField("id"), TextField("body")))
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})

	t.Run("reordered", func(t *testing.T) {
		err := base.ExtendedBy(MustNew(
			TextField("body"), IDField("id", WithUnique())))
		assert.ErrorIs(t, err, fterrors.SchemaMismatch)
	})
}

func TestFingerprint(t *testing.T) {
	a := MustNew(IDField("id", WithUnique()), TextField("body"))
	b := MustNew(IDField("id", WithUnique()), TextField("body"))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	t.Run("sensitive to flags and order", func(t *testing.T) {
		noUnique := MustNew(IDField("id"), TextField("body"))
		assert.NotEqual(t, a.Fingerprint(), noUnique.Fingerprint())

		reordered := MustNew(TextField("body"), IDField("id", WithUnique()))
		assert.NotEqual(t, a.Fingerprint(), reordered.Fingerprint())
	})

	t.Run("boost excluded", func(t *testing.T) {
		boosted := MustNew(IDField("id", WithUnique()), TextField("body", WithFieldBoost(4)))
		assert.Equal(t, a.Fingerprint(), boosted.Fingerprint())
	})

	t.Run("extension stays compatible", func(t *testing.T) {
		ext := MustNew(IDField("id", WithUnique()), TextField("body"), NumericField("year"))
		assert.True(t, ext.CompatibleWith(a.Fingerprint()))
		assert.True(t, ext.CompatibleWith(ext.Fingerprint()))
		assert.False(t, a.CompatibleWith(ext.Fingerprint()))
	})
}
