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

// Package schema declares the typed field layout of an index. A schema is
// immutable for the life of a segment. It may be extended between commits as
// long as already declared fields keep identical semantics.
package schema

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

// Schema is an ordered mapping from field name to field declaration. Field
// IDs are assigned by declaration order and are stable across extensions.
type Schema struct {
	Fields []Field `msgpack:"fields"`

	byName map[string]int
}

func New(fields ...Field) (*Schema, error) {
	s := &Schema{}
	for _, f := range fields {
		if err := s.AddField(f); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is New for statically known schemas, mostly in tests.
func MustNew(fields ...Field) *Schema {
	s, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) index() map[string]int {
	if s.byName == nil {
		s.byName = make(map[string]int, len(s.Fields))
		for i, f := range s.Fields {
			s.byName[f.Name] = i
		}
	}
	return s.byName
}

// AddField appends a new field declaration. Redeclaring an existing name is
// only valid with identical semantics and is then a no-op.
func (s *Schema) AddField(f Field) error {
	if f.Name == "" {
		return errors.Wrap(fterrors.SchemaMismatch, "field name must not be empty")
	}
	if f.Boost == 0 {
		f.Boost = 1
	}
	if i, ok := s.index()[f.Name]; ok {
		if !s.Fields[i].equalSemantics(f) {
			return errors.Wrapf(fterrors.SchemaMismatch,
				"field %q redeclared with different semantics", f.Name)
		}
		return nil
	}
	s.Fields = append(s.Fields, f)
	s.byName[f.Name] = len(s.Fields) - 1
	return nil
}

// FieldID returns the stable numeric ID of a field name.
func (s *Schema) FieldID(name string) (uint16, bool) {
	i, ok := s.index()[name]
	return uint16(i), ok
}

// Field returns the declaration for name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index()[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// FieldByID returns the declaration for a numeric field ID.
func (s *Schema) FieldByID(id uint16) (Field, bool) {
	if int(id) >= len(s.Fields) {
		return Field{}, false
	}
	return s.Fields[id], true
}

func (s *Schema) Len() int {
	return len(s.Fields)
}

// ScorableFields returns the names of all scorable fields, sorted.
func (s *Schema) ScorableFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Scorable {
			out = append(out, f.Name)
		}
	}
	sort.Strings(out)
	return out
}

// UniqueFields returns the names of all unique (primary-key) fields in
// declaration order.
func (s *Schema) UniqueFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Unique {
			out = append(out, f.Name)
		}
	}
	return out
}

// ExtendedBy verifies that other is a valid extension of s: every field of s
// must reappear in other with identical semantics.
func (s *Schema) ExtendedBy(other *Schema) error {
	for _, f := range s.Fields {
		of, ok := other.Field(f.Name)
		if !ok {
			return errors.Wrapf(fterrors.SchemaMismatch,
				"field %q dropped by schema extension", f.Name)
		}
		if !f.equalSemantics(of) {
			return errors.Wrapf(fterrors.SchemaMismatch,
				"field %q changed semantics", f.Name)
		}
	}
	for i, f := range s.Fields {
		if other.Fields[i].Name != f.Name {
			return errors.Wrap(fterrors.SchemaMismatch,
				"schema extension reordered existing fields")
		}
	}
	return nil
}

func (s *Schema) String() string {
	return fmt.Sprintf("schema(%d fields, fp=%x)", len(s.Fields), s.Fingerprint())
}
