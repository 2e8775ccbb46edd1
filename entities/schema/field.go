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

// FieldType is the coarse kind of a field. It determines how raw values are
// converted to index terms before analysis.
type FieldType uint8

const (
	// FieldTypeText is analyzed free text.
	FieldTypeText FieldType = iota
	// FieldTypeID is a single, untokenized term (keywords, dates, keys).
	FieldTypeID
	// FieldTypeNumeric is an int64 or float64 indexed with an
	// order-preserving byte encoding so that range scans work.
	FieldTypeNumeric
	// FieldTypeStored is stored-only, it never contributes postings.
	FieldTypeStored
)

func (t FieldType) String() string {
	switch t {
	case FieldTypeText:
		return "text"
	case FieldTypeID:
		return "id"
	case FieldTypeNumeric:
		return "numeric"
	case FieldTypeStored:
		return "stored"
	default:
		return "unknown"
	}
}

// Field declares one named field of a schema. The flag set decides which
// per-posting artifacts a segment records for it.
type Field struct {
	Name       string    `msgpack:"name"`
	Type       FieldType `msgpack:"type"`
	Indexed    bool      `msgpack:"indexed"`
	Stored     bool      `msgpack:"stored"`
	Scorable   bool      `msgpack:"scorable"`
	Positions  bool      `msgpack:"positions"`
	Offsets    bool      `msgpack:"offsets"`
	Boosts     bool      `msgpack:"boosts"`
	Unique     bool      `msgpack:"unique"`
	TermVector bool      `msgpack:"termVector"`
	Boost      float64   `msgpack:"boost"`
}

// FieldOption mutates a field declaration at schema build time.
type FieldOption func(*Field)

func WithPositions() FieldOption {
	return func(f *Field) { f.Positions = true }
}

func WithOffsets() FieldOption {
	return func(f *Field) { f.Offsets = true }
}

func WithBoosts() FieldOption {
	return func(f *Field) { f.Boosts = true }
}

func WithUnique() FieldOption {
	return func(f *Field) { f.Unique = true }
}

func WithTermVector() FieldOption {
	return func(f *Field) { f.TermVector = true }
}

func WithFieldBoost(boost float64) FieldOption {
	return func(f *Field) { f.Boost = boost }
}

func WithStored(stored bool) FieldOption {
	return func(f *Field) { f.Stored = stored }
}

// TextField is an analyzed, stored, scorable field with positions.
func TextField(name string, opts ...FieldOption) Field {
	f := Field{
		Name:      name,
		Type:      FieldTypeText,
		Indexed:   true,
		Stored:    true,
		Scorable:  true,
		Positions: true,
		Boost:     1,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// IDField is a single-term, stored field. Not scorable.
func IDField(name string, opts ...FieldOption) Field {
	f := Field{
		Name:    name,
		Type:    FieldTypeID,
		Indexed: true,
		Stored:  true,
		Boost:   1,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// NumericField indexes numbers with the order-preserving encoding.
func NumericField(name string, opts ...FieldOption) Field {
	f := Field{
		Name:    name,
		Type:    FieldTypeNumeric,
		Indexed: true,
		Stored:  true,
		Boost:   1,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// StoredField is retrievable but never indexed.
func StoredField(name string, opts ...FieldOption) Field {
	f := Field{
		Name:   name,
		Type:   FieldTypeStored,
		Stored: true,
		Boost:  1,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// equalSemantics reports whether two declarations of the same field name can
// coexist across schema extensions.
func (f Field) equalSemantics(other Field) bool {
	return f.Name == other.Name &&
		f.Type == other.Type &&
		f.Indexed == other.Indexed &&
		f.Stored == other.Stored &&
		f.Scorable == other.Scorable &&
		f.Positions == other.Positions &&
		f.Offsets == other.Offsets &&
		f.Boosts == other.Boosts &&
		f.Unique == other.Unique &&
		f.TermVector == other.TermVector
}
