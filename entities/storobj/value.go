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

// Package storobj models stored document payloads. Values are a small tagged
// union so that stored fields round-trip with their exact type, independent
// of the msgpack wire representation.
package storobj

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeBytes
	TypeString
	TypeList
	TypeMap
)

// Value is one stored field value. Exactly one member (per Type) is set.
type Value struct {
	Type   ValueType
	Bool   bool
	Int    int64
	Float  float64
	Bytes  []byte
	Str    string
	List   []Value
	Map    map[string]Value
}

func Null() Value            { return Value{Type: TypeNull} }
func Bool(b bool) Value      { return Value{Type: TypeBool, Bool: b} }
func Int(i int64) Value      { return Value{Type: TypeInt, Int: i} }
func Float(f float64) Value  { return Value{Type: TypeFloat, Float: f} }
func Bytes(b []byte) Value   { return Value{Type: TypeBytes, Bytes: b} }
func String(s string) Value  { return Value{Type: TypeString, Str: s} }
func List(vs ...Value) Value { return Value{Type: TypeList, List: vs} }

func Map(m map[string]Value) Value {
	return Value{Type: TypeMap, Map: m}
}

// FromNative converts a plain Go value into a Value. Supported inputs are
// nil, bool, all int/uint widths, float32/64, []byte, string, []any and
// map[string]any, recursively.
func FromNative(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return Int(int64(t)), nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case []byte:
		return Bytes(t), nil
	case string:
		return String(t), nil
	case []any:
		out := make([]Value, len(t))
		for i, el := range t {
			conv, err := FromNative(el)
			if err != nil {
				return Value{}, err
			}
			out[i] = conv
		}
		return Value{Type: TypeList, List: out}, nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, el := range t {
			conv, err := FromNative(el)
			if err != nil {
				return Value{}, err
			}
			out[k] = conv
		}
		return Value{Type: TypeMap, Map: out}, nil
	default:
		return Value{}, errors.Wrapf(fterrors.IndexingError,
			"unsupported stored value type %T", v)
	}
}

// Native converts back to a plain Go value, the inverse of FromNative.
func (v Value) Native() any {
	switch v.Type {
	case TypeNull:
		return nil
	case TypeBool:
		return v.Bool
	case TypeInt:
		return v.Int
	case TypeFloat:
		return v.Float
	case TypeBytes:
		return v.Bytes
	case TypeString:
		return v.Str
	case TypeList:
		out := make([]any, len(v.List))
		for i, el := range v.List {
			out[i] = el.Native()
		}
		return out
	case TypeMap:
		out := make(map[string]any, len(v.Map))
		for k, el := range v.Map {
			out[k] = el.Native()
		}
		return out
	default:
		return nil
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%v", v.Native())
}

// Equal compares two values structurally.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case TypeNull:
		return true
	case TypeBool:
		return v.Bool == other.Bool
	case TypeInt:
		return v.Int == other.Int
	case TypeFloat:
		return v.Float == other.Float
	case TypeBytes:
		return string(v.Bytes) == string(other.Bytes)
	case TypeString:
		return v.Str == other.Str
	case TypeList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, el := range v.Map {
			o, ok := other.Map[k]
			if !ok || !el.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}
