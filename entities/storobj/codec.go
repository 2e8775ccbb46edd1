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

package storobj

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sygil-Dev/whoosh-reloaded/entities/fterrors"
)

var (
	_ msgpack.CustomEncoder = (*Value)(nil)
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes the value as a two-element array [type, payload] so
// that the tag survives the trip even where msgpack's native types collapse
// (e.g. small ints).
func (v *Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(v.Type)); err != nil {
		return err
	}
	switch v.Type {
	case TypeNull:
		return enc.EncodeNil()
	case TypeBool:
		return enc.EncodeBool(v.Bool)
	case TypeInt:
		return enc.EncodeInt(v.Int)
	case TypeFloat:
		return enc.EncodeFloat64(v.Float)
	case TypeBytes:
		return enc.EncodeBytes(v.Bytes)
	case TypeString:
		return enc.EncodeString(v.Str)
	case TypeList:
		if err := enc.EncodeArrayLen(len(v.List)); err != nil {
			return err
		}
		for i := range v.List {
			if err := v.List[i].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case TypeMap:
		if err := enc.EncodeMapLen(len(v.Map)); err != nil {
			return err
		}
		for k := range v.Map {
			if err := enc.EncodeString(k); err != nil {
				return err
			}
			el := v.Map[k]
			if err := el.EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Wrapf(fterrors.IndexingError, "unknown value type %d", v.Type)
	}
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return errors.Wrapf(fterrors.Corrupt, "stored value: array len %d", n)
	}
	t, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	v.Type = ValueType(t)
	switch v.Type {
	case TypeNull:
		return dec.DecodeNil()
	case TypeBool:
		v.Bool, err = dec.DecodeBool()
		return err
	case TypeInt:
		v.Int, err = dec.DecodeInt64()
		return err
	case TypeFloat:
		v.Float, err = dec.DecodeFloat64()
		return err
	case TypeBytes:
		v.Bytes, err = dec.DecodeBytes()
		return err
	case TypeString:
		v.Str, err = dec.DecodeString()
		return err
	case TypeList:
		l, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		v.List = make([]Value, l)
		for i := 0; i < l; i++ {
			if err := v.List[i].DecodeMsgpack(dec); err != nil {
				return err
			}
		}
		return nil
	case TypeMap:
		l, err := dec.DecodeMapLen()
		if err != nil {
			return err
		}
		v.Map = make(map[string]Value, l)
		for i := 0; i < l; i++ {
			k, err := dec.DecodeString()
			if err != nil {
				return err
			}
			var el Value
			if err := el.DecodeMsgpack(dec); err != nil {
				return err
			}
			v.Map[k] = el
		}
		return nil
	default:
		return errors.Wrapf(fterrors.Corrupt, "stored value: unknown type %d", t)
	}
}

// MarshalFields serializes one document's stored fields.
func MarshalFields(fields map[string]Value) ([]byte, error) {
	v := Map(fields)
	return msgpack.Marshal(&v)
}

// UnmarshalFields is the inverse of MarshalFields.
func UnmarshalFields(data []byte) (map[string]Value, error) {
	var v Value
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, errors.Wrap(fterrors.Corrupt, err.Error())
	}
	if v.Type != TypeMap {
		return nil, errors.Wrap(fterrors.Corrupt, "stored record is not a map")
	}
	return v.Map, nil
}
