package kv

import (
	"encoding/json"
	"strconv"
)

// Codec converts values to and from the bytes a remote store keeps.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec[V]) Decode(data []byte) (V, error) {
	var v V
	err := json.Unmarshal(data, &v)
	return v, err
}

// Float64Codec stores floats as their shortest decimal text.
type Float64Codec struct{}

func (Float64Codec) Encode(v float64) ([]byte, error) {
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (Float64Codec) Decode(data []byte) (float64, error) {
	return strconv.ParseFloat(string(data), 64)
}

type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) ([]byte, error) {
	return v, nil
}

func (BytesCodec) Decode(data []byte) ([]byte, error) {
	return data, nil
}
