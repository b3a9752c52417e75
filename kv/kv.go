package kv

import (
	"context"
	"io"
)

// KVS is a key value store. Remote implementations report failures as errors,
// in-process ones never fail.
type KVS[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool, error)
	Set(ctx context.Context, key K, value V) error
	Range(ctx context.Context, fn func(key K, value V) bool) error

	io.Closer
}
