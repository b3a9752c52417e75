package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis keeps values under prefix+key.
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
	codec  Codec[V]
}

var _ KVS[string, any] = (*Redis[any])(nil)

func NewRedis[V any](client redis.UniversalClient, prefix string, codec Codec[V]) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix, codec: codec}
}

func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	v, err := r.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	data, err := r.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Range walks the prefix with SCAN. Entries that fail to decode are skipped.
func (r *Redis[V]) Range(ctx context.Context, fn func(key string, value V) bool) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		data, err := r.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis get %s: %w", full, err)
		}
		v, err := r.codec.Decode(data)
		if err != nil {
			continue
		}
		if !fn(strings.TrimPrefix(full, r.prefix), v) {
			return nil
		}
	}
	return iter.Err()
}

// Close is a no-op, the client belongs to the caller.
func (r *Redis[V]) Close() error { return nil }
