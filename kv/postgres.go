package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps values in the kv_cache table, one bucket per store.
type Postgres[V any] struct {
	pool   *pgxpool.Pool
	bucket string
	codec  Codec[V]
}

var _ KVS[string, any] = (*Postgres[any])(nil)

func NewPostgres[V any](pool *pgxpool.Pool, bucket string, codec Codec[V]) *Postgres[V] {
	return &Postgres[V]{pool: pool, bucket: bucket, codec: codec}
}

func (p *Postgres[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	var data []byte
	err := p.pool.QueryRow(ctx, "SELECT value FROM kv_cache WHERE bucket = $1 AND key = $2", p.bucket, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("select %s/%s: %w", p.bucket, key, err)
	}
	v, err := p.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", p.bucket, key, err)
	}
	return v, true, nil
}

// Set keeps the first value written for a key.
func (p *Postgres[V]) Set(ctx context.Context, key string, value V) error {
	data, err := p.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", p.bucket, key, err)
	}
	_, err = p.pool.Exec(ctx,
		"INSERT INTO kv_cache (bucket, key, value) VALUES ($1, $2, $3) ON CONFLICT (bucket, key) DO NOTHING",
		p.bucket, key, data)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", p.bucket, key, err)
	}
	return nil
}

func (p *Postgres[V]) Range(ctx context.Context, fn func(key string, value V) bool) error {
	rows, err := p.pool.Query(ctx, "SELECT key, value FROM kv_cache WHERE bucket = $1 ORDER BY key", p.bucket)
	if err != nil {
		return fmt.Errorf("select %s: %w", p.bucket, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key  string
			data []byte
		)
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("scan %s: %w", p.bucket, err)
		}
		v, err := p.codec.Decode(data)
		if err != nil {
			continue
		}
		if !fn(key, v) {
			return nil
		}
	}
	return rows.Err()
}

// Close is a no-op, the pool belongs to the caller.
func (p *Postgres[V]) Close() error { return nil }
