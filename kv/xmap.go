package kv

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// XMap is a lock free map for hot memo tables shared by many workers.
type XMap[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

func NewXMap[K comparable, V any]() *XMap[K, V] {
	return &XMap[K, V]{m: xsync.NewMapOf[K, V]()}
}

var _ KVS[string, any] = (*XMap[string, any])(nil)

// Get implements KVS
func (m *XMap[K, V]) Get(_ context.Context, key K) (V, bool, error) {
	v, ok := m.m.Load(key)
	return v, ok, nil
}

// Set implements KVS
func (m *XMap[K, V]) Set(_ context.Context, key K, value V) error {
	m.m.Store(key, value)
	return nil
}

func (m *XMap[K, V]) Range(_ context.Context, f func(key K, value V) bool) error {
	m.m.Range(f)
	return nil
}

func (m *XMap[K, V]) Len() int {
	return m.m.Size()
}

func (m *XMap[K, V]) Close() error { return nil }
