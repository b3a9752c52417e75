package kv

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKVS(t *testing.T, s KVS[string, float64]) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", 0.5))
	require.NoError(t, s.Set(ctx, "b", 1))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	seen := map[string]float64{}
	err = s.Range(ctx, func(k string, v float64) bool {
		seen[k] = v
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0.5, "b": 1}, seen)

	calls := 0
	err = s.Range(ctx, func(string, float64) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, s.Close())
}

func TestMutexMap(t *testing.T) {
	testKVS(t, NewMutexMap[string, float64]())
}

func TestXMap(t *testing.T) {
	testKVS(t, NewXMap[string, float64]())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	testKVS(t, NewRedis[float64](client, "salience:", Float64Codec{}))

	// entries live under the prefix
	assert.True(t, mr.Exists("salience:a"))
	got, err := mr.Get("salience:a")
	require.NoError(t, err)
	assert.Equal(t, "0.5", got)
}

func TestRedisCorruptValue(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set("p:bad", "not a number"))
	s := NewRedis[float64](client, "p:", Float64Codec{})

	_, _, err := s.Get(ctx, "bad")
	assert.Error(t, err)
}

func TestXMapConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewXMap[int, int]()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, i*100+j, j)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1600, m.Len())
}

func TestJSONCodec(t *testing.T) {
	type entry struct {
		Name string `json:"name"`
	}
	c := JSONCodec[entry]{}
	data, err := c.Encode(entry{Name: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x"}`, string(data))

	_, err = c.Decode([]byte("{"))
	assert.Error(t, err)
}
