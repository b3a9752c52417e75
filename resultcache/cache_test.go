package resultcache

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/slogassert"

	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
)

func ptr(v float64) *float64 { return &v }

func sample() *geomodel.Result {
	return &geomodel.Result{
		Containment: []geomodel.Entry{
			{Name: "Borough A", Geometry: "POLYGON((0 0,1 0,1 1,0 1,0 0))", TypePath: geomodel.TypeAdminLevel8,
				Salience: &geomodel.Salience{Name: ptr(1), Type: ptr(0.25)}},
		},
		Proximal: []geomodel.Entry{
			{Name: "High Street", Geometry: "LINESTRING(0 0,1 1)", TypePath: geomodel.TypePath{"ARTIFICIAL FEATURE", "TRANSPORT", "ROAD", "MINOR"},
				Salience: &geomodel.Salience{Name: ptr(0.5), Type: ptr(math.NaN()), Popularity: ptr(41.6)}},
			{Name: "Pub", Geometry: "POINT(0 0)", TypePath: geomodel.TypePath{"ARTIFICIAL FEATURE", "BUILDING"}},
		},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "-2.63629,53.39797", Key(orb.Point{-2.636291, 53.397974}))
	assert.Equal(t, "0.00000,0.00000", Key(orb.Point{}))
}

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	c, err := New(kv.NewMutexMap[string, []byte](), nil)
	require.NoError(t, err)
	defer c.Close()

	p := orb.Point{-2.63629, 53.39797}
	_, err = c.Load(ctx, p)
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Save(ctx, p, sample()))

	got, err := c.Load(ctx, orb.Point{-2.636291, 53.397971})
	require.NoError(t, err)
	require.Len(t, got.Containment, 1)
	require.Len(t, got.Proximal, 2)

	assert.Equal(t, "Borough A", got.Containment[0].Name)
	assert.Equal(t, geomodel.TypeAdminLevel8, got.Containment[0].TypePath)
	assert.InDelta(t, 0.25, *got.Containment[0].Salience.Type, 1e-9)

	s := got.Proximal[0].Salience
	assert.InDelta(t, 0.5, *s.Name, 1e-9)
	assert.Equal(t, 0.0, *s.Type)
	assert.Equal(t, 42.0, *s.Popularity)

	assert.Nil(t, got.Proximal[1].Salience)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	log := slogassert.New(t, slog.LevelWarn, nil)

	store := kv.NewMutexMap[string, []byte]()
	p := orb.Point{1, 2}
	require.NoError(t, store.Set(ctx, Key(p), []byte("not zstd")))

	c, err := New(store, slog.New(log))
	require.NoError(t, err)

	_, err = c.Load(ctx, p)
	require.ErrorIs(t, err, ErrMiss)
	log.AssertMessage("corrupt result cache entry")
}

type brokenKV struct {
	kv.KVS[string, []byte]
}

func (brokenKV) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("dial tcp: connection refused")
}

func TestLoadStoreError(t *testing.T) {
	c, err := New(brokenKV{kv.NewMutexMap[string, []byte]()}, nil)
	require.NoError(t, err)

	_, err = c.Load(context.Background(), orb.Point{1, 2})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
}

func TestRedisBacked(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	c, err := New(kv.NewRedis[[]byte](client, "results:", kv.BytesCodec{}), nil)
	require.NoError(t, err)
	defer c.Close()

	p := orb.Point{-3.17516, 51.5065}
	require.NoError(t, c.Save(ctx, p, sample()))
	assert.True(t, mr.Exists("results:"+Key(p)))

	var keys []string
	require.NoError(t, c.Range(ctx, func(key string, res *geomodel.Result) bool {
		keys = append(keys, key)
		assert.Len(t, res.Proximal, 2)
		return true
	}))
	assert.Equal(t, []string{Key(p)}, keys)
}
