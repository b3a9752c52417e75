package gazetteer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
	"github.com/royalcat/osmgaz/resultcache"
	"github.com/royalcat/osmgaz/spatial"
)

type fixedPopularity struct {
	mu    sync.Mutex
	texts []string
}

func (f *fixedPopularity) Count(_ context.Context, text string, _ orb.Point, radiusKm float64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if radiusKm != 0.4 {
		return 0, errors.New("expected an urban radius")
	}
	return 7, nil
}

func newCache(t *testing.T) *resultcache.Cache {
	c, err := resultcache.New(kv.NewMutexMap[string, []byte](), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func salienceOf(t *testing.T, e geomodel.Entry) (name, typ float64) {
	t.Helper()
	require.NotNil(t, e.Salience, e.Name)
	require.NotNil(t, e.Salience.Name, e.Name)
	require.NotNil(t, e.Salience.Type, e.Name)
	return *e.Salience.Name, *e.Salience.Type
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	var stages []Stage
	popularity := &fixedPopularity{}

	g := New(town(), testClassifier(),
		WithLogger(testLogger()),
		WithCache(newCache(t)),
		WithPopularity(popularity, 0),
		WithProgress(func(s Stage) { stages = append(stages, s) }),
	)

	res, err := g.Resolve(ctx, orb.Point{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageContainmentSearch, StageProximalSearch, StageSalienceScoring}, stages)

	assert.Equal(t, []string{"Borough A", "Region B", "Country C"}, entryNames(res.Containment))
	assert.Equal(t, []string{"High Street", "Mill Lane", "The Crown", "High Street and Mill Lane"}, entryNames(res.Proximal))

	name, typ := salienceOf(t, res.Containment[0])
	assert.Equal(t, 1.0, name)
	assert.Equal(t, 1.0, typ)
	assert.Nil(t, res.Containment[0].Salience.Popularity)
	assert.Nil(t, res.Containment[2].Salience)

	street := res.Proximal[0]
	assert.Equal(t, primaryRoad, street.TypePath)
	assert.Contains(t, street.Geometry, "LINESTRING")
	name, typ = salienceOf(t, street)
	assert.Equal(t, 0.5, name)
	assert.Equal(t, 0.5, typ)
	require.NotNil(t, street.Salience.Popularity)
	assert.Equal(t, 7.0, *street.Salience.Popularity)

	junction := res.Proximal[3]
	assert.Equal(t, geomodel.TypeJunction, junction.TypePath)
	assert.Contains(t, junction.Geometry, "POINT")
	name, typ = salienceOf(t, junction)
	assert.Equal(t, 0.0, name)
	assert.Equal(t, 0.0, typ)

	assert.Len(t, popularity.texts, 4)

	stages = nil
	again, err := g.Resolve(ctx, orb.Point{0.000001, 0})
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageCacheHit}, stages)
	assert.Equal(t, entryNames(res.Proximal), entryNames(again.Proximal))
	assert.Len(t, popularity.texts, 4)
}

func TestResolveWithoutCache(t *testing.T) {
	ctx := context.Background()
	g := New(town(), testClassifier(), WithLogger(testLogger()))

	res, err := g.Resolve(ctx, orb.Point{0, 0})
	require.NoError(t, err)
	require.NotEmpty(t, res.Proximal)
	// no popularity source means a zero score, never an error
	assert.Equal(t, 0.0, *res.Proximal[0].Salience.Popularity)
}

func TestResolveProgressPanic(t *testing.T) {
	g := New(town(), testClassifier(),
		WithLogger(testLogger()),
		WithProgress(func(Stage) { panic("boom") }),
	)
	res, err := g.Resolve(context.Background(), orb.Point{0, 0})
	require.NoError(t, err)
	assert.Len(t, res.Containment, 3)
}

type failingStore struct {
	spatial.Store
}

func (failingStore) Containing(context.Context, orb.Point) ([]*geomodel.Feature, error) {
	return nil, errors.New("connection refused")
}

type countingCache struct {
	ResultCache
	saves int
}

func (c *countingCache) Save(ctx context.Context, lonlat orb.Point, res *geomodel.Result) error {
	c.saves++
	return c.ResultCache.Save(ctx, lonlat, res)
}

func TestResolveStoreError(t *testing.T) {
	cache := &countingCache{ResultCache: newCache(t)}
	g := New(failingStore{Store: town()}, testClassifier(), WithLogger(testLogger()), WithCache(cache))

	_, err := g.Resolve(context.Background(), orb.Point{0, 0})
	require.Error(t, err)
	assert.Zero(t, cache.saves)

	_, err = cache.Load(context.Background(), orb.Point{0, 0})
	assert.ErrorIs(t, err, resultcache.ErrMiss)
}

func TestResolveSavesOnce(t *testing.T) {
	cache := &countingCache{ResultCache: newCache(t)}
	g := New(town(), testClassifier(), WithLogger(testLogger()), WithCache(cache))

	for range 3 {
		_, err := g.Resolve(context.Background(), orb.Point{0, 0})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, cache.saves)
}
