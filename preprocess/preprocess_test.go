package preprocess

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/gazetteer"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
	"github.com/royalcat/osmgaz/spatial"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func admin(level string) geomodel.TypePath {
	return append(geomodel.TypeAdministrative.Clone(), level)
}

func testClassifier() *classifier.Classifier {
	rules := classifier.NewRuleSet([]classifier.Rule{
		{Match: map[string]string{"boundary": "administrative", "admin_level": "2"}, Type: admin("2")},
		{Match: map[string]string{"boundary": "administrative", "admin_level": "4"}, Type: admin("4")},
		{Match: map[string]string{"boundary": "administrative", "admin_level": "8"}, Type: admin("8")},
		{Match: map[string]string{"building": "yes"}, Type: geomodel.TypeBuilding},
	})
	return classifier.New(rules, classifier.WithLogger(testLogger()))
}

func square(half float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{-half, -half}, {half, -half}, {half, half}, {-half, half}, {-half, -half}}}
}

func fixture() *spatial.Memory {
	m := spatial.NewMemory()
	for _, a := range []struct {
		id    int64
		name  string
		level string
		half  float64
		area  float64
	}{
		{1, "Borough A", "8", 1000, 2e6},
		{2, "Region B", "4", 20000, 5e8},
		{3, "Country C", "2", 1e6, 2e11},
	} {
		m.Insert(&geomodel.Feature{
			ID: a.id, Kind: geomodel.KindPolygon, Name: a.name, Area: a.area, Geometry: square(a.half),
			Tags: map[string]string{"boundary": "administrative", "admin_level": a.level},
		})
	}
	m.Insert(&geomodel.Feature{ID: 10, Kind: geomodel.KindPoint, Name: "The Crown",
		Tags: map[string]string{"building": "yes"}, Geometry: orb.Point{50, 50}})
	m.Insert(&geomodel.Feature{ID: 11, Kind: geomodel.KindPoint, Name: "Mystery",
		Tags: map[string]string{"foo": "bar"}, Geometry: orb.Point{60, 60}})
	return m
}

func newPreprocessor(m *spatial.Memory, memos gazetteer.Memos) *Preprocessor {
	c := testClassifier()
	gaz := gazetteer.New(m, c, gazetteer.WithLogger(testLogger()), gazetteer.WithMemos(memos))
	return New(m, c, gaz, WithLogger(testLogger()), WithThreads(4), WithProgressBars(false))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	p := newPreprocessor(m, gazetteer.Memos{})

	stats, err := p.Classify(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, ClassifyStats{Scanned: 5, Classified: 4, Skipped: 1}, stats)

	fs, err := m.Containing(ctx, orb.Point{0, 0})
	require.NoError(t, err)
	require.Len(t, fs, 3)
	assert.Equal(t, admin("8"), fs[0].Classification)

	stats, err = p.Classify(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, ClassifyStats{Scanned: 1, Skipped: 1}, stats)

	stats, err = p.Classify(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, ClassifyStats{Scanned: 5, Unchanged: 4, Skipped: 1}, stats)

	var buf bytes.Buffer
	n, err := p.WriteUnknown(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, `{"tags":{"foo":"bar"}}`+"\n", buf.String())

	// drained
	buf.Reset()
	n, err = p.WriteUnknown(&buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, buf.String())
}

func TestWriteUnknownWarnRule(t *testing.T) {
	ctx := context.Background()
	m := spatial.NewMemory()
	m.Insert(&geomodel.Feature{ID: 1, Kind: geomodel.KindPoint, Name: "Bench",
		Tags: map[string]string{"amenity": "bench", "backrest": "yes"}, Geometry: orb.Point{1, 1}})

	c := classifier.New(classifier.NewRuleSet([]classifier.Rule{
		{Match: map[string]string{"amenity": "bench"}, Type: geomodel.TypePath{"ARTIFICIAL FEATURE", "BENCH"}, Warn: true},
	}), classifier.WithLogger(testLogger()))
	gaz := gazetteer.New(m, c, gazetteer.WithLogger(testLogger()))
	p := New(m, c, gaz, WithLogger(testLogger()), WithThreads(1), WithProgressBars(false))

	stats, err := p.Classify(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Classified)

	var buf bytes.Buffer
	n, err := p.WriteUnknown(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.JSONEq(t, `{"tags":{"backrest":"yes"},"matched":{"amenity":"bench"}}`, buf.String())
}

func TestSalience(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	memos := gazetteer.Memos{
		Name: kv.NewXMap[string, float64](),
		Type: kv.NewXMap[string, float64](),
	}
	p := newPreprocessor(m, memos)

	_, err := p.Classify(ctx, false)
	require.NoError(t, err)

	scored, err := p.Salience(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), scored)

	v, ok, err := memos.Name.Get(ctx, "point:10:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	v, ok, err = memos.Type.Get(ctx, geomodel.TypeBuilding.String()+":1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestContainers(t *testing.T) {
	ctx := context.Background()
	m := fixture()
	p := newPreprocessor(m, gazetteer.Memos{})

	crown := &geomodel.Feature{ID: 10, Kind: geomodel.KindPoint, Name: "The Crown", Geometry: orb.Point{50, 50}}
	list, err := p.Containers(ctx, crown)
	require.NoError(t, err)
	assert.Equal(t, []string{"Borough A", "Region B"}, names(list))

	borough := &geomodel.Feature{ID: 1, Kind: geomodel.KindPolygon, Name: "Borough A", Geometry: square(1000)}
	list, err = p.Containers(ctx, borough)
	require.NoError(t, err)
	assert.Equal(t, []string{"Region B"}, names(list))
}

func names(list []geomodel.Toponym) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Name())
	}
	return out
}

func TestSamplePoints(t *testing.T) {
	area := orb.MultiPolygon{{{{-0.01, -0.01}, {0.01, -0.01}, {0.01, 0.01}, {-0.01, 0.01}, {-0.01, -0.01}}}}

	points := SamplePoints(area, 200, 1)
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.True(t, planar.MultiPolygonContains(area, p), "%v outside area", p)
	}
	assert.Equal(t, points, SamplePoints(area, 200, 1))
}

type resolverFunc func(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error)

func (f resolverFunc) Resolve(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error) {
	return f(ctx, lonlat)
}

func TestWarmup(t *testing.T) {
	ctx := context.Background()
	points := []orb.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}

	var calls atomic.Int32
	ok := resolverFunc(func(context.Context, orb.Point) (*geomodel.Result, error) {
		calls.Add(1)
		return &geomodel.Result{}, nil
	})
	stats, err := Warmup(ctx, ok, points, 2, false, testLogger())
	require.NoError(t, err)
	assert.Equal(t, WarmupStats{Points: 4, Resolved: 4}, stats)
	assert.Equal(t, int32(4), calls.Load())

	failing := resolverFunc(func(_ context.Context, p orb.Point) (*geomodel.Result, error) {
		if p.Lon() == 2 {
			return nil, errors.New("store unavailable")
		}
		return &geomodel.Result{}, nil
	})
	stats, err = Warmup(ctx, failing, points, 1, true, testLogger())
	require.NoError(t, err)
	assert.Equal(t, WarmupStats{Points: 4, Resolved: 3, Failed: 1}, stats)

	_, err = Warmup(ctx, failing, points, 1, false, testLogger())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "store unavailable"))
}
