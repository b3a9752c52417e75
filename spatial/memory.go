package spatial

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/btree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/tidwall/qtree"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
)

// Memory is an in-process Store. Features are indexed by bounding box and by name.
type Memory struct {
	mu     sync.RWMutex
	layers map[geomodel.Kind]*layer
	names  *btree.BTreeG[nameKey]
}

type layer struct {
	features []*geomodel.Feature
	byID     map[int64]int
	qt       qtree.QTree
}

type nameKey struct {
	name string
	kind geomodel.Kind
	idx  int
}

func lessNameKey(a, b nameKey) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.idx < b.idx
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{
		layers: map[geomodel.Kind]*layer{},
		names:  btree.NewG[nameKey](32, lessNameKey),
	}
	for _, k := range geomodel.Kinds {
		m.layers[k] = &layer{byID: map[int64]int{}}
	}
	return m
}

// Insert adds a feature, replacing the stored copy if the id is already known for its kind.
func (m *Memory) Insert(f *geomodel.Feature) {
	l, ok := m.layers[f.Kind]
	if !ok || f.Geometry == nil {
		return
	}
	stored := *f
	stored.Classification = f.Classification.Clone()
	bound := f.Geometry.Bound()

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := l.byID[f.ID]; ok {
		// the stale bbox entry stays in the tree and is skipped by search
		old := l.features[idx]
		m.names.Delete(nameKey{name: old.Name, kind: old.Kind, idx: idx})
		l.features[idx] = nil
	}

	idx := len(l.features)
	l.features = append(l.features, &stored)
	l.byID[f.ID] = idx
	l.qt.Insert(bound.Min, bound.Max, idx)
	m.names.ReplaceOrInsert(nameKey{name: stored.Name, kind: stored.Kind, idx: idx})
}

func (m *Memory) Len(kind geomodel.Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.layers[kind]; ok {
		return len(l.byID)
	}
	return 0
}

// search calls fn for every feature whose bounding box touches b. Must hold the read lock.
func (m *Memory) search(kind geomodel.Kind, b orb.Bound, fn func(f *geomodel.Feature)) {
	l := m.layers[kind]
	l.qt.Search(b.Min, b.Max, func(_, _ [2]float64, data interface{}) bool {
		if f := l.features[data.(int)]; f != nil {
			fn(f)
		}
		return true
	})
}

func (m *Memory) Containing(ctx context.Context, p orb.Point) ([]*geomodel.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*geomodel.Feature
	m.search(geomodel.KindPolygon, orb.Bound{Min: p, Max: p}, func(f *geomodel.Feature) {
		if f.Name != "" && polygonContains(f.Geometry, p) {
			out = append(out, clone(f))
		}
	})
	sortByID(out)
	return out, nil
}

func (m *Memory) Near(ctx context.Context, kind geomodel.Kind, g orb.Geometry, dist float64) ([]*geomodel.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*geomodel.Feature
	m.search(kind, g.Bound().Pad(dist), func(f *geomodel.Feature) {
		if f.Name != "" && geometry.Within(f.Geometry, g, dist) {
			out = append(out, clone(f))
		}
	})
	sortByID(out)
	return out, nil
}

func (m *Memory) NamedIntersecting(ctx context.Context, name string, g orb.Geometry) ([]*geomodel.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.layers[geomodel.KindPolygon]
	var out []*geomodel.Feature
	pivot := nameKey{name: name, kind: geomodel.KindPolygon, idx: -1}
	m.names.AscendGreaterOrEqual(pivot, func(k nameKey) bool {
		if k.name != name || k.kind != geomodel.KindPolygon {
			return false
		}
		f := l.features[k.idx]
		if geometry.Intersects(f.Geometry, g) {
			out = append(out, clone(f))
		}
		return true
	})
	sortByID(out)
	return out, nil
}

func (m *Memory) Count(ctx context.Context, q CountQuery) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	check := func(f *geomodel.Feature) {
		if q.matches(f) && geometry.Within(f.Geometry, q.Near, q.Distance) {
			count++
		}
	}

	if q.Name != "" {
		pivot := nameKey{name: q.Name, idx: -1}
		m.names.AscendGreaterOrEqual(pivot, func(k nameKey) bool {
			if k.name != q.Name {
				return false
			}
			check(m.layers[k.kind].features[k.idx])
			return true
		})
		return count, nil
	}

	bound := q.Near.Bound().Pad(q.Distance)
	for _, kind := range geomodel.Kinds {
		m.search(kind, bound, check)
	}
	return count, nil
}

func (m *Memory) SetClassification(ctx context.Context, kind geomodel.Kind, id int64, path geomodel.TypePath) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.layers[kind]
	if !ok {
		return ErrNotFound
	}
	idx, ok := l.byID[id]
	if !ok {
		return ErrNotFound
	}
	l.features[idx].Classification = path.Clone()
	return nil
}

func (m *Memory) Scan(ctx context.Context, kind geomodel.Kind, opts ScanOptions, fn func([]*geomodel.Feature) error) error {
	m.mu.RLock()
	l, ok := m.layers[kind]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	ids := make([]int64, 0, len(l.features))
	for _, f := range l.features {
		if f != nil && f.Name != "" {
			ids = append(ids, f.ID)
		}
	}
	m.mu.RUnlock()
	slices.Sort(ids)

	size := opts.batchSize()
	batch := make([]*geomodel.Feature, 0, size)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := fn(batch)
		batch = make([]*geomodel.Feature, 0, size)
		return err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.mu.RLock()
		f := clone(l.features[l.byID[id]])
		m.mu.RUnlock()

		if opts.Unclassified && len(f.Classification) > 0 {
			continue
		}
		batch = append(batch, f)
		if len(batch) == size {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func clone(f *geomodel.Feature) *geomodel.Feature {
	c := *f
	c.Classification = f.Classification.Clone()
	return &c
}

func sortByID(fs []*geomodel.Feature) {
	slices.SortFunc(fs, func(a, b *geomodel.Feature) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func polygonContains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	}
	return false
}
