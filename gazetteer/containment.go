package gazetteer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/filter"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/spatial"
)

// ContainmentResolver lists the classified polygons enclosing a point, innermost first.
type ContainmentResolver struct {
	src source
}

var _ filter.NameLookup = (*ContainmentResolver)(nil)

func NewContainmentResolver(store spatial.Store, c *classifier.Classifier, log *slog.Logger) *ContainmentResolver {
	if log == nil {
		log = slog.Default()
	}
	return &ContainmentResolver{src: source{
		store:      store,
		classifier: c,
		log:        log.With("component", "containment-resolver"),
	}}
}

// Resolve takes a WGS84 lon/lat point.
func (r *ContainmentResolver) Resolve(ctx context.Context, lonlat orb.Point) ([]geomodel.Toponym, error) {
	r.src.log.DebugContext(ctx, "retrieving containment toponyms", "lon", lonlat.Lon(), "lat", lonlat.Lat())
	return r.ResolveProjected(ctx, project.WGS84.ToMercator(lonlat))
}

// ResolveProjected takes a point already in EPSG:3857.
func (r *ContainmentResolver) ResolveProjected(ctx context.Context, p orb.Point) ([]geomodel.Toponym, error) {
	features, err := r.src.store.Containing(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("containment query: %w", err)
	}
	toponyms, err := r.src.toponyms(ctx, features)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(toponyms, func(a, b geomodel.Toponym) int {
		return cmp.Compare(a.Feature.Area, b.Feature.Area)
	})
	return toponyms, nil
}

func (r *ContainmentResolver) NamedToponyms(ctx context.Context, name string, g orb.Geometry) ([]geomodel.Toponym, error) {
	features, err := r.src.store.NamedIntersecting(ctx, name, g)
	if err != nil {
		return nil, fmt.Errorf("named polygons %q: %w", name, err)
	}
	return r.src.toponyms(ctx, features)
}
