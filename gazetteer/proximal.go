package gazetteer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/spatial"
)

// Search radii in metres, tried in order until enough candidates turn up.
var ProximalRadii = []float64{400, 1000, 2000, 3000}

const (
	// A search returning more candidates than this is good enough.
	enoughCandidates = 10
	urbanRadius      = 400
)

type ProximalResolver struct {
	src   source
	radii []float64
}

func NewProximalResolver(store spatial.Store, c *classifier.Classifier, log *slog.Logger) *ProximalResolver {
	if log == nil {
		log = slog.Default()
	}
	return &ProximalResolver{
		src: source{
			store:      store,
			classifier: c,
			log:        log.With("component", "proximal-resolver"),
		},
		radii: ProximalRadii,
	}
}

// Resolve takes a WGS84 lon/lat point. A building within the first radius
// or more than ten candidates at any radius end the search, otherwise the
// widest search is returned.
func (r *ProximalResolver) Resolve(ctx context.Context, lonlat orb.Point) ([]geomodel.Toponym, error) {
	p := project.WGS84.ToMercator(lonlat)
	r.src.log.DebugContext(ctx, "retrieving proximal toponyms", "lon", lonlat.Lon(), "lat", lonlat.Lat())

	var toponyms []geomodel.Toponym
	for i, dist := range r.radii {
		var err error
		toponyms, err = r.within(ctx, p, dist)
		if err != nil {
			return nil, err
		}
		if i == 0 && hasBuilding(toponyms) {
			return toponyms, nil
		}
		if len(toponyms) > enoughCandidates {
			return toponyms, nil
		}
	}
	return toponyms, nil
}

func (r *ProximalResolver) within(ctx context.Context, p orb.Point, dist float64) ([]geomodel.Toponym, error) {
	r.src.log.DebugContext(ctx, "querying within", "distance", dist)
	var out []geomodel.Toponym
	for _, kind := range geomodel.Kinds {
		features, err := r.src.store.Near(ctx, kind, p, dist)
		if err != nil {
			return nil, fmt.Errorf("%s within %.0fm: %w", kind, dist, err)
		}
		toponyms, err := r.src.toponyms(ctx, features)
		if err != nil {
			return nil, err
		}
		out = append(out, toponyms...)
	}
	return out, nil
}

func hasBuilding(toponyms []geomodel.Toponym) bool {
	for _, t := range toponyms {
		if t.Type.HasPrefix(geomodel.TypeBuilding...) {
			return true
		}
	}
	return false
}

// UrbanRural is URBAN when a building candidate lies within 400m of the WGS84 point.
func UrbanRural(lonlat orb.Point, candidates []geomodel.Toponym) geomodel.UrbanRural {
	p := project.WGS84.ToMercator(lonlat)
	for _, t := range candidates {
		if t.Type.HasPrefix(geomodel.TypeBuilding...) && geometry.Within(t.Feature.Geometry, p, urbanRadius) {
			return geomodel.Urban
		}
	}
	return geomodel.Rural
}
