package salience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"go.opentelemetry.io/otel/metric"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
)

// PopularitySource counts how often text is mentioned around a WGS84 point.
type PopularitySource interface {
	Count(ctx context.Context, text string, lonlat orb.Point, radiusKm float64) (int, error)
}

// Search radius in km per urban/rural class.
var PopularityRadius = map[geomodel.UrbanRural]float64{
	geomodel.Urban: 0.4,
	geomodel.Rural: 3,
}

var popularityFailures, _ = meter.Int64Counter("popularity_failures",
	metric.WithDescription("popularity lookups that fell back to zero"))

const DefaultPopularityTimeout = 5 * time.Second

type Popularity struct {
	source  PopularitySource
	memo    kv.KVS[string, float64]
	timeout time.Duration
	log     *slog.Logger
}

func NewPopularity(source PopularitySource, memo kv.KVS[string, float64], timeout time.Duration, log *slog.Logger) *Popularity {
	if memo == nil {
		memo = kv.NewXMap[string, float64]()
	}
	if timeout <= 0 {
		timeout = DefaultPopularityTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Popularity{source: source, memo: memo, timeout: timeout, log: log.With("component", "popularity-salience")}
}

// PopularityKey is scoped by kind since store ids are only unique per kind.
func PopularityKey(t geomodel.Toponym) string {
	return fmt.Sprintf("%s:%d", t.Kind(), t.Feature.ID)
}

// Score never fails, any error counts as zero and is not remembered.
func (p *Popularity) Score(ctx context.Context, t geomodel.Toponym, ur geomodel.UrbanRural) float64 {
	if p.source == nil || t.Feature.Geometry == nil {
		return 0
	}

	key := PopularityKey(t)
	if v, ok := memoGet(ctx, p.log, p.memo, key); ok {
		return v
	}

	radius, ok := PopularityRadius[ur]
	if !ok {
		radius = PopularityRadius[geomodel.Rural]
	}
	lonlat := project.Mercator.ToWGS84(geometry.Centroid(t.Feature.Geometry))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	count, err := p.source.Count(ctx, t.Name(), lonlat, radius)
	if err != nil {
		popularityFailures.Add(ctx, 1)
		p.log.WarnContext(ctx, "popularity lookup failed", "name", t.Name(), "error", err)
		return 0
	}

	v := float64(count)
	memoSet(ctx, p.log, p.memo, key, v)
	return v
}
