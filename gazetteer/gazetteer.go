package gazetteer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/filter"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/resultcache"
	"github.com/royalcat/osmgaz/salience"
	"github.com/royalcat/osmgaz/spatial"
)

type Stage string

const (
	StageCacheHit          Stage = "cache-hit"
	StageContainmentSearch Stage = "containment-search"
	StageProximalSearch    Stage = "proximal-search"
	StageSalienceScoring   Stage = "salience-scoring"
)

// ResultCache short-circuits points that were resolved before.
// Load returns resultcache.ErrMiss when there is nothing usable.
type ResultCache interface {
	Load(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error)
	Save(ctx context.Context, lonlat orb.Point, res *geomodel.Result) error
}

var _ ResultCache = (*resultcache.Cache)(nil)

var (
	tracer = otel.Tracer("github.com/royalcat/osmgaz/gazetteer")
	meter  = otel.Meter("github.com/royalcat/osmgaz/gazetteer")

	resolutions, _    = meter.Int64Counter("resolutions", metric.WithDescription("points resolved"))
	resolveSeconds, _ = meter.Float64Histogram("resolve_duration_seconds")
)

// Gazetteer resolves a point into its containment hierarchy and nearby references.
type Gazetteer struct {
	containment       *ContainmentResolver
	proximal          *ProximalResolver
	containmentFilter *filter.Containment
	proximalFilter    *filter.Proximal

	names      *salience.Name
	types      *salience.Type
	popularity *salience.Popularity

	cache    ResultCache
	progress func(Stage)
	log      *slog.Logger
}

func New(store spatial.Store, c *classifier.Classifier, opts ...Option) *Gazetteer {
	o := loadOptions(opts...)
	log := o.logger

	containment := NewContainmentResolver(store, c, log)
	return &Gazetteer{
		containment:       containment,
		proximal:          NewProximalResolver(store, c, log),
		containmentFilter: filter.NewContainment(containment, log),
		proximalFilter:    filter.NewProximal(o.proximalLimits),

		names:      salience.NewName(store, o.memos.Name, log),
		types:      salience.NewType(store, o.memos.Type, log),
		popularity: salience.NewPopularity(o.popularity, o.memos.Popularity, o.popularityTimeout, log),

		cache:    o.cache,
		progress: o.progress,
		log:      log.With("component", "gazetteer"),
	}
}

func (g *Gazetteer) Containment() *ContainmentResolver { return g.containment }

func (g *Gazetteer) ContainmentFilter() *filter.Containment { return g.containmentFilter }

func (g *Gazetteer) NameSalience() *salience.Name { return g.names }

func (g *Gazetteer) TypeSalience() *salience.Type { return g.types }

// report never lets a misbehaving callback affect the pipeline.
func (g *Gazetteer) report(ctx context.Context, s Stage) {
	if g.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			g.log.WarnContext(ctx, "progress callback panicked", "stage", s, "panic", r)
		}
	}()
	g.progress(s)
}

// Resolve takes a WGS84 lon/lat point.
func (g *Gazetteer) Resolve(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error) {
	ctx, span := tracer.Start(ctx, "Resolve")
	defer span.End()
	span.SetAttributes(attribute.Float64("lon", lonlat.Lon()), attribute.Float64("lat", lonlat.Lat()))

	start := time.Now()
	log := g.log.With("lon", lonlat.Lon(), "lat", lonlat.Lat())

	if g.cache != nil {
		res, err := g.cache.Load(ctx, lonlat)
		if err == nil {
			g.report(ctx, StageCacheHit)
			resolutions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", true)))
			return res, nil
		}
		if !errors.Is(err, resultcache.ErrMiss) {
			log.WarnContext(ctx, "result cache unavailable", "error", err)
		}
	}

	res, err := g.resolve(ctx, lonlat)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.Save(ctx, lonlat, res); err != nil {
			log.WarnContext(ctx, "failed to cache result", "error", err)
		}
	}

	resolutions.Add(ctx, 1, metric.WithAttributes(attribute.Bool("cached", false)))
	resolveSeconds.Record(ctx, time.Since(start).Seconds())
	log.DebugContext(ctx, "resolved point",
		"containment", len(res.Containment),
		"proximal", len(res.Proximal),
		"took", time.Since(start),
	)
	return res, nil
}

func (g *Gazetteer) resolve(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error) {
	g.report(ctx, StageContainmentSearch)
	full, err := g.containment.Resolve(ctx, lonlat)
	if err != nil {
		return nil, err
	}
	containment, err := g.containmentFilter.Filter(ctx, full)
	if err != nil {
		return nil, fmt.Errorf("filter containment: %w", err)
	}

	g.report(ctx, StageProximalSearch)
	candidates, err := g.proximal.Resolve(ctx, lonlat)
	if err != nil {
		return nil, err
	}
	ur := UrbanRural(lonlat, candidates)
	proximal := g.proximalFilter.Filter(candidates, project.WGS84.ToMercator(lonlat), containment, ur)
	proximal = AddJunctions(MergeLines(proximal))

	g.report(ctx, StageSalienceScoring)
	res := &geomodel.Result{
		Containment: make([]geomodel.Entry, 0, len(containment)),
		Proximal:    make([]geomodel.Entry, 0, len(proximal)),
	}
	// containment levels are scored against the levels enclosing them
	for i, t := range containment {
		e, err := g.entry(ctx, t, containment[i+1:], false, ur)
		if err != nil {
			return nil, err
		}
		res.Containment = append(res.Containment, e)
	}
	for _, t := range proximal {
		e, err := g.entry(ctx, t, containment, true, ur)
		if err != nil {
			return nil, err
		}
		res.Proximal = append(res.Proximal, e)
	}
	return res, nil
}

func (g *Gazetteer) entry(ctx context.Context, t geomodel.Toponym, containers []geomodel.Toponym, withPopularity bool, ur geomodel.UrbanRural) (geomodel.Entry, error) {
	e := geomodel.NewEntry(t)

	name, err := g.names.Score(ctx, t, containers)
	if err != nil {
		return e, err
	}
	typ, err := g.types.Score(ctx, t.Type, containers)
	if err != nil {
		return e, err
	}
	var popularity *float64
	if withPopularity {
		v := g.popularity.Score(ctx, t, ur)
		popularity = &v
	}

	if name != nil || typ != nil || popularity != nil {
		e.Salience = &geomodel.Salience{Name: name, Type: typ, Popularity: popularity}
	}
	return e, nil
}
