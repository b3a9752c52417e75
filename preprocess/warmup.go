package preprocess

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"

	"github.com/fogleman/poissondisc"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"golang.org/x/sync/errgroup"

	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/internal/progress"
)

type Resolver interface {
	Resolve(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error)
}

// SamplePoints spreads points at least distance metres apart over a WGS84
// area and returns the ones inside it, as lon/lat.
func SamplePoints(area orb.MultiPolygon, distance float64, seed int64) []orb.Point {
	merc := project.MultiPolygon(area.Clone(), project.WGS84.ToMercator)
	bound := merc.Bound()

	rnd := rand.New(rand.NewSource(seed))
	samples := poissondisc.Sample(bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y(), distance, 10, rnd)

	inside := make([]orb.Point, 0, len(samples))
	for _, s := range samples {
		p := orb.Point{s.X, s.Y}
		if planar.MultiPolygonContains(merc, p) {
			inside = append(inside, project.Mercator.ToWGS84(p))
		}
	}
	return inside
}

type WarmupStats struct {
	Points   int64
	Resolved int64
	Failed   int64
}

// Warmup resolves sample points over area so later lookups hit the result
// cache. With skipErrors unset the first failing point aborts the run.
func Warmup(ctx context.Context, r Resolver, points []orb.Point, threads int, skipErrors bool, log *slog.Logger) (WarmupStats, error) {
	if log == nil {
		log = slog.Default()
	}
	if threads <= 0 {
		threads = 1
	}
	log = log.With("component", "warmup")

	var resolved, failed atomic.Int64
	bar := progress.Start(int64(len(points)), "warming result cache", false)
	defer bar.Finish()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)
	for _, p := range points {
		g.Go(func() error {
			defer bar.Increment()
			if _, err := r.Resolve(ctx, p); err != nil {
				failed.Add(1)
				if skipErrors {
					log.WarnContext(ctx, "failed to resolve point", "lon", p.Lon(), "lat", p.Lat(), "error", err)
					return nil
				}
				return fmt.Errorf("resolve %.5f,%.5f: %w", p.Lon(), p.Lat(), err)
			}
			resolved.Add(1)
			return nil
		})
	}
	err := g.Wait()

	stats := WarmupStats{Points: int64(len(points)), Resolved: resolved.Load(), Failed: failed.Load()}
	log.InfoContext(ctx, "warmup done", "points", stats.Points, "resolved", stats.Resolved, "failed", stats.Failed)
	return stats, err
}
