package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/gazetteer"
	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/internal/progress"
	"github.com/royalcat/osmgaz/spatial"
)

// Preprocessor prepares a store for fast resolution: every named feature gets a
// persisted classification and its name and type salience memoized.
type Preprocessor struct {
	store      spatial.Store
	classifier *classifier.Classifier
	gaz        *gazetteer.Gazetteer

	threads  int
	progress bool
	log      *slog.Logger
}

func New(store spatial.Store, c *classifier.Classifier, gaz *gazetteer.Gazetteer, opts ...Option) *Preprocessor {
	o := loadOptions(opts...)
	return &Preprocessor{
		store:      store,
		classifier: c,
		gaz:        gaz,
		threads:    o.threads,
		progress:   o.progress,
		log:        o.logger.With("component", "preprocess"),
	}
}

type ClassifyStats struct {
	Scanned    int64
	Classified int64
	Unchanged  int64
	Skipped    int64
}

func (p *Preprocessor) bar(prefix string) *pb.ProgressBar {
	if !p.progress {
		return nil
	}
	return progress.Start(0, prefix, false)
}

func increment(bar *pb.ProgressBar, n int) {
	if bar != nil {
		bar.Add(n)
	}
}

func finish(bar *pb.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}

// Classify runs the classifier over every named feature, or only the ones
// without a persisted classification unless full is set. Only changed
// classifications are written.
func (p *Preprocessor) Classify(ctx context.Context, full bool) (ClassifyStats, error) {
	var scanned, classified, unchanged, skipped atomic.Int64

	for _, kind := range geomodel.Kinds {
		log := p.log.With("kind", kind.String())
		log.InfoContext(ctx, "classifying features", "full", full)
		bar := p.bar("classifying " + kind.String())

		err := p.store.Scan(ctx, kind, spatial.ScanOptions{Unclassified: !full}, func(batch []*geomodel.Feature) error {
			wp := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(p.threads)
			for _, f := range batch {
				wp.Go(func(ctx context.Context) error {
					scanned.Add(1)
					path, outcome := p.classifier.Classify(f)
					if outcome != classifier.Matched {
						skipped.Add(1)
						return nil
					}
					if path.Equal(f.Classification) {
						unchanged.Add(1)
						return nil
					}
					if err := p.store.SetClassification(ctx, kind, f.ID, path); err != nil {
						return fmt.Errorf("classify %s %d: %w", kind, f.ID, err)
					}
					classified.Add(1)
					return nil
				})
			}
			err := wp.Wait()
			increment(bar, len(batch))
			log.DebugContext(ctx, "classified batch", "size", len(batch), "total", scanned.Load())
			return err
		})
		finish(bar)
		if err != nil {
			return ClassifyStats{}, err
		}
	}

	stats := ClassifyStats{
		Scanned:    scanned.Load(),
		Classified: classified.Load(),
		Unchanged:  unchanged.Load(),
		Skipped:    skipped.Load(),
	}
	p.log.InfoContext(ctx, "classification done",
		"scanned", stats.Scanned,
		"classified", stats.Classified,
		"unchanged", stats.Unchanged,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// WriteUnknown drains the classifier's unknown log into w, one JSON object per line
// holding the residual tags and, for warn rules, the matched predicate.
func (p *Preprocessor) WriteUnknown(w io.Writer) (int, error) {
	entries := p.classifier.DrainUnknown()
	enc := json.NewEncoder(w)
	for i, e := range entries {
		if err := enc.Encode(e); err != nil {
			return i, fmt.Errorf("write unknown tags: %w", err)
		}
	}
	return len(entries), nil
}

// Salience memoizes name and type salience for every classified feature,
// scored against the containment hierarchy around its centroid.
func (p *Preprocessor) Salience(ctx context.Context) (int64, error) {
	var scored atomic.Int64

	for _, kind := range geomodel.Kinds {
		log := p.log.With("kind", kind.String())
		log.InfoContext(ctx, "calculating salience")
		bar := p.bar("salience " + kind.String())

		err := p.store.Scan(ctx, kind, spatial.ScanOptions{}, func(batch []*geomodel.Feature) error {
			wp := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(p.threads)
			for _, f := range batch {
				if len(f.Classification) == 0 {
					continue
				}
				wp.Go(func(ctx context.Context) error {
					ok, err := p.salience(ctx, f)
					if ok {
						scored.Add(1)
					}
					return err
				})
			}
			err := wp.Wait()
			increment(bar, len(batch))
			return err
		})
		finish(bar)
		if err != nil {
			return scored.Load(), err
		}
	}

	p.log.InfoContext(ctx, "salience done", "scored", scored.Load())
	return scored.Load(), nil
}

func (p *Preprocessor) salience(ctx context.Context, f *geomodel.Feature) (bool, error) {
	containment, err := p.Containers(ctx, f)
	if err != nil {
		return false, err
	}
	if len(containment) == 0 {
		return false, nil
	}

	t := geomodel.Toponym{Feature: f, Type: f.Classification}
	if _, err := p.gaz.NameSalience().Score(ctx, t, containment); err != nil {
		return false, err
	}
	if _, err := p.gaz.TypeSalience().Score(ctx, t.Type, containment); err != nil {
		return false, err
	}
	return true, nil
}

// Containers is the filtered hierarchy around the feature's centroid, without
// the feature itself, same-named areas and the outermost level.
func (p *Preprocessor) Containers(ctx context.Context, f *geomodel.Feature) ([]geomodel.Toponym, error) {
	full, err := p.gaz.Containment().ResolveProjected(ctx, geometry.Centroid(f.Geometry))
	if err != nil {
		return nil, err
	}

	containment := make([]geomodel.Toponym, 0, len(full))
	for _, t := range full {
		if t.Name() != f.Name {
			containment = append(containment, t)
		}
	}
	if len(containment) > 0 {
		containment = containment[:len(containment)-1]
	}
	return p.gaz.ContainmentFilter().Filter(ctx, containment)
}
