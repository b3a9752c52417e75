package spatial

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/royalcat/osmgaz/geomodel"
)

var ErrNotFound = errors.New("feature not found")

// Store is the spatial data the gazetteer runs against. Geometries are EPSG:3857.
// Queries never return features with an empty name.
type Store interface {
	// Containing returns the polygons containing p.
	Containing(ctx context.Context, p orb.Point) ([]*geomodel.Feature, error)
	// Near returns features of the given kind within dist of g, ordered by id.
	Near(ctx context.Context, kind geomodel.Kind, g orb.Geometry, dist float64) ([]*geomodel.Feature, error)
	// NamedIntersecting returns the polygons called name that intersect g.
	NamedIntersecting(ctx context.Context, name string, g orb.Geometry) ([]*geomodel.Feature, error)
	// Count counts features of every kind matching q.
	Count(ctx context.Context, q CountQuery) (int, error)
	SetClassification(ctx context.Context, kind geomodel.Kind, id int64, path geomodel.TypePath) error
	// Scan feeds named features of kind to fn in id order, in batches.
	Scan(ctx context.Context, kind geomodel.Kind, opts ScanOptions, fn func([]*geomodel.Feature) error) error
}

// CountQuery selects features within Distance of Near.
type CountQuery struct {
	Near     orb.Geometry
	Distance float64

	// Name restricts the count to features with this exact name, if set.
	Name string
	// Type restricts the count to features classified under this path, if set.
	Type geomodel.TypePath
	// ExcludeType drops features classified under this path and unclassified ones, if set.
	ExcludeType geomodel.TypePath
}

func (q CountQuery) matches(f *geomodel.Feature) bool {
	if q.Name != "" && f.Name != q.Name {
		return false
	}
	if len(q.Type) > 0 && (len(f.Classification) == 0 || !f.Classification.HasPrefix(q.Type...)) {
		return false
	}
	if len(q.ExcludeType) > 0 && (len(f.Classification) == 0 || f.Classification.HasPrefix(q.ExcludeType...)) {
		return false
	}
	return true
}

type ScanOptions struct {
	// Unclassified skips features that already carry a classification.
	Unclassified bool
	BatchSize    int
}

const defaultBatchSize = 1000

func (o ScanOptions) batchSize() int {
	if o.BatchSize <= 0 {
		return defaultBatchSize
	}
	return o.BatchSize
}
