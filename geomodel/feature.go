package geomodel

import (
	"github.com/paulmach/orb"
)

// Kind discriminates the three feature collections of the spatial store.
type Kind uint8

const (
	KindPoint Kind = iota + 1
	KindLine
	KindPolygon
)

// Kinds lists every kind in the order the proximal search queries them.
var Kinds = []Kind{KindPolygon, KindLine, KindPoint}

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	}
	return "unknown"
}

// Feature is a named, tagged OSM object as stored in the spatial store.
// Geometry is always in EPSG:3857 (metres).
type Feature struct {
	ID       int64
	Kind     Kind
	Name     string
	Tags     map[string]string
	Geometry orb.Geometry
	// Area is only meaningful for polygons.
	Area float64

	// Classification is the persisted type path, nil if the feature was never classified.
	Classification TypePath
}

const AdminLevelKey = "admin_level"

func (f *Feature) Tag(key string) string {
	if f == nil || f.Tags == nil {
		return ""
	}
	return f.Tags[key]
}

// Toponym is a feature together with the type path it was classified with.
type Toponym struct {
	Feature *Feature
	Type    TypePath
}

func (t Toponym) Name() string {
	return t.Feature.Name
}

func (t Toponym) Kind() Kind {
	return t.Feature.Kind
}
