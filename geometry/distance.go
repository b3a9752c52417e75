package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Distance is the planar distance between two geometries, zero when they touch or overlap.
func Distance(a, b orb.Geometry) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	if Intersects(a, b) {
		return 0
	}

	d := math.Inf(1)
	for _, p := range vertices(a) {
		d = math.Min(d, planar.DistanceFrom(b, p))
	}
	for _, p := range vertices(b) {
		d = math.Min(d, planar.DistanceFrom(a, p))
	}
	return d
}

// Within reports whether a and b are at most dist apart.
func Within(a, b orb.Geometry, dist float64) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Pad(dist).Intersects(b.Bound()) {
		return false
	}
	return Distance(a, b) <= dist
}

// Centroid returns the planar centroid, falling back to the bound center for degenerate input.
func Centroid(g orb.Geometry) orb.Point {
	c, _ := planar.CentroidArea(g)
	if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return g.Bound().Center()
	}
	return c
}

func vertices(g orb.Geometry) []orb.Point {
	var out []orb.Point
	switch g := g.(type) {
	case orb.Point:
		out = append(out, g)
	case orb.MultiPoint:
		out = append(out, g...)
	case orb.LineString:
		out = append(out, g...)
	case orb.MultiLineString:
		for _, l := range g {
			out = append(out, l...)
		}
	case orb.Ring:
		out = append(out, g...)
	case orb.Polygon:
		for _, r := range g {
			out = append(out, r...)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				out = append(out, r...)
			}
		}
	case orb.Collection:
		for _, c := range g {
			out = append(out, vertices(c)...)
		}
	case orb.Bound:
		out = append(out, g.ToRing()...)
	}
	return out
}
