package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type edge [2]orb.Point

// Intersects reports whether two geometries share at least one point.
// Polygons are treated as areas, a geometry lying fully inside one intersects it.
func Intersects(a, b orb.Geometry) bool {
	if a == nil || b == nil {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}

	if pb := polygons(b); len(pb) > 0 {
		for _, p := range vertices(a) {
			if planar.MultiPolygonContains(pb, p) {
				return true
			}
		}
	}
	if pa := polygons(a); len(pa) > 0 {
		for _, p := range vertices(b) {
			if planar.MultiPolygonContains(pa, p) {
				return true
			}
		}
	}

	eb := edges(b)
	for _, e1 := range edges(a) {
		for _, e2 := range eb {
			if edgesIntersect(e1, e2) {
				return true
			}
		}
	}
	return false
}

// SamePointTolerance is the distance below which two computed crossings are
// the same point. Adjacent edges meeting at a vertex on the other line each
// compute the crossing with their own rounding.
const SamePointTolerance = 1e-6

// Intersections returns the distinct points where two line geometries meet.
// Collinear overlaps contribute their end points.
func Intersections(a, b orb.Geometry) []orb.Point {
	if a == nil || b == nil || !a.Bound().Intersects(b.Bound()) {
		return nil
	}

	var out []orb.Point
	add := func(p orb.Point) {
		for _, q := range out {
			if planar.Distance(p, q) < SamePointTolerance {
				return
			}
		}
		out = append(out, p)
	}

	eb := edges(b)
	for _, e1 := range edges(a) {
		for _, e2 := range eb {
			for _, p := range edgeIntersection(e1, e2) {
				add(p)
			}
		}
	}
	return out
}

func polygons(g orb.Geometry) orb.MultiPolygon {
	switch g := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{g}
	case orb.MultiPolygon:
		return g
	case orb.Ring:
		return orb.MultiPolygon{orb.Polygon{g}}
	case orb.Bound:
		return orb.MultiPolygon{g.ToPolygon()}
	case orb.Collection:
		var out orb.MultiPolygon
		for _, c := range g {
			out = append(out, polygons(c)...)
		}
		return out
	}
	return nil
}

// edges decomposes g into segments, points become zero length segments.
func edges(g orb.Geometry) []edge {
	var out []edge
	line := func(ls []orb.Point) {
		if len(ls) == 1 {
			out = append(out, edge{ls[0], ls[0]})
		}
		for i := 1; i < len(ls); i++ {
			out = append(out, edge{ls[i-1], ls[i]})
		}
	}

	switch g := g.(type) {
	case orb.Point:
		out = append(out, edge{g, g})
	case orb.MultiPoint:
		for _, p := range g {
			out = append(out, edge{p, p})
		}
	case orb.LineString:
		line(g)
	case orb.MultiLineString:
		for _, l := range g {
			line(l)
		}
	case orb.Ring:
		line(g)
	case orb.Polygon:
		for _, r := range g {
			line(r)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			for _, r := range p {
				line(r)
			}
		}
	case orb.Collection:
		for _, c := range g {
			out = append(out, edges(c)...)
		}
	case orb.Bound:
		line(g.ToRing())
	}
	return out
}

func orient(p, q, r orb.Point) int {
	v := (q[1]-p[1])*(r[0]-q[0]) - (q[0]-p[0])*(r[1]-q[1])
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// onSegment reports whether q lies in the bounding box of p-r. Only valid for collinear points.
func onSegment(p, q, r orb.Point) bool {
	return q[0] <= max(p[0], r[0]) && q[0] >= min(p[0], r[0]) &&
		q[1] <= max(p[1], r[1]) && q[1] >= min(p[1], r[1])
}

func edgesIntersect(e1, e2 edge) bool {
	p1, q1 := e1[0], e1[1]
	p2, q2 := e2[0], e2[1]

	o1 := orient(p1, q1, p2)
	o2 := orient(p1, q1, q2)
	o3 := orient(p2, q2, p1)
	o4 := orient(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}

	return (o1 == 0 && onSegment(p1, p2, q1)) ||
		(o2 == 0 && onSegment(p1, q2, q1)) ||
		(o3 == 0 && onSegment(p2, p1, q2)) ||
		(o4 == 0 && onSegment(p2, q1, q2))
}

func edgeIntersection(e1, e2 edge) []orb.Point {
	if !edgesIntersect(e1, e2) {
		return nil
	}

	p, r := e1[0], orb.Point{e1[1][0] - e1[0][0], e1[1][1] - e1[0][1]}
	q, s := e2[0], orb.Point{e2[1][0] - e2[0][0], e2[1][1] - e2[0][1]}

	denom := r[0]*s[1] - r[1]*s[0]
	if denom != 0 {
		t := ((q[0]-p[0])*s[1] - (q[1]-p[1])*s[0]) / denom
		// snap to shared vertices so touching segments report exactly one point
		switch {
		case t <= 0:
			return []orb.Point{p}
		case t >= 1:
			return []orb.Point{e1[1]}
		}
		return []orb.Point{{p[0] + t*r[0], p[1] + t*r[1]}}
	}

	// collinear or degenerate: report the end points lying on the other edge
	var out []orb.Point
	for _, c := range []orb.Point{e1[0], e1[1]} {
		if orient(e2[0], e2[1], c) == 0 && onSegment(e2[0], c, e2[1]) {
			out = append(out, c)
		}
	}
	for _, c := range []orb.Point{e2[0], e2[1]} {
		if orient(e1[0], e1[1], c) == 0 && onSegment(e1[0], c, e1[1]) {
			out = append(out, c)
		}
	}
	return out
}
