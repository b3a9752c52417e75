package geometry

import (
	"errors"

	"github.com/paulmach/orb"
)

var (
	ErrInvalidOuterRing = errors.New("not a valid outer ring")
	ErrNoOuterRings     = errors.New("no valid outer ways")
)

// AssemblePolygon builds a multipolygon from relation members already split
// into outer and inner segments. outerCount is the number of outer members
// the relation declared, including ones that could not be resolved.
func AssemblePolygon(outer, inner []Segment, outerCount int) (orb.MultiPolygon, error) {
	if len(outer) == 1 && outerCount == 1 {
		// "old style" multipolygon: tags on the outer way, relation only adds holes
		outerRing := MultiSegment(outer).Ring(orb.CCW)
		if len(outerRing) < 4 || !outerRing.Closed() {
			return nil, ErrInvalidOuterRing
		}

		innerSections := Join(inner)
		polygon := make(orb.Polygon, 0, len(innerSections)+1)
		polygon = append(polygon, outerRing)
		for _, is := range innerSections {
			polygon = append(polygon, is.Ring(orb.CW))
		}

		return orb.MultiPolygon{polygon}, nil
	}

	// more than one outer, inner rings go to the outer that contains them
	mp := make(orb.MultiPolygon, 0, len(outer))
	for _, os := range Join(outer) {
		ring := os.Ring(orb.CCW)
		if len(ring) < 4 || !ring.Closed() {
			// needs at least 4 points and matching endpoints
			continue
		}
		mp = append(mp, orb.Polygon{ring})
	}

	if len(mp) == 0 {
		return nil, ErrNoOuterRings
	}

	for _, is := range Join(inner) {
		mp = addToMultiPolygon(mp, is.Ring(orb.CW))
	}

	return mp, nil
}

func addToMultiPolygon(mp orb.MultiPolygon, ring orb.Ring) orb.MultiPolygon {
	for i := range mp {
		if ringContainsAny(mp[i][0], ring) {
			mp[i] = append(mp[i], ring)
			return mp
		}
	}

	// an inner ring nobody contains is assumed to belong to the first polygon
	mp[0] = append(mp[0], ring)
	return mp
}

func ringContainsAny(outer orb.Ring, r orb.Ring) bool {
	for _, p := range r {
		inside := false

		x, y := p[0], p[1]
		i, j := 0, len(outer)-1
		for i < len(outer) {
			xi, yi := outer[i][0], outer[i][1]
			xj, yj := outer[j][0], outer[j][1]

			if ((yi > y) != (yj > y)) &&
				(x < (xj-xi)*(y-yi)/(yj-yi)+xi) {
				inside = !inside
			}

			j = i
			i++
		}

		if inside {
			return true
		}
	}

	return false
}
