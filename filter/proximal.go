package filter

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
)

// ProximalLimits bound the proximal selection for one urban/rural class.
type ProximalLimits struct {
	// Max is the number of distinct references kept.
	Max int
	// MaxDistance drops everything further from the point.
	MaxDistance float64
	// Near is the radius inside which another reference of an already
	// represented category still sharpens the location.
	Near float64
}

var DefaultProximalLimits = map[geomodel.UrbanRural]ProximalLimits{
	geomodel.Urban: {Max: 5, MaxDistance: 400, Near: 100},
	geomodel.Rural: {Max: 8, MaxDistance: 3000, Near: 500},
}

type Proximal struct {
	limits map[geomodel.UrbanRural]ProximalLimits
}

func NewProximal(limits map[geomodel.UrbanRural]ProximalLimits) *Proximal {
	if limits == nil {
		limits = DefaultProximalLimits
	}
	return &Proximal{limits: limits}
}

type ranked struct {
	idx      int
	distance float64
}

// Filter greedily picks candidates by distance to p (EPSG:3857). A candidate is
// kept when it brings a category not yet represented or lies within the near
// radius, names already used by the containment list or by a kept candidate of
// the same category are skipped. Line segments sharing a kept road's name and
// category ride along so they can be merged later. The result keeps input order.
func (f *Proximal) Filter(candidates []geomodel.Toponym, p orb.Point, containment []geomodel.Toponym, ur geomodel.UrbanRural) []geomodel.Toponym {
	limits, ok := f.limits[ur]
	if !ok {
		limits = DefaultProximalLimits[geomodel.Rural]
	}

	contained := make(map[string]bool, len(containment))
	for _, t := range containment {
		contained[t.Name()] = true
	}

	order := make([]ranked, len(candidates))
	for i, c := range candidates {
		order[i] = ranked{idx: i, distance: geometry.Distance(c.Feature.Geometry, p)}
	}
	slices.SortStableFunc(order, func(a, b ranked) int {
		return cmp.Compare(a.distance, b.distance)
	})

	type nameKey struct {
		name     string
		category string
	}
	keep := make([]bool, len(candidates))
	categories := map[string]bool{}
	names := map[nameKey]bool{}
	picked := 0

	for _, r := range order {
		if picked >= limits.Max || r.distance > limits.MaxDistance {
			break
		}
		c := candidates[r.idx]
		if contained[c.Name()] {
			continue
		}
		category := c.Type.Head(2).String()
		key := nameKey{c.Name(), category}
		if names[key] {
			continue
		}
		if categories[category] && r.distance > limits.Near {
			continue
		}

		keep[r.idx] = true
		categories[category] = true
		names[key] = true
		picked++
	}

	// remaining segments of kept lines
	for _, r := range order {
		if r.distance > limits.MaxDistance {
			break
		}
		c := candidates[r.idx]
		if keep[r.idx] || c.Kind() != geomodel.KindLine {
			continue
		}
		if names[nameKey{c.Name(), c.Type.Head(2).String()}] && hasKeptLine(candidates, keep, c) {
			keep[r.idx] = true
		}
	}

	out := make([]geomodel.Toponym, 0, picked)
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func hasKeptLine(candidates []geomodel.Toponym, keep []bool, c geomodel.Toponym) bool {
	for i, o := range candidates {
		if keep[i] && o.Kind() == geomodel.KindLine && o.Name() == c.Name() && o.Type.Head(2).Equal(c.Type.Head(2)) {
			return true
		}
	}
	return false
}
