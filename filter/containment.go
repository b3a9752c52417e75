package filter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/royalcat/osmgaz/geomodel"
)

// NameLookup finds classified polygons with a given name intersecting a geometry.
type NameLookup interface {
	NamedToponyms(ctx context.Context, name string, g orb.Geometry) ([]geomodel.Toponym, error)
}

// Containment reduces a containment hierarchy, smallest first, to the levels
// that add locational value.
type Containment struct {
	lookup NameLookup
	log    *slog.Logger
}

func NewContainment(lookup NameLookup, log *slog.Logger) *Containment {
	if log == nil {
		log = slog.Default()
	}
	return &Containment{lookup: lookup, log: log.With("component", "containment-filter")}
}

// Ratio of consecutive kept areas above which the larger entry adds nothing.
const incrementRatio = 0.25

// Filter runs duplicate and increment filtering, then collapses levels
// that are unique within an outer level.
func (c *Containment) Filter(ctx context.Context, list []geomodel.Toponym) ([]geomodel.Toponym, error) {
	filtered := FilterIncrements(FilterDuplicates(list))

	var err error
	unique := func(figure, ground int) {
		if err != nil {
			return
		}
		filtered, err = c.FilterUnique(ctx, filtered, figure, ground)
	}

	if len(filtered) > 3 {
		unique(-3, -1)
		if len(filtered) > 3 {
			unique(0, 2)
			if len(filtered) > 3 {
				unique(-3, -1)
			}
		}
	}
	if len(filtered) == 3 &&
		filtered[0].Type.HasPrefix(geomodel.TypeAdminLevel8...) &&
		filtered[1].Type.HasPrefix(geomodel.TypeCeremonial...) {
		unique(0, 2)
	}
	if len(filtered) > 0 && filtered[0].Type.HasPrefix(geomodel.TypeNationalPark...) {
		unique(0, 2)
	}
	if err != nil {
		return nil, err
	}
	return filtered, nil
}

// FilterDuplicates drops ceremonial areas that share their name with an administrative one.
func FilterDuplicates(list []geomodel.Toponym) []geomodel.Toponym {
	out := make([]geomodel.Toponym, 0, len(list))
	for i, a := range list {
		duplicate := false
		if a.Type.HasPrefix(geomodel.TypeCeremonial...) {
			for j, b := range list {
				if i != j && a.Name() == b.Name() && b.Type.HasPrefix(geomodel.TypeAdministrative...) {
					duplicate = true
					break
				}
			}
		}
		if !duplicate {
			out = append(out, a)
		}
	}
	return out
}

// FilterIncrements keeps the smallest entry and every entry at least four
// times larger than the last kept one. The outermost entry is put back if
// its admin level differs from the outermost kept one.
func FilterIncrements(list []geomodel.Toponym) []geomodel.Toponym {
	if len(list) == 0 {
		return list
	}

	out := make([]geomodel.Toponym, 0, len(list))
	prevArea := 0.0
	for _, t := range list {
		if len(out) == 0 || prevArea/t.Feature.Area <= incrementRatio {
			out = append(out, t)
			prevArea = t.Feature.Area
		}
	}

	outermost := list[len(list)-1]
	if outermost.Feature.Tag(geomodel.AdminLevelKey) != out[len(out)-1].Feature.Tag(geomodel.AdminLevelKey) {
		out = append(out, outermost)
	}
	return out
}

// FilterUnique collapses list to [0..figure] + [ground..] when no other polygon
// named like the figure, of the same top level type, intersects the ground.
// Negative indices count from the end, out of range indices leave list as is.
func (c *Containment) FilterUnique(ctx context.Context, list []geomodel.Toponym, figure, ground int) ([]geomodel.Toponym, error) {
	n := len(list)
	if figure < 0 {
		figure += n
	}
	if ground < 0 {
		ground += n
	}
	if figure < 0 || ground >= n || figure >= ground {
		return list, nil
	}

	fig, grd := list[figure], list[ground]
	others, err := c.lookup.NamedToponyms(ctx, fig.Name(), grd.Feature.Geometry)
	if err != nil {
		return nil, fmt.Errorf("uniqueness of %q: %w", fig.Name(), err)
	}

	head := fig.Type.Head(2)
	for _, o := range others {
		if o.Feature.ID == fig.Feature.ID {
			continue
		}
		if o.Type.Head(2).Equal(head) {
			c.log.Debug("figure not unique", "name", fig.Name(), "other", o.Feature.ID)
			return list, nil
		}
	}

	out := make([]geomodel.Toponym, 0, figure+1+n-ground)
	out = append(out, list[:figure+1]...)
	return append(out, list[ground:]...), nil
}
