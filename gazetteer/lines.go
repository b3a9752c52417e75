package gazetteer

import (
	"github.com/paulmach/orb"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
)

// MergeLines joins same-named line toponyms that connect end to end. A merged
// chain keeps the identity of its first segment and takes its place in the list,
// disconnected segments stay separate entries.
func MergeLines(list []geomodel.Toponym) []geomodel.Toponym {
	groups := map[string][]int{}
	for i, t := range list {
		if t.Kind() == geomodel.KindLine {
			groups[t.Name()] = append(groups[t.Name()], i)
		}
	}

	replaced := make(map[int]geomodel.Toponym)
	dropped := make(map[int]bool)
	for _, idx := range groups {
		if len(idx) < 2 {
			continue
		}
		lines := make([]orb.LineString, len(idx))
		for i, at := range idx {
			lines[i], _ = list[at].Feature.Geometry.(orb.LineString)
		}
		for _, chain := range geometry.JoinLines(lines) {
			if len(chain.Members) < 2 {
				continue
			}
			head := list[idx[chain.Members[0]]]
			f := *head.Feature
			f.Geometry = chain.Line
			replaced[idx[chain.Members[0]]] = geomodel.Toponym{Feature: &f, Type: head.Type}
			for _, m := range chain.Members[1:] {
				dropped[idx[m]] = true
			}
		}
	}

	if len(replaced) == 0 {
		return list
	}
	out := make([]geomodel.Toponym, 0, len(list)-len(dropped))
	for i, t := range list {
		if dropped[i] {
			continue
		}
		if r, ok := replaced[i]; ok {
			t = r
		}
		out = append(out, t)
	}
	return out
}
