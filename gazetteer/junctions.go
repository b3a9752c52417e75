package gazetteer

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
)

// JunctionID derives a negative id for the k-th crossing of roads a and b.
// Store ids are never negative, so junctions cannot clash with real features.
func JunctionID(a, b int64, k int) int64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:], uint64(b))
	binary.LittleEndian.PutUint64(buf[16:], uint64(k))
	return -int64(xxhash.Sum64(buf[:])>>1) - 1
}

func nextJunctionID(id int64) int64 {
	if id == math.MinInt64 {
		return -1
	}
	return id - 1
}

// AddJunctions appends a point toponym for every place two road lines cross.
func AddJunctions(list []geomodel.Toponym) []geomodel.Toponym {
	var roads []geomodel.Toponym
	used := make(map[int64]bool, len(list))
	for _, t := range list {
		used[t.Feature.ID] = true
		if t.Kind() == geomodel.KindLine && t.Type.HasPrefix(geomodel.TypeRoad...) {
			roads = append(roads, t)
		}
	}

	out := slices.Clip(list)
	for i := 0; i < len(roads); i++ {
		for j := i + 1; j < len(roads); j++ {
			a, b := roads[i].Feature, roads[j].Feature
			for k, p := range geometry.Intersections(a.Geometry, b.Geometry) {
				id := JunctionID(a.ID, b.ID, k)
				for used[id] {
					id = nextJunctionID(id)
				}
				used[id] = true

				out = append(out, geomodel.Toponym{
					Feature: &geomodel.Feature{
						ID:             id,
						Kind:           geomodel.KindPoint,
						Name:           a.Name + " and " + b.Name,
						Geometry:       p,
						Classification: geomodel.TypeJunction.Clone(),
					},
					Type: geomodel.TypeJunction.Clone(),
				})
			}
		}
	}
	return out
}
