package gazetteer

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/royalcat/osmgaz/geomodel"
)

func road(id int64, name string, typ geomodel.TypePath, pts ...orb.Point) geomodel.Toponym {
	return geomodel.Toponym{Feature: line(id, name, nil, pts...), Type: typ}
}

func TestMergeLines(t *testing.T) {
	pub := geomodel.Toponym{Feature: node(9, "The Crown", nil, 0, 0), Type: geomodel.TypeBuilding}
	list := []geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{0, 0}, orb.Point{10, 0}),
		pub,
		// reversed middle segment
		road(2, "High Street", primaryRoad, orb.Point{20, 0}, orb.Point{10, 0}),
		road(3, "High Street", primaryRoad, orb.Point{20, 0}, orb.Point{30, 0}),
		road(4, "High Street", primaryRoad, orb.Point{100, 100}, orb.Point{110, 100}),
		road(5, "Mill Lane", minorRoad, orb.Point{30, 0}, orb.Point{30, 10}),
	}

	out := MergeLines(list)
	require.Len(t, out, 4)
	assert.Equal(t, []int64{1, 9, 4, 5}, []int64{out[0].Feature.ID, out[1].Feature.ID, out[2].Feature.ID, out[3].Feature.ID})

	merged, ok := out[0].Feature.Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, merged, 4)
	assert.Equal(t, primaryRoad, out[0].Type)
	assert.Equal(t, "High Street", out[0].Name())

	// input untouched
	assert.Len(t, list[0].Feature.Geometry.(orb.LineString), 2)
}

func TestMergeLinesPassThrough(t *testing.T) {
	list := []geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{0, 0}, orb.Point{10, 0}),
		road(2, "High Street", primaryRoad, orb.Point{50, 0}, orb.Point{60, 0}),
	}
	out := MergeLines(list)
	assert.Equal(t, list, out)
	assert.Empty(t, MergeLines(nil))
}

func TestAddJunctions(t *testing.T) {
	list := []geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{-10, 0}, orb.Point{10, 0}),
		road(2, "Mill Lane", minorRoad, orb.Point{0, -10}, orb.Point{0, 10}),
		road(3, "Back Lane", minorRoad, orb.Point{-10, 5}, orb.Point{-5, 5}),
	}

	out := AddJunctions(list)
	require.Len(t, out, 4)
	assert.Equal(t, list, out[:3])

	j := out[3]
	assert.Equal(t, "High Street and Mill Lane", j.Name())
	assert.Equal(t, geomodel.KindPoint, j.Kind())
	assert.Equal(t, geomodel.TypeJunction, j.Type)
	assert.Equal(t, orb.Point{0, 0}, j.Feature.Geometry)
	assert.Less(t, j.Feature.ID, int64(0))
}

func TestAddJunctionsNone(t *testing.T) {
	parallel := []geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{0, 0}, orb.Point{10, 0}),
		road(2, "Mill Lane", minorRoad, orb.Point{0, 5}, orb.Point{10, 5}),
	}
	assert.Len(t, AddJunctions(parallel), 2)

	notRoads := []geomodel.Toponym{
		road(1, "Brook", stream, orb.Point{-10, 0}, orb.Point{10, 0}),
		road(2, "Mill Lane", minorRoad, orb.Point{0, -10}, orb.Point{0, 10}),
	}
	assert.Len(t, AddJunctions(notRoads), 2)
}

func TestAddJunctionsSameName(t *testing.T) {
	crossing := []geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{-10, 0}, orb.Point{10, 0}),
		road(2, "High Street", primaryRoad, orb.Point{0, -10}, orb.Point{0, 10}),
	}
	out := AddJunctions(crossing)
	require.Len(t, out, 3)
	assert.Equal(t, "High Street and High Street", out[2].Name())
	assert.Equal(t, orb.Point{0, 0}, out[2].Feature.Geometry)

	// a fork: two branches merge into one chain, the third meets it at the fork
	fork := MergeLines([]geomodel.Toponym{
		road(1, "High Street", primaryRoad, orb.Point{-10, 0}, orb.Point{0, 0}),
		road(2, "High Street", primaryRoad, orb.Point{0, 0}, orb.Point{10, 5}),
		road(3, "High Street", primaryRoad, orb.Point{0, 0}, orb.Point{10, -5}),
	})
	require.Len(t, fork, 2)
	out = AddJunctions(fork)
	require.Len(t, out, 3)
	assert.Equal(t, geomodel.TypeJunction, out[2].Type)
	assert.Equal(t, orb.Point{0, 0}, out[2].Feature.Geometry)
}

func TestAddJunctionsDistinctIDs(t *testing.T) {
	list := []geomodel.Toponym{
		road(1, "Crescent", minorRoad, orb.Point{-10, -10}, orb.Point{0, 10}, orb.Point{10, -10}),
		road(2, "High Street", primaryRoad, orb.Point{-20, 0}, orb.Point{20, 0}),
		road(3, "Mill Lane", minorRoad, orb.Point{-20, 5}, orb.Point{20, 5}),
		// occupies the id the first junction would take
		{Feature: node(JunctionID(1, 2, 0), "The Crown", nil, 50, 50), Type: geomodel.TypeBuilding},
	}
	out := AddJunctions(list)
	require.Len(t, out, 4+2+2)

	seen := map[int64]bool{}
	for _, tp := range out {
		assert.False(t, seen[tp.Feature.ID], "duplicate id %d", tp.Feature.ID)
		seen[tp.Feature.ID] = true
	}
	for _, j := range out[4:] {
		assert.Less(t, j.Feature.ID, int64(0))
		assert.Equal(t, geomodel.TypeJunction, j.Type)
	}
}

func TestAddJunctionsMultiple(t *testing.T) {
	list := []geomodel.Toponym{
		road(1, "Crescent", minorRoad, orb.Point{-10, -10}, orb.Point{0, 10}, orb.Point{10, -10}),
		road(2, "High Street", primaryRoad, orb.Point{-20, 0}, orb.Point{20, 0}),
	}
	out := AddJunctions(list)
	require.Len(t, out, 4)
	assert.NotEqual(t, out[2].Feature.ID, out[3].Feature.ID)
	assert.Equal(t, "Crescent and High Street", out[2].Name())
}

func TestJunctionID(t *testing.T) {
	seen := map[int64]bool{}
	for _, c := range [][3]int64{{1, 2, 0}, {1, 2, 1}, {1, 3, 0}, {2, 1, 0}, {0, 0, 0}, {-5, 7, 0}, {1 << 52, 3, 0}} {
		id := JunctionID(c[0], c[1], int(c[2]))
		assert.Less(t, id, int64(0))
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestJunctionIDNeighbours(t *testing.T) {
	assert.NotEqual(t, JunctionID(1, 2, 1), JunctionID(1, 3, 0))
	assert.NotEqual(t, JunctionID(1, 1_000_004, 0), JunctionID(2, 0, 0))
	assert.Equal(t, JunctionID(4, 9, 2), JunctionID(4, 9, 2))
}
