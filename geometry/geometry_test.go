package geometry

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func TestJoinLines(t *testing.T) {
	lines := []orb.LineString{
		{{0, 0}, {1, 0}},
		{{2, 0}, {1, 0}}, // reversed
		{{10, 10}, {11, 10}},
		{{2, 0}, {3, 0}},
	}
	orig := lines[1].Clone()

	chains := JoinLines(lines)
	require.Len(t, chains, 2)

	assert.Equal(t, []int{0, 1, 3}, chains[0].Members)
	merged := chains[0].Line
	require.Len(t, merged, 4)
	// either direction is a valid run
	if !merged[0].Equal(orb.Point{0, 0}) {
		merged = merged.Clone()
		merged.Reverse()
	}
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {2, 0}, {3, 0}}, merged)

	assert.Equal(t, []int{2}, chains[1].Members)
	assert.Equal(t, lines[2], chains[1].Line)

	assert.Equal(t, orig, lines[1])
}

func TestJoinLinesDegenerate(t *testing.T) {
	chains := JoinLines([]orb.LineString{{{5, 5}}, {{0, 0}, {1, 1}}})
	require.Len(t, chains, 2)
	assert.Equal(t, []int{0}, chains[0].Members)
	assert.Equal(t, []int{1}, chains[1].Members)
}

func TestAssemblePolygon(t *testing.T) {
	outer := []Segment{
		{Line: orb.LineString{{0, 0}, {10, 0}, {10, 10}}},
		{Line: orb.LineString{{10, 10}, {0, 10}, {0, 0}}},
	}
	inner := []Segment{
		{Line: orb.LineString{{2, 2}, {4, 2}, {4, 4}, {2, 4}, {2, 2}}},
	}

	mp, err := AssemblePolygon(outer, inner, 2)
	require.NoError(t, err)
	require.Len(t, mp, 1)
	require.Len(t, mp[0], 2)
	assert.Equal(t, orb.CCW, mp[0][0].Orientation())
	assert.Equal(t, orb.CW, mp[0][1].Orientation())
	assert.InDelta(t, 96, math.Abs(planar.Area(mp)), 1e-9)

	_, err = AssemblePolygon([]Segment{{Line: orb.LineString{{0, 0}, {1, 0}}}}, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidOuterRing)
}

func TestIntersects(t *testing.T) {
	poly := square(0, 0, 10, 10)

	cases := []struct {
		name string
		a, b orb.Geometry
		want bool
	}{
		{"point inside polygon", orb.Point{5, 5}, poly, true},
		{"point outside polygon", orb.Point{15, 5}, poly, false},
		{"line inside polygon", orb.LineString{{1, 1}, {2, 2}}, poly, true},
		{"line crossing boundary", orb.LineString{{-5, 5}, {5, 5}}, poly, true},
		{"crossing lines", orb.LineString{{0, 0}, {2, 2}}, orb.LineString{{0, 2}, {2, 0}}, true},
		{"parallel lines", orb.LineString{{0, 0}, {2, 0}}, orb.LineString{{0, 1}, {2, 1}}, false},
		{"touching lines", orb.LineString{{0, 0}, {1, 0}}, orb.LineString{{1, 0}, {1, 1}}, true},
		{"point on line", orb.Point{1, 0}, orb.LineString{{0, 0}, {2, 0}}, true},
		{"polygon inside polygon", square(2, 2, 3, 3), poly, true},
		{"disjoint polygons", square(20, 20, 30, 30), poly, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Intersects(tc.a, tc.b))
			assert.Equal(t, tc.want, Intersects(tc.b, tc.a))
		})
	}
}

func TestIntersections(t *testing.T) {
	pts := Intersections(orb.LineString{{0, 0}, {2, 2}}, orb.LineString{{0, 2}, {2, 0}})
	require.Len(t, pts, 1)
	assert.InDelta(t, 1, pts[0][0], 1e-9)
	assert.InDelta(t, 1, pts[0][1], 1e-9)

	// a line crossing a zigzag twice
	pts = Intersections(
		orb.LineString{{0, 1}, {10, 1}},
		orb.LineString{{1, 0}, {2, 2}, {3, 0}},
	)
	assert.Len(t, pts, 2)

	// crossing at a shared vertex is reported once
	pts = Intersections(
		orb.LineString{{0, 0}, {1, 1}, {2, 2}},
		orb.LineString{{0, 2}, {1, 1}, {2, 0}},
	)
	require.Len(t, pts, 1)
	assert.Equal(t, orb.Point{1, 1}, pts[0])

	assert.Empty(t, Intersections(orb.LineString{{0, 0}, {2, 0}}, orb.LineString{{0, 1}, {2, 1}}))
}

func TestIntersectionsVertexOnLine(t *testing.T) {
	// b has a vertex on a's interior, both edges around it report the crossing
	rnd := rand.New(rand.NewSource(7))
	for i := range 1000 {
		a0 := orb.Point{rnd.Float64() * 1000, rnd.Float64() * 1000}
		angle := rnd.Float64() * 2 * math.Pi
		length := 200 + rnd.Float64()*800
		a1 := orb.Point{a0[0] + length*math.Cos(angle), a0[1] + length*math.Sin(angle)}

		at := 0.1 + 0.8*rnd.Float64()
		v := orb.Point{a0[0] + at*(a1[0]-a0[0]), a0[1] + at*(a1[1]-a0[1])}

		cross := angle + math.Pi/6 + rnd.Float64()*2*math.Pi/3
		d := orb.Point{20 * math.Cos(cross), 20 * math.Sin(cross)}
		b := orb.LineString{{v[0] - d[0], v[1] - d[1]}, v, {v[0] + d[0], v[1] + d[1]}}

		pts := Intersections(orb.LineString{a0, a1}, b)
		require.Len(t, pts, 1, "case %d: %v", i, pts)
		assert.InDelta(t, 0, planar.Distance(pts[0], v), 1e-6, "case %d", i)
	}
}

func TestDistance(t *testing.T) {
	poly := square(0, 0, 10, 10)

	assert.Equal(t, 0.0, Distance(orb.Point{5, 5}, poly))
	assert.InDelta(t, 5, Distance(orb.Point{15, 5}, poly), 1e-9)
	assert.InDelta(t, 3, Distance(orb.LineString{{0, 13}, {10, 13}}, poly), 1e-9)
	assert.InDelta(t, 5, Distance(orb.Point{0, 0}, orb.Point{3, 4}), 1e-9)

	assert.True(t, Within(orb.Point{15, 5}, poly, 5))
	assert.False(t, Within(orb.Point{15, 5}, poly, 4.9))
}

func FuzzIntersectsSymmetric(f *testing.F) {
	f.Add(0.0, 0.0, 2.0, 2.0, 0.0, 2.0, 2.0, 0.0)
	f.Add(0.0, 0.0, 1.0, 0.0, 1.0, 0.0, 1.0, 1.0)
	f.Add(0.0, 0.0, 2.0, 0.0, 0.0, 1.0, 2.0, 1.0)

	f.Fuzz(func(t *testing.T, ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) {
		for _, v := range []float64{ax1, ay1, ax2, ay2, bx1, by1, bx2, by2} {
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e9 {
				t.Skip()
			}
		}
		a := orb.LineString{{ax1, ay1}, {ax2, ay2}}
		b := orb.LineString{{bx1, by1}, {bx2, by2}}

		if Intersects(a, b) != Intersects(b, a) {
			t.Fatalf("asymmetric result for %v %v", a, b)
		}
		if !Intersects(a, b) && len(Intersections(a, b)) != 0 {
			t.Fatalf("intersection points for disjoint lines %v %v", a, b)
		}
	})
}
