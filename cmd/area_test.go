package main

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArea(t *testing.T) {
	mp, err := parseArea("", "-0.2, 51.4,0.1,51.6")
	require.NoError(t, err)
	require.Len(t, mp, 1)
	assert.Equal(t, orb.Bound{Min: orb.Point{-0.2, 51.4}, Max: orb.Point{0.1, 51.6}}, mp.Bound())

	mp, err = parseArea("POLYGON((0 0,1 0,1 1,0 1,0 0))", "")
	require.NoError(t, err)
	require.Len(t, mp, 1)

	mp, err = parseArea("MULTIPOLYGON(((0 0,1 0,1 1,0 0)),((5 5,6 5,6 6,5 5)))", "")
	require.NoError(t, err)
	assert.Len(t, mp, 2)

	for _, c := range [][2]string{
		{"", ""},
		{"POINT(1 2)", ""},
		{"POLYGON((0 0", ""},
		{"", "1,2,3"},
		{"", "1,2,0,3"},
		{"", "a,b,c,d"},
		{"POLYGON((0 0,1 0,1 1,0 0))", "0,0,1,1"},
	} {
		_, err := parseArea(c[0], c[1])
		assert.Error(t, err, "area=%q bbox=%q", c[0], c[1])
	}
}

func TestParseLonLat(t *testing.T) {
	p, err := parseLonLat("-0.0754", "51.5055")
	require.NoError(t, err)
	assert.Equal(t, orb.Point{-0.0754, 51.5055}, p)

	_, err = parseLonLat("200", "0")
	assert.Error(t, err)
	_, err = parseLonLat("0", "x")
	assert.Error(t, err)
}
