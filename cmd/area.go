package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// parseArea reads a warm-up area from WKT or a min_lon,min_lat,max_lon,max_lat box.
func parseArea(areaWKT, bbox string) (orb.MultiPolygon, error) {
	switch {
	case areaWKT != "" && bbox != "":
		return nil, errors.New("--area and --bbox are mutually exclusive")
	case areaWKT != "":
		g, err := wkt.Unmarshal(areaWKT)
		if err != nil {
			return nil, fmt.Errorf("invalid area: %w", err)
		}
		switch g := g.(type) {
		case orb.Polygon:
			return orb.MultiPolygon{g}, nil
		case orb.MultiPolygon:
			return g, nil
		default:
			return nil, fmt.Errorf("area must be a polygon or multipolygon, got %s", g.GeoJSONType())
		}
	case bbox != "":
		parts := strings.Split(bbox, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("bbox needs 4 comma separated numbers, got %d", len(parts))
		}
		var v [4]float64
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid bbox value %q: %w", p, err)
			}
			v[i] = f
		}
		if v[0] >= v[2] || v[1] >= v[3] {
			return nil, errors.New("bbox minimum must be below maximum")
		}
		b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
		return orb.MultiPolygon{b.ToPolygon()}, nil
	default:
		return nil, errors.New("one of --area or --bbox is required")
	}
}

func parseLonLat(lonS, latS string) (orb.Point, error) {
	lon, err := strconv.ParseFloat(lonS, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(latS, 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid latitude: %w", err)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("point %v,%v is outside WGS84 bounds", lon, lat)
	}
	return orb.Point{lon, lat}, nil
}
