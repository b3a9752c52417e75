package gazetteer

import (
	"io"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/spatial"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	primaryRoad = append(geomodel.TypeRoad.Clone(), "PRIMARY")
	minorRoad   = append(geomodel.TypeRoad.Clone(), "MINOR")
	religious   = append(geomodel.TypeBuilding.Clone(), "RELIGIOUS")
	stream      = geomodel.TypePath{"NATURAL FEATURE", "WATER", "STREAM"}
)

func admin(level string) geomodel.TypePath {
	return append(geomodel.TypeAdministrative.Clone(), level)
}

func testClassifier() *classifier.Classifier {
	rules := classifier.NewRuleSet([]classifier.Rule{
		{Match: map[string]string{"boundary": "administrative", "admin_level": "2"}, Type: admin("2")},
		{Match: map[string]string{"boundary": "administrative", "admin_level": "4"}, Type: admin("4")},
		{Match: map[string]string{"boundary": "administrative", "admin_level": "8"}, Type: admin("8")},
		{Match: map[string]string{"building": "yes"}, Type: geomodel.TypeBuilding},
		{Match: map[string]string{"amenity": "place_of_worship"}, Type: religious},
		{Match: map[string]string{"highway": "primary"}, Type: primaryRoad},
		{Match: map[string]string{"highway": "residential"}, Type: minorRoad},
		{Match: map[string]string{"waterway": "stream"}, Type: stream},
	})
	return classifier.New(rules, classifier.WithLogger(testLogger()))
}

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}

func adminArea(id int64, name, level string, half, area float64) *geomodel.Feature {
	return &geomodel.Feature{
		ID: id, Kind: geomodel.KindPolygon, Name: name,
		Tags:     map[string]string{"boundary": "administrative", "admin_level": level},
		Geometry: square(-half, -half, half, half),
		Area:     area,
	}
}

func line(id int64, name string, tags map[string]string, pts ...orb.Point) *geomodel.Feature {
	return &geomodel.Feature{ID: id, Kind: geomodel.KindLine, Name: name, Tags: tags, Geometry: orb.LineString(pts)}
}

func node(id int64, name string, tags map[string]string, x, y float64) *geomodel.Feature {
	return &geomodel.Feature{ID: id, Kind: geomodel.KindPoint, Name: name, Tags: tags, Geometry: orb.Point{x, y}}
}

// town is centred on the origin, which is lon/lat 0,0 as well.
func town() *spatial.Memory {
	m := spatial.NewMemory()
	m.Insert(adminArea(1, "Borough A", "8", 1000, 2e6))
	m.Insert(adminArea(2, "Region B", "4", 20000, 5e8))
	m.Insert(adminArea(3, "Country C", "2", 1e6, 2e11))

	primary := map[string]string{"highway": "primary"}
	m.Insert(line(20, "High Street", primary, orb.Point{-300, 100}, orb.Point{0, 100}))
	m.Insert(line(21, "High Street", primary, orb.Point{0, 100}, orb.Point{300, 100}))
	m.Insert(line(22, "Mill Lane", map[string]string{"highway": "residential"}, orb.Point{100, -300}, orb.Point{100, 300}))

	m.Insert(node(10, "The Crown", map[string]string{"building": "yes"}, 50, 50))
	m.Insert(node(11, "St Mary", map[string]string{"amenity": "place_of_worship"}, -150, 80))
	m.Insert(node(30, "Mystery", map[string]string{"foo": "bar"}, 10, 10))
	m.Insert(node(31, "Box", map[string]string{"amenity": "postbox"}, 20, 10))
	return m
}

func names(list []geomodel.Toponym) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Name())
	}
	return out
}

func entryNames(list []geomodel.Entry) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.Name)
	}
	return out
}
