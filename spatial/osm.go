package spatial

import (
	"context"
	"io"
	"log/slog"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/sourcegraph/conc/pool"

	"github.com/royalcat/osmgaz/geometry"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/internal/progress"
)

// OSMDB resolves the nodes and ways an object refers to.
type OSMDB interface {
	GetNode(id osm.NodeID) (*osm.Node, error)
	GetWay(id osm.WayID) (*osm.Way, error)
}

type LoadOptions struct {
	Threads int
	Logger  *slog.Logger
}

// RelationIDOffset moves relation ids above every way id while keeping them
// non-negative. Negative ids belong to synthesized features.
const RelationIDOffset int64 = 1 << 52

// Keys that turn a closed way into an area.
var areaKeys = []string{
	"building", "landuse", "leisure", "amenity", "natural", "place", "boundary",
	"tourism", "historic", "shop", "man_made", "water", "military", "aeroway",
}

// LoadOSM builds a Memory store from a PBF stream. Only named objects are kept:
// nodes become points, open ways lines, closed area ways and multipolygon or
// boundary relations polygons. Relation ids are shifted by RelationIDOffset.
func LoadOSM(ctx context.Context, r io.Reader, size int64, db OSMDB, opts LoadOptions) (*Memory, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.GOMAXPROCS(0)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	l := &osmLoader{
		db:    db,
		store: NewMemory(),
		log:   log.With("component", "osm-loader"),
	}

	scanner := osmpbf.New(ctx, r, threads)
	defer scanner.Close()

	bar := progress.Start(size, "loading features", true)

	p := pool.New().WithMaxGoroutines(threads)
	for scanner.Scan() {
		bar.SetCurrent(scanner.FullyScannedBytes())
		object := scanner.Object()
		p.Go(func() {
			l.parseObject(object)
		})
	}
	p.Wait()
	bar.Finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.log.Info("features loaded",
		"points", l.store.Len(geomodel.KindPoint),
		"lines", l.store.Len(geomodel.KindLine),
		"polygons", l.store.Len(geomodel.KindPolygon),
	)
	return l.store, nil
}

type osmLoader struct {
	db    OSMDB
	store *Memory
	log   *slog.Logger
}

func (l *osmLoader) parseObject(o osm.Object) {
	switch o := o.(type) {
	case *osm.Node:
		l.parseNode(o)
	case *osm.Way:
		l.parseWay(o)
	case *osm.Relation:
		l.parseRelation(o)
	}
}

func (l *osmLoader) parseNode(n *osm.Node) {
	name := n.Tags.Find("name")
	if name == "" {
		return
	}
	l.store.Insert(&geomodel.Feature{
		ID:       int64(n.ID),
		Kind:     geomodel.KindPoint,
		Name:     name,
		Tags:     n.Tags.Map(),
		Geometry: project.WGS84.ToMercator(orb.Point{n.Lon, n.Lat}),
	})
}

func (l *osmLoader) parseWay(w *osm.Way) {
	name := w.Tags.Find("name")
	if name == "" {
		return
	}
	ls := l.makeLineString(w.Nodes)
	if len(ls) < 2 {
		return
	}

	f := &geomodel.Feature{
		ID:   int64(w.ID),
		Name: name,
		Tags: w.Tags.Map(),
	}
	if isArea(w.Tags) && len(ls) >= 4 && ls[0].Equal(ls[len(ls)-1]) {
		ring := orb.Ring(ls)
		if ring.Orientation() != orb.CCW {
			ring.Reverse()
		}
		poly := orb.Polygon{ring}
		f.Kind = geomodel.KindPolygon
		f.Geometry = poly
		f.Area = math.Abs(planar.Area(poly))
	} else {
		f.Kind = geomodel.KindLine
		f.Geometry = ls
	}
	l.store.Insert(f)
}

func (l *osmLoader) parseRelation(r *osm.Relation) {
	name := r.Tags.Find("name")
	if name == "" {
		return
	}
	if typ := r.Tags.Find("type"); typ != "multipolygon" && typ != "boundary" {
		return
	}

	mp, err := l.buildPolygon(r.Members)
	if err != nil {
		l.log.Debug("error building polygon", "relation", r.ID, "error", err)
		return
	}
	l.store.Insert(&geomodel.Feature{
		ID:       RelationIDOffset + int64(r.ID),
		Kind:     geomodel.KindPolygon,
		Name:     name,
		Tags:     r.Tags.Map(),
		Geometry: mp,
		Area:     math.Abs(planar.Area(mp)),
	})
}

func isArea(tags osm.Tags) bool {
	switch tags.Find("area") {
	case "yes":
		return true
	case "no":
		return false
	}
	for _, k := range areaKeys {
		if tags.HasTag(k) {
			return true
		}
	}
	return false
}

// makeLineString returns the projected way geometry, skipping nodes that can't be resolved.
func (l *osmLoader) makeLineString(nodes osm.WayNodes) orb.LineString {
	ls := make(orb.LineString, 0, len(nodes))
	for _, node := range nodes {
		lon, lat := node.Lon, node.Lat
		if lat == 0 && lon == 0 {
			p, err := l.db.GetNode(node.ID)
			if err != nil {
				l.log.Debug("failed to get node", "node", node.ID, "error", err)
				continue
			}
			lon, lat = p.Lon, p.Lat
		}
		if lat == 0 && lon == 0 {
			continue
		}
		ls = append(ls, project.WGS84.ToMercator(orb.Point{lon, lat}))
	}
	return ls
}

func (l *osmLoader) buildPolygon(members osm.Members) (orb.MultiPolygon, error) {
	var outer, inner []geometry.Segment
	outerCount := 0

	for i, m := range members {
		if m.Type != osm.TypeWay || (m.Role != "inner" && m.Role != "outer") {
			continue
		}
		if m.Role == "outer" {
			outerCount++
		}

		way, err := l.db.GetWay(osm.WayID(m.Ref))
		if err != nil || len(way.Nodes) == 0 {
			continue
		}

		seg := geometry.Segment{
			Index:       i,
			Orientation: m.Orientation,
			Line:        l.makeLineString(way.Nodes),
		}
		if m.Role == "outer" {
			outer = append(outer, seg)
		} else {
			inner = append(inner, seg)
		}
	}

	return geometry.AssemblePolygon(outer, inner, outerCount)
}
