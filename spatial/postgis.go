package spatial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/royalcat/osmgaz/geomodel"
)

// SRID of the osm2pgsql tables.
const SRID = 3857

var tables = map[geomodel.Kind]string{
	geomodel.KindPoint:   "planet_osm_point",
	geomodel.KindLine:    "planet_osm_line",
	geomodel.KindPolygon: "planet_osm_polygon",
}

// PostGIS reads the planet_osm_* tables written by osm2pgsql.
type PostGIS struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ Store = (*PostGIS)(nil)

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewPostGIS(pool *pgxpool.Pool, log *slog.Logger) *PostGIS {
	if log == nil {
		log = slog.Default()
	}
	return &PostGIS{pool: pool, log: log.With("component", "postgis")}
}

func selectColumns(kind geomodel.Kind) string {
	area := "0::float8"
	if kind == geomodel.KindPolygon {
		area = "coalesce(way_area, ST_Area(way))::float8"
	}
	return "gid, name, " + area + ", ST_AsBinary(way), coalesce(hstore_to_json(tags), '{}'::json), classification"
}

func (s *PostGIS) query(ctx context.Context, kind geomodel.Kind, where string, args ...any) ([]*geomodel.Feature, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE name <> '' AND %s ORDER BY gid", selectColumns(kind), tables[kind], where)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tables[kind], err)
	}
	defer rows.Close()

	var out []*geomodel.Feature
	for rows.Next() {
		f, err := scanFeature(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", tables[kind], err)
	}
	return out, nil
}

func scanFeature(rows pgx.Rows, kind geomodel.Kind) (*geomodel.Feature, error) {
	var (
		f              = &geomodel.Feature{Kind: kind}
		way            []byte
		classification *string
	)
	if err := rows.Scan(&f.ID, &f.Name, &f.Area, &way, &f.Tags, &classification); err != nil {
		return nil, fmt.Errorf("scan %s row: %w", kind, err)
	}
	g, err := wkb.Unmarshal(way)
	if err != nil {
		return nil, fmt.Errorf("decode geometry of %s %d: %w", kind, f.ID, err)
	}
	f.Geometry = g
	if classification != nil {
		f.Classification = geomodel.ParseTypePath(*classification)
	}
	return f, nil
}

func geomArg(g orb.Geometry) ([]byte, error) {
	b, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}
	return b, nil
}

func (s *PostGIS) Containing(ctx context.Context, p orb.Point) ([]*geomodel.Feature, error) {
	return s.query(ctx, geomodel.KindPolygon,
		fmt.Sprintf("ST_Contains(way, ST_SetSRID(ST_MakePoint($1, $2), %d))", SRID),
		p[0], p[1])
}

func (s *PostGIS) Near(ctx context.Context, kind geomodel.Kind, g orb.Geometry, dist float64) ([]*geomodel.Feature, error) {
	geom, err := geomArg(g)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, kind,
		fmt.Sprintf("ST_DWithin(way, ST_GeomFromWKB($1, %d), $2)", SRID),
		geom, dist)
}

func (s *PostGIS) NamedIntersecting(ctx context.Context, name string, g orb.Geometry) ([]*geomodel.Feature, error) {
	geom, err := geomArg(g)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, geomodel.KindPolygon,
		fmt.Sprintf("name = $1 AND ST_Intersects(way, ST_GeomFromWKB($2, %d))", SRID),
		name, geom)
}

// typeCondition matches a persisted path and every path below it.
func typeCondition(arg int) string {
	return fmt.Sprintf("(classification = $%[1]d OR starts_with(classification, $%[1]d || '%[2]s'))", arg, geomodel.TypePathSeparator)
}

func (s *PostGIS) Count(ctx context.Context, q CountQuery) (int, error) {
	geom, err := geomArg(q.Near)
	if err != nil {
		return 0, err
	}

	conds := []string{fmt.Sprintf("ST_DWithin(way, ST_GeomFromWKB($1, %d), $2)", SRID)}
	args := []any{geom, q.Distance}
	if q.Name != "" {
		args = append(args, q.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if len(q.Type) > 0 {
		args = append(args, q.Type.String())
		conds = append(conds, typeCondition(len(args)))
	}
	if len(q.ExcludeType) > 0 {
		args = append(args, q.ExcludeType.String())
		conds = append(conds, "NOT "+typeCondition(len(args)))
	}
	where := strings.Join(conds, " AND ")

	total := 0
	for _, kind := range geomodel.Kinds {
		var n int
		sql := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s", tables[kind], where)
		if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", tables[kind], err)
		}
		total += n
	}
	return total, nil
}

func (s *PostGIS) SetClassification(ctx context.Context, kind geomodel.Kind, id int64, path geomodel.TypePath) error {
	table, ok := tables[kind]
	if !ok {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("UPDATE %s SET classification = $1 WHERE gid = $2", table), path.String(), id)
	if err != nil {
		return fmt.Errorf("update %s classification: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostGIS) Scan(ctx context.Context, kind geomodel.Kind, opts ScanOptions, fn func([]*geomodel.Feature) error) error {
	where := "gid > $1"
	if opts.Unclassified {
		where += " AND classification IS NULL"
	}
	where += " ORDER BY gid LIMIT $2"

	var after int64 = -1 << 63
	for {
		// query appends its own ORDER BY, keep the limit inside a subselect
		batch, err := s.query(ctx, kind,
			fmt.Sprintf("gid IN (SELECT gid FROM %s WHERE name <> '' AND %s)", tables[kind], where),
			after, opts.batchSize())
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		after = batch[len(batch)-1].ID
		s.log.Debug("scanned batch", "kind", kind.String(), "size", len(batch), "last", after)
		if err := fn(batch); err != nil {
			return err
		}
	}
}
