package resultcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
)

var ErrMiss = errors.New("result cache miss")

var meter = otel.Meter("github.com/royalcat/osmgaz/resultcache")

var (
	hits, _   = meter.Int64Counter("result_cache_hits", metric.WithDescription("result cache lookups served from the store"))
	misses, _ = meter.Int64Counter("result_cache_misses", metric.WithDescription("result cache lookups that fell through to resolution"))
)

// Key formats a WGS84 point the way entries are stored.
func Key(lonlat orb.Point) string {
	return fmt.Sprintf("%.5f,%.5f", lonlat.Lon(), lonlat.Lat())
}

// Cache stores full resolution results as zstd compressed JSON.
type Cache struct {
	kv  kv.KVS[string, []byte]
	enc *zstd.Encoder
	dec *zstd.Decoder
	log *slog.Logger
}

func New(store kv.KVS[string, []byte], log *slog.Logger) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Cache{
		kv:  store,
		enc: enc,
		dec: dec,
		log: log.With("component", "result-cache"),
	}, nil
}

// Load returns ErrMiss for absent and unreadable entries alike.
func (c *Cache) Load(ctx context.Context, lonlat orb.Point) (*geomodel.Result, error) {
	key := Key(lonlat)
	data, ok, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		misses.Add(ctx, 1)
		return nil, ErrMiss
	}

	res, err := c.Decode(data)
	if err != nil {
		misses.Add(ctx, 1)
		c.log.WarnContext(ctx, "corrupt result cache entry", "key", key, "error", err)
		return nil, ErrMiss
	}
	hits.Add(ctx, 1)
	return res, nil
}

func (c *Cache) Save(ctx context.Context, lonlat orb.Point, res *geomodel.Result) error {
	data, err := c.Encode(res)
	if err != nil {
		return err
	}
	key := Key(lonlat)
	if err := c.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Encode normalizes res in place before serializing it.
func (c *Cache) Encode(res *geomodel.Result) ([]byte, error) {
	res.Normalize()
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *Cache) Decode(data []byte) (*geomodel.Result, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress result: %w", err)
	}
	var res geomodel.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &res, nil
}

// Range walks every stored entry, skipping the ones that fail to decode.
func (c *Cache) Range(ctx context.Context, fn func(key string, res *geomodel.Result) bool) error {
	return c.kv.Range(ctx, func(key string, data []byte) bool {
		res, err := c.Decode(data)
		if err != nil {
			c.log.WarnContext(ctx, "skipping corrupt result cache entry", "key", key, "error", err)
			return true
		}
		return fn(key, res)
	})
}

// Put stores an already keyed entry, used when importing snapshots.
func (c *Cache) Put(ctx context.Context, key string, res *geomodel.Result) error {
	data, err := c.Encode(res)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, key, data)
}

func (c *Cache) Close() error {
	c.dec.Close()
	err := c.enc.Close()
	return errors.Join(err, c.kv.Close())
}
