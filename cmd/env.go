package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/config"
	"github.com/royalcat/osmgaz/gazetteer"
	"github.com/royalcat/osmgaz/internal/telemetry"
	"github.com/royalcat/osmgaz/kv"
	"github.com/royalcat/osmgaz/resultcache"
	"github.com/royalcat/osmgaz/salience"
	"github.com/royalcat/osmgaz/spatial"
	"github.com/royalcat/osmpbfdb"
	"github.com/urfave/cli/v3"
	"golang.org/x/exp/mmap"
)

const appName = "osmgaz"

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("env-file"))
	if err != nil {
		return config.Config{}, err
	}
	if v := ctx.String("database-url"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := ctx.String("redis-addr"); v != "" {
		cfg.RedisAddr = v
	}
	if v := ctx.String("ontology"); v != "" {
		cfg.Ontology = v
	}
	if v := ctx.String("listen"); v != "" {
		cfg.Listen = v
	}
	if v := ctx.Int("threads"); v > 0 {
		cfg.Threads = v
	}
	return cfg, nil
}

// env holds everything a command needs, Close releases it in reverse order.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	closers []func()

	pool       *pgxpool.Pool
	store      spatial.Store
	classifier *classifier.Classifier
	results    *resultcache.Cache
	memos      gazetteer.Memos
	gazetteer  *gazetteer.Gazetteer
}

func (e *env) onClose(fn func()) {
	e.closers = append(e.closers, fn)
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// newEnv sets up telemetry and caches. Commands that need features call openStore.
func newEnv(ctx *cli.Context) (*env, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.Setup(ctx.Context, appName, cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	e := &env{
		cfg: cfg,
		log: slog.Default(),
	}
	e.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Flush(shutdownCtx); err != nil {
			e.log.Warn("failed to flush telemetry", "error", err)
		}
		tel.Shutdown(shutdownCtx)
	})

	if cfg.DatabaseURL != "" {
		e.pool, err = spatial.NewPool(ctx.Context, cfg.DatabaseURL, int32(cfg.Threads*2))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		e.onClose(e.pool.Close)
	}

	if err := e.openCaches(ctx.Context); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) openCaches(ctx context.Context) error {
	var store kv.KVS[string, []byte]

	switch {
	case e.cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{
			Addr:     e.cfg.RedisAddr,
			Password: e.cfg.RedisPassword,
			DB:       e.cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		e.onClose(func() { client.Close() })

		store = kv.NewRedis[[]byte](client, "osmgaz:result:", kv.BytesCodec{})
		e.memos = gazetteer.Memos{
			Name:       kv.NewRedis[float64](client, "osmgaz:salience:name:", kv.Float64Codec{}),
			Type:       kv.NewRedis[float64](client, "osmgaz:salience:type:", kv.Float64Codec{}),
			Popularity: kv.NewRedis[float64](client, "osmgaz:salience:popularity:", kv.Float64Codec{}),
		}
		e.log.Info("using redis caches", "address", e.cfg.RedisAddr)
	case e.pool != nil:
		store = kv.NewPostgres[[]byte](e.pool, "result", kv.BytesCodec{})
		e.memos = gazetteer.Memos{
			Name:       kv.NewPostgres[float64](e.pool, "salience:name", kv.Float64Codec{}),
			Type:       kv.NewPostgres[float64](e.pool, "salience:type", kv.Float64Codec{}),
			Popularity: kv.NewPostgres[float64](e.pool, "salience:popularity", kv.Float64Codec{}),
		}
		e.log.Info("using postgres caches")
	default:
		store = kv.NewXMap[string, []byte]()
		e.log.Info("using in-process caches, results are lost on exit")
	}

	results, err := resultcache.New(store, e.log)
	if err != nil {
		return err
	}
	e.onClose(func() { results.Close() })
	e.results = results
	return nil
}

// openStore loads --input into memory when given, otherwise uses PostGIS.
func (e *env) openStore(ctx *cli.Context, extra ...gazetteer.Option) error {
	input := ctx.String("input")
	switch {
	case input != "":
		file, err := mmap.Open(input)
		if err != nil {
			return err
		}
		e.onClose(func() { file.Close() })

		osmdb, err := osmpbfdb.OpenMultiDB([]io.ReaderAt{file}, osmpbfdb.Config{})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", input, err)
		}

		size := int64(file.Len())
		store, err := spatial.LoadOSM(ctx.Context, io.NewSectionReader(file, 0, size), size, osmdb, spatial.LoadOptions{
			Threads: e.cfg.Threads,
			Logger:  e.log,
		})
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", input, err)
		}
		e.store = store
	case e.pool != nil:
		e.store = spatial.NewPostGIS(e.pool, e.log)
	default:
		return errors.New("either --input or a database url is required")
	}

	var (
		rules classifier.RuleSet
		err   error
	)
	if e.cfg.Ontology != "" {
		rules, err = classifier.LoadRuleSetFile(e.cfg.Ontology, e.log)
	} else {
		rules, err = classifier.DefaultRuleSet(e.log)
	}
	if err != nil {
		return fmt.Errorf("failed to load ontology: %w", err)
	}
	e.classifier = classifier.New(rules, classifier.WithLogger(e.log))

	opts := []gazetteer.Option{
		gazetteer.WithLogger(e.log),
		gazetteer.WithCache(e.results),
		gazetteer.WithMemos(e.memos),
	}
	if e.cfg.PopularityKey != "" {
		flickrOpts := []salience.FlickrOption{salience.WithRateLimit(e.cfg.PopularityRPS)}
		if e.cfg.PopularityURL != "" {
			flickrOpts = append(flickrOpts, salience.WithBaseURL(e.cfg.PopularityURL))
		}
		opts = append(opts, gazetteer.WithPopularity(
			salience.NewFlickrClient(e.cfg.PopularityKey, flickrOpts...),
			e.cfg.PopularityTimeout,
		))
	} else {
		e.log.Warn("no popularity api key configured, popularity salience disabled")
	}

	e.gazetteer = gazetteer.New(e.store, e.classifier, append(opts, extra...)...)
	return nil
}
