package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/royalcat/osmgaz/cachesaver"
	"github.com/royalcat/osmgaz/classifier"
	"github.com/royalcat/osmgaz/gazetteer"
	"github.com/royalcat/osmgaz/internal/stats"
	"github.com/royalcat/osmgaz/preprocess"
	"github.com/royalcat/osmgaz/server"
	"github.com/royalcat/osmgaz/spatial"
	"github.com/urfave/cli/v3"
)

func resolve(ctx *cli.Context) error {
	p, err := parseLonLat(ctx.String("lon"), ctx.String("lat"))
	if err != nil {
		return err
	}

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var extra []gazetteer.Option
	if ctx.Bool("progress") {
		extra = append(extra, gazetteer.WithProgress(func(s gazetteer.Stage) {
			fmt.Fprintln(os.Stderr, "stage:", s)
		}))
	}
	if err := e.openStore(ctx, extra...); err != nil {
		return err
	}

	res, err := e.gazetteer.Resolve(ctx.Context, p)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func serve(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.openStore(ctx); err != nil {
		return err
	}

	s, err := server.New(ctx.Context, e.gazetteer, server.Config{
		Address: e.cfg.Listen,
		Threads: e.cfg.Threads,
		Timeout: 30 * time.Second,
	}, e.log)
	if err != nil {
		return err
	}
	return s.Run(ctx.Context)
}

func preprocessCmd(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	log := e.log.With("threads", e.cfg.Threads)

	if pprofListen := ctx.String("pprof.listen"); pprofListen != "" {
		go func() {
			log.Info("Starting pprof server")
			err := http.ListenAndServe(pprofListen, nil)
			if err != nil {
				log.Error("Error starting pprof server", "error", err)
			}
		}()
	}

	if ctx.Bool("pprof.profile") {
		f, err := os.OpenFile("profile.cpu.pprof", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("error creating pprof file: %w", err)
		}
		err = pprof.StartCPUProfile(f)
		if err != nil {
			return fmt.Errorf("error starting pprof: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var collector *stats.Collector
	if statsFile := ctx.String("stats"); statsFile != "" {
		collector, err = stats.NewCollector(time.Second)
		if err != nil {
			return err
		}
		collector.Start()
		defer func() {
			report := collector.Stop()
			if err := report.SaveToFile(statsFile); err != nil {
				log.Error("failed to write stats", "error", err)
			}
		}()
	}
	count := func(name string, n int64) {
		if collector != nil {
			collector.Count(name, n)
		}
	}

	if err := e.openStore(ctx); err != nil {
		return err
	}

	pre := preprocess.New(e.store, e.classifier, e.gazetteer,
		preprocess.WithLogger(log),
		preprocess.WithThreads(e.cfg.Threads),
	)

	cs, err := pre.Classify(ctx.Context, ctx.Bool("full"))
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}
	count("scanned", cs.Scanned)
	count("classified", cs.Classified)
	count("unchanged", cs.Unchanged)
	count("skipped", cs.Skipped)
	log.Info("classification complete",
		"scanned", humanize.Comma(cs.Scanned),
		"classified", humanize.Comma(cs.Classified),
		"unchanged", humanize.Comma(cs.Unchanged),
		"skipped", humanize.Comma(cs.Skipped),
	)

	if unknownFile := ctx.String("unknown"); unknownFile != "" {
		f, err := os.Create(unknownFile)
		if err != nil {
			return fmt.Errorf("failed to create unknown tags file: %w", err)
		}
		w := bufio.NewWriter(f)
		n, err := pre.WriteUnknown(w)
		if err == nil {
			err = w.Flush()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write unknown tags: %w", err)
		}
		count("unknown", int64(n))
		log.Info("unknown tag sets written", "file", unknownFile, "count", n)
	}

	if !ctx.Bool("skip-salience") {
		scored, err := pre.Salience(ctx.Context)
		if err != nil {
			return fmt.Errorf("salience precomputation failed: %w", err)
		}
		count("scored", scored)
		log.Info("salience precomputed", "features", humanize.Comma(scored))
	}

	if ctx.Bool("pprof.heap") {
		if err := writeHeapProfile("profile"); err != nil {
			return fmt.Errorf("error writing heap profile: %w", err)
		}
	}
	return nil
}

func writeHeapProfile(name string) error {
	f, err := os.Create(name + ".heap.prof")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	return pprof.WriteHeapProfile(f)
}

func warmup(ctx *cli.Context) error {
	area, err := parseArea(ctx.String("area"), ctx.String("bbox"))
	if err != nil {
		return err
	}
	distance, err := strconv.ParseFloat(ctx.String("distance"), 64)
	if err != nil || distance <= 0 {
		return fmt.Errorf("invalid distance %q", ctx.String("distance"))
	}

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.openStore(ctx); err != nil {
		return err
	}

	points := preprocess.SamplePoints(area, distance, int64(ctx.Int("seed")))
	e.log.Info("sampled warm-up points", "points", len(points), "distance", distance)

	ws, err := preprocess.Warmup(ctx.Context, e.gazetteer, points, e.cfg.Threads, ctx.Bool("skip-errors"), e.log)
	if err != nil {
		return err
	}
	e.log.Info("warm-up complete", "resolved", ws.Resolved, "failed", ws.Failed)
	return nil
}

func migrate(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("a database url is required")
	}
	pool, err := spatial.NewPool(ctx.Context, cfg.DatabaseURL, 2)
	if err != nil {
		return err
	}
	defer pool.Close()
	return spatial.Migrate(ctx.Context, pool, slog.Default())
}

func rules(ctx *cli.Context) error {
	var (
		rs  classifier.RuleSet
		err error
	)
	if path := ctx.String("ontology"); path != "" {
		rs, err = classifier.LoadRuleSetFile(path, nil)
	} else {
		rs, err = classifier.DefaultRuleSet(nil)
	}
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(w)
	for _, r := range rs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func snapshotExport(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Create(ctx.String("output"))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	n, err := cachesaver.Save(ctx.Context, e.results, cachesaver.Metadata{
		Version:     1,
		Source:      ctx.String("source"),
		DateCreated: time.Now(),
	}, w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	e.log.Info("snapshot written", "file", ctx.String("output"), "entries", n)
	return nil
}

func snapshotImport(ctx *cli.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := os.Open(ctx.String("snapshot"))
	if err != nil {
		return err
	}
	defer f.Close()

	meta, n, err := cachesaver.Load(ctx.Context, bufio.NewReader(f), e.results, e.log)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	e.log.Info("snapshot loaded",
		"entries", n,
		"source", meta.Source,
		"created", meta.DateCreated,
	)
	return nil
}
