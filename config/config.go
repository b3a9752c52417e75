package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "OSMGAZ_"

type Config struct {
	Threads int

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Ontology is a path to a custom ontology document, empty for the embedded one.
	Ontology string

	PopularityURL     string
	PopularityKey     string
	PopularityTimeout time.Duration
	PopularityRPS     float64

	OtelEndpoint string
	Listen       string
}

func ConfigDefault() Config {
	return Config{
		Threads:           runtime.GOMAXPROCS(-1),
		RedisDB:           0,
		PopularityTimeout: 5 * time.Second,
		PopularityRPS:     5,
		Listen:            ":8080",
	}
}

// Load reads envFiles (".env" when none given, missing files are ignored)
// and overlays OSMGAZ_* variables on the defaults.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config using lookup for OSMGAZ_* variables.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := ConfigDefault()
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := get("REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	if v, ok := get("REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("%sREDIS_DB: invalid database number %q", envPrefix, v)
		}
		cfg.RedisDB = n
	}
	if v, ok := get("ONTOLOGY"); ok {
		cfg.Ontology = v
	}
	if v, ok := get("POPULARITY_URL"); ok {
		cfg.PopularityURL = v
	}
	if v, ok := get("POPULARITY_KEY"); ok {
		cfg.PopularityKey = v
	}
	if v, ok := get("POPULARITY_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%sPOPULARITY_TIMEOUT: invalid duration %q", envPrefix, v)
		}
		cfg.PopularityTimeout = d
	}
	if v, ok := get("POPULARITY_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			return Config{}, fmt.Errorf("%sPOPULARITY_RPS: invalid rate %q", envPrefix, v)
		}
		cfg.PopularityRPS = rps
	}
	if v, ok := get("OTEL_ENDPOINT"); ok {
		cfg.OtelEndpoint = v
	}
	if v, ok := get("LISTEN"); ok {
		cfg.Listen = v
	}
	if v, ok := get("THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%sTHREADS: invalid thread count %q", envPrefix, v)
		}
		cfg.Threads = n
	}

	return cfg, nil
}
