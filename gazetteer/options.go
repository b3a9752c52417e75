package gazetteer

import (
	"log/slog"
	"time"

	"github.com/royalcat/osmgaz/filter"
	"github.com/royalcat/osmgaz/geomodel"
	"github.com/royalcat/osmgaz/kv"
	"github.com/royalcat/osmgaz/salience"
)

// Memos are the persistent stores behind the salience calculators.
// Nil members fall back to in-process maps.
type Memos struct {
	Name       kv.KVS[string, float64]
	Type       kv.KVS[string, float64]
	Popularity kv.KVS[string, float64]
}

type options struct {
	logger            *slog.Logger
	progress          func(Stage)
	cache             ResultCache
	memos             Memos
	popularity        salience.PopularitySource
	popularityTimeout time.Duration
	proximalLimits    map[geomodel.UrbanRural]filter.ProximalLimits
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

// Default: slog.Default()
func WithLogger(log *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = log })
}

// WithProgress registers a callback told about each pipeline stage as it starts.
func WithProgress(fn func(Stage)) Option {
	return optionFunc(func(o *options) { o.progress = fn })
}

func WithCache(c ResultCache) Option {
	return optionFunc(func(o *options) { o.cache = c })
}

func WithMemos(m Memos) Option {
	return optionFunc(func(o *options) { o.memos = m })
}

// Without a popularity source every popularity score is zero.
func WithPopularity(source salience.PopularitySource, timeout time.Duration) Option {
	return optionFunc(func(o *options) {
		o.popularity = source
		o.popularityTimeout = timeout
	})
}

// Default: filter.DefaultProximalLimits
func WithProximalLimits(limits map[geomodel.UrbanRural]filter.ProximalLimits) Option {
	return optionFunc(func(o *options) { o.proximalLimits = limits })
}

func loadOptions(opts ...Option) options {
	o := options{
		logger:            slog.Default(),
		popularityTimeout: salience.DefaultPopularityTimeout,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
