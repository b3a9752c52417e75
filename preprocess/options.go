package preprocess

import (
	"log/slog"
	"runtime"
)

type options struct {
	logger   *slog.Logger
	threads  int
	progress bool
}

type Option interface {
	apply(*options)
}

type loggerOption struct{ log *slog.Logger }

func (o loggerOption) apply(opts *options) { opts.logger = o.log }

// Default: slog.Default()
func WithLogger(log *slog.Logger) Option {
	return loggerOption{log: log}
}

type threadsOption int

func (o threadsOption) apply(opts *options) { opts.threads = int(o) }

// Default: GOMAXPROCS
func WithThreads(n int) Option {
	return threadsOption(n)
}

type progressOption bool

func (o progressOption) apply(opts *options) { opts.progress = bool(o) }

// Default: true
func WithProgressBars(enabled bool) Option {
	return progressOption(enabled)
}

func loadOptions(opts ...Option) options {
	o := options{
		logger:   slog.Default(),
		threads:  runtime.GOMAXPROCS(0),
		progress: true,
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.threads <= 0 {
		o.threads = 1
	}
	return o
}
