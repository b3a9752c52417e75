package classifier

import "log/slog"

type options struct {
	logger *slog.Logger
}

type Option interface {
	apply(*options)
}

type loggerOption struct {
	log *slog.Logger
}

func (o loggerOption) apply(opts *options) {
	opts.logger = o.log
}

// Default: slog.Default()
func WithLogger(log *slog.Logger) Option {
	return loggerOption{log: log}
}

func loadOptions(opts ...Option) options {
	o := options{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}
