package procsampler

import "time"

const (
	DefaultMissingWarnInterval = time.Minute
)

func defaultOptions() *Options {
	return &Options{
		Table:               SystemTable{},
		MissingWarnInterval: DefaultMissingWarnInterval,
	}
}

// Options configures a Sampler.
type Options struct {
	Table               ProcessTable
	MissingWarnInterval time.Duration
}

type Option func(*Options)

// WithTable replaces the host process table, mostly for tests.
func WithTable(t ProcessTable) Option {
	return func(opts *Options) {
		opts.Table = t
	}
}

// WithMissingWarnInterval sets how often a tracked name without any running
// process is reported. Zero reports it on every call.
func WithMissingWarnInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.MissingWarnInterval = d
	}
}
