package monitor

import (
	"context"

	"github.com/voluzi/memwatch/pkg/procsampler"
)

// Sampler returns the summed RSS per tracked name for one tick.
type Sampler interface {
	Sample(ctx context.Context, names []string) (map[string]uint64, error)
}

func defaultOptions() *Options {
	return &Options{
		Clock: realClock{},
	}
}

type Options struct {
	Sampler Sampler
	Clock   Clock
}

type Option func(*Options)

func WithSampler(s Sampler) Option {
	return func(opts *Options) {
		opts.Sampler = s
	}
}

func WithClock(c Clock) Option {
	return func(opts *Options) {
		opts.Clock = c
	}
}

func (o *Options) sampler() Sampler {
	if o.Sampler != nil {
		return o.Sampler
	}
	return procsampler.New()
}
