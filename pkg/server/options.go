package server

func defaultOptions() *Options {
	return &Options{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

type Options struct {
	Host string
	Port int
}

type Option func(*Options)

func WithHost(s string) Option {
	return func(opts *Options) {
		opts.Host = s
	}
}

func WithPort(v int) Option {
	return func(opts *Options) {
		opts.Port = v
	}
}
