package service

import "time"

// Option configures a service.
type Option func(*options)

type options struct {
	timeFunc func() time.Time
}

// WithTimeFunc overrides the clock used for "now" and "today".
func WithTimeFunc(fn func() time.Time) Option {
	return func(o *options) {
		o.timeFunc = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{timeFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
