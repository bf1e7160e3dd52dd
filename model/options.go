package model

import "go.uber.org/zap"

// Option configures a Unit or Suite.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	handlers    []Handler
	concurrency int
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func (o options) handler() Handler {
	switch len(o.handlers) {
	case 0:
		return nil
	case 1:
		return o.handlers[0]
	default:
		return NewMultiHandler(o.handlers...)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHandler adds a run observer. It may be given more than once.
func WithHandler(h Handler) Option {
	return func(o *options) {
		if h != nil {
			o.handlers = append(o.handlers, h)
		}
	}
}

// WithConcurrency caps how many units a suite runs at once.
// Zero or less means no limit.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}
