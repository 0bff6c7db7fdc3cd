package buffer

import (
	"context"
	"time"
)

type OnFlush func(ctx context.Context, events []Event) error

type Option func(*Options)

type Options struct {
	SilenceWindow   time.Duration
	VolumeThreshold int
	TokenCap        int
	OnFlush         OnFlush
	Context         context.Context
}

func WithSilenceWindow(window time.Duration) Option {
	return func(o *Options) {
		o.SilenceWindow = window
	}
}

func WithVolumeThreshold(threshold int) Option {
	return func(o *Options) {
		o.VolumeThreshold = threshold
	}
}

func WithTokenCap(cap int) Option {
	return func(o *Options) {
		o.TokenCap = cap
	}
}

func WithOnFlush(onFlush OnFlush) Option {
	return func(o *Options) {
		o.OnFlush = onFlush
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		SilenceWindow:   5 * time.Minute,
		VolumeThreshold: 25,
		TokenCap:        3000,
		Context:         context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
