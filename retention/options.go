package retention

import (
	"context"
	"time"

	"github.com/w-h-a/recall/store"
)

type Option func(*Options)

type Options struct {
	Store    store.Store
	Windows  Windows
	Interval time.Duration
	PageSize int
	Context  context.Context
}

// Windows are the per-tier retention spans. Importance 10 has no window; it
// is permanent.
type Windows struct {
	Low    time.Duration // importance 1-4
	Medium time.Duration // importance 5-7
	High   time.Duration // importance 8-9
}

func WithStore(s store.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

func WithWindows(windows Windows) Option {
	return func(o *Options) {
		o.Windows = windows
	}
}

func WithInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.Interval = interval
	}
}

func WithPageSize(size int) Option {
	return func(o *Options) {
		o.PageSize = size
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Windows: Windows{
			Low:    7 * 24 * time.Hour,
			Medium: 30 * 24 * time.Hour,
			High:   90 * 24 * time.Hour,
		},
		Interval: 6 * time.Hour,
		PageSize: 200,
		Context:  context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
