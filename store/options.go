package store

import (
	"context"
	"time"
)

type Option func(*Options)

type Options struct {
	Location   string
	ApiKey     string
	Collection string
	VectorSize int
	Distance   string
	Context    context.Context
}

func WithLocation(loc string) Option {
	return func(o *Options) {
		o.Location = loc
	}
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithCollection(collection string) Option {
	return func(o *Options) {
		o.Collection = collection
	}
}

func WithVectorSize(size int) Option {
	return func(o *Options) {
		o.VectorSize = size
	}
}

func WithDistance(distance string) Option {
	return func(o *Options) {
		o.Distance = distance
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type SearchOption func(*SearchOptions)

type SearchOptions struct {
	Limit          int
	ScoreThreshold float32
	Type           string
	SubjectUserId  string
	MinImportance  int
	Context        context.Context
}

func WithSearchLimit(limit int) SearchOption {
	return func(o *SearchOptions) {
		o.Limit = limit
	}
}

func WithScoreThreshold(threshold float32) SearchOption {
	return func(o *SearchOptions) {
		o.ScoreThreshold = threshold
	}
}

func WithSearchType(memoryType string) SearchOption {
	return func(o *SearchOptions) {
		o.Type = memoryType
	}
}

func WithSearchSubjectUserId(userId string) SearchOption {
	return func(o *SearchOptions) {
		o.SubjectUserId = userId
	}
}

func WithSearchMinImportance(importance int) SearchOption {
	return func(o *SearchOptions) {
		o.MinImportance = importance
	}
}

func NewSearchOptions(opts ...SearchOption) SearchOptions {
	options := SearchOptions{
		Limit:   10,
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

type ScrollOption func(*ScrollOptions)

type ScrollOptions struct {
	Limit         int
	Cursor        string
	SubjectUserId string
	MinImportance int
	Since         time.Time
	Context       context.Context
}

func WithScrollLimit(limit int) ScrollOption {
	return func(o *ScrollOptions) {
		o.Limit = limit
	}
}

func WithScrollCursor(cursor string) ScrollOption {
	return func(o *ScrollOptions) {
		o.Cursor = cursor
	}
}

func WithScrollSubjectUserId(userId string) ScrollOption {
	return func(o *ScrollOptions) {
		o.SubjectUserId = userId
	}
}

func WithScrollMinImportance(importance int) ScrollOption {
	return func(o *ScrollOptions) {
		o.MinImportance = importance
	}
}

func WithScrollSince(since time.Time) ScrollOption {
	return func(o *ScrollOptions) {
		o.Since = since
	}
}

func NewScrollOptions(opts ...ScrollOption) ScrollOptions {
	options := ScrollOptions{
		Limit:   100,
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
