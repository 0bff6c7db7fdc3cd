package memory

import (
	"context"
	"time"

	"github.com/w-h-a/recall/embedder"
	"github.com/w-h-a/recall/relationship"
	"github.com/w-h-a/recall/store"
)

type Option func(*Options)

type Options struct {
	Embedder       embedder.Embedder
	Store          store.Store
	Ledger         relationship.Ledger
	Weights        Weights
	Decay          Decay
	Counts         Counts
	ScoreThreshold float32
	Context        context.Context
}

type Weights struct {
	Similarity float64
	Importance float64
	Recency    float64
}

type Decay struct {
	RecencyWindow        time.Duration
	PenaltyAge           time.Duration
	Penalty              float64
	PenaltyMinImportance int
	PenaltyMaxImportance int
}

type Counts struct {
	UserFacts  int
	ServerLore int
}

func WithEmbedder(e embedder.Embedder) Option {
	return func(o *Options) {
		o.Embedder = e
	}
}

func WithStore(s store.Store) Option {
	return func(o *Options) {
		o.Store = s
	}
}

func WithLedger(l relationship.Ledger) Option {
	return func(o *Options) {
		o.Ledger = l
	}
}

func WithWeights(weights Weights) Option {
	return func(o *Options) {
		o.Weights = weights
	}
}

func WithDecay(decay Decay) Option {
	return func(o *Options) {
		o.Decay = decay
	}
}

func WithCounts(counts Counts) Option {
	return func(o *Options) {
		o.Counts = counts
	}
}

func WithScoreThreshold(threshold float32) Option {
	return func(o *Options) {
		o.ScoreThreshold = threshold
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Weights: Weights{
			Similarity: 0.55, // semantic match dominates
			Importance: 0.25,
			Recency:    0.20,
		},
		Decay: Decay{
			RecencyWindow:        30 * 24 * time.Hour,
			PenaltyAge:           3 * 24 * time.Hour,
			Penalty:              0.1,
			PenaltyMinImportance: 5,
			PenaltyMaxImportance: 6,
		},
		Counts: Counts{
			UserFacts:  5,
			ServerLore: 5,
		},
		ScoreThreshold: 0.3,
		Context:        context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
