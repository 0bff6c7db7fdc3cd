package embedder

import "context"

type Option func(*Options)

type Options struct {
	ApiKey  string
	Model   string
	Context context.Context
}

func WithApiKey(apiKey string) Option {
	return func(o *Options) {
		o.ApiKey = apiKey
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
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

// Mode tells the provider whether the text is being embedded for storage or
// as a search query. It affects retrieval quality only, never vector shape.
type Mode string

const (
	ModeDocument Mode = "document"
	ModeQuery    Mode = "query"
)

type EmbedOption func(*EmbedOptions)

type EmbedOptions struct {
	Mode    Mode
	Context context.Context
}

func WithMode(mode Mode) EmbedOption {
	return func(o *EmbedOptions) {
		o.Mode = mode
	}
}

func NewEmbedOptions(opts ...EmbedOption) EmbedOptions {
	options := EmbedOptions{
		Mode:    ModeDocument,
		Context: context.Background(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
