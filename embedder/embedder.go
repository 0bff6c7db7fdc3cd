package embedder

import "context"

type Embedder interface {
	Embed(ctx context.Context, text string, opts ...EmbedOption) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, opts ...EmbedOption) ([][]float32, error)
}
