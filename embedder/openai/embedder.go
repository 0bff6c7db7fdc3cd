package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/w-h-a/recall/embedder"
)

type openAIEmbedder struct {
	options embedder.Options
	client  *openai.Client
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string, opts ...embedder.EmbedOption) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text}, opts...)
	if err != nil {
		return nil, err
	}

	return vectors[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, texts []string, opts ...embedder.EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.options.Model),
	})
	if err != nil {
		return nil, err
	}

	if len(rsp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings from OpenAI but got %d", len(texts), len(rsp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, datum := range rsp.Data {
		if len(datum.Embedding) == 0 {
			return nil, errors.New("no response from OpenAI")
		}
		vectors[datum.Index] = datum.Embedding
	}

	return vectors, nil
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	e := &openAIEmbedder{
		options: options,
	}

	client := openai.NewClient(options.ApiKey)

	e.client = client

	return e
}
