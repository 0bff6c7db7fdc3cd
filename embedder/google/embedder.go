package google

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"github.com/w-h-a/recall/embedder"
	genaiopt "google.golang.org/api/option"
)

type googleEmbedder struct {
	options embedder.Options
	client  *genai.Client
}

func (e *googleEmbedder) Embed(ctx context.Context, text string, opts ...embedder.EmbedOption) ([]float32, error) {
	model := e.model(opts...)

	rsp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, errors.New("no response from Google")
	}

	return rsp.Embedding.Values, nil
}

func (e *googleEmbedder) EmbedBatch(ctx context.Context, texts []string, opts ...embedder.EmbedOption) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	model := e.model(opts...)

	batch := model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	rsp, err := model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}

	if rsp == nil || len(rsp.Embeddings) != len(texts) {
		return nil, errors.New("no response from Google")
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range rsp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, errors.New("no response from Google")
		}
		vectors[i] = embedding.Values
	}

	return vectors, nil
}

func (e *googleEmbedder) model(opts ...embedder.EmbedOption) *genai.EmbeddingModel {
	options := embedder.NewEmbedOptions(opts...)

	model := e.client.EmbeddingModel(e.options.Model)

	switch options.Mode {
	case embedder.ModeQuery:
		model.TaskType = genai.TaskTypeRetrievalQuery
	default:
		model.TaskType = genai.TaskTypeRetrievalDocument
	}

	return model
}

func NewEmbedder(opts ...embedder.Option) embedder.Embedder {
	options := embedder.NewOptions(opts...)

	e := &googleEmbedder{
		options: options,
	}

	client, err := genai.NewClient(
		context.Background(),
		genaiopt.WithAPIKey(options.ApiKey),
	)
	if err != nil {
		panic(err)
	}

	e.client = client

	return e
}
