// Package memory is the bank behind extraction and retrieval: it embeds and
// persists extracted memories, and at query time searches, re-ranks, and
// formats the context block for response generation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/recall/embedder"
	"github.com/w-h-a/recall/extractor"
	"github.com/w-h-a/recall/relationship"
	"github.com/w-h-a/recall/store"
)

type Bank struct {
	options Options
}

// Save batch-embeds all memory contents from one extraction cycle in a
// single embedder call, preserving input order, and persists them as one
// upsert batch.
func (b *Bank) Save(ctx context.Context, memories []extractor.Memory) error {
	if len(memories) == 0 {
		return nil
	}

	contents := make([]string, len(memories))
	for i, m := range memories {
		contents[i] = m.Content
	}

	vectors, err := b.options.Embedder.EmbedBatch(ctx, contents, embedder.WithMode(embedder.ModeDocument))
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}

	if len(vectors) != len(memories) {
		return fmt.Errorf("expected %d vectors but got %d", len(memories), len(vectors))
	}

	now := time.Now().UTC()

	records := make([]store.Record, len(memories))
	for i, m := range memories {
		records[i] = store.Record{
			Id:            uuid.New().String(),
			Content:       m.Content,
			Type:          m.Type,
			Importance:    m.Importance,
			SubjectUserId: m.SubjectUserId,
			Tags:          m.Tags,
			Timestamp:     now,
			CreatedAt:     now,
			Embedding:     vectors[i],
		}
	}

	if err := b.options.Store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("persist batch: %w", err)
	}

	return nil
}

// Recall embeds the incoming message once, runs the two over-fetching
// filtered searches, re-ranks the hits, and merges in the relationship
// entry. The result is the formatted context block, or the empty string when
// nothing qualifies.
func (b *Bank) Recall(ctx context.Context, userId string, message string) (string, error) {
	vector, err := b.options.Embedder.Embed(ctx, message, embedder.WithMode(embedder.ModeQuery))
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	now := time.Now().UTC()

	userFacts, err := b.searchAndRank(
		ctx,
		vector,
		now,
		b.options.Counts.UserFacts,
		store.WithSearchType(extractor.TypeUserFact),
		store.WithSearchSubjectUserId(userId),
	)
	if err != nil {
		return "", fmt.Errorf("user fact search: %w", err)
	}

	serverLore, err := b.searchAndRank(
		ctx,
		vector,
		now,
		b.options.Counts.ServerLore,
		store.WithSearchType(extractor.TypeServerLore),
	)
	if err != nil {
		return "", fmt.Errorf("server lore search: %w", err)
	}

	var entry *relationship.Entry
	if b.options.Ledger != nil {
		found, exists, err := b.options.Ledger.Get(ctx, userId)
		if err != nil {
			return "", fmt.Errorf("relationship lookup: %w", err)
		}
		if exists {
			entry = &found
		}
	}

	return FormatContext(entry, userFacts, serverLore, now), nil
}

func (b *Bank) searchAndRank(ctx context.Context, vector []float32, now time.Time, count int, opts ...store.SearchOption) ([]store.Record, error) {
	if count < 1 {
		return nil, nil
	}

	// over-fetch so re-ranking has something to demote
	opts = append(opts,
		store.WithSearchLimit(count*2),
		store.WithScoreThreshold(b.options.ScoreThreshold),
	)

	hits, err := b.options.Store.Search(ctx, vector, opts...)
	if err != nil {
		return nil, err
	}

	for i := range hits {
		rec := &hits[i]
		weighted := Score(float64(rec.Score), rec.Importance, now.Sub(rec.Timestamp), b.options.Weights, b.options.Decay)
		rec.Score = float32(weighted)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > count {
		hits = hits[:count]
	}

	return hits, nil
}

func NewBank(opts ...Option) *Bank {
	options := NewOptions(opts...)

	b := &Bank{
		options: options,
	}

	return b
}
