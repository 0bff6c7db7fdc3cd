package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/recall/embedder"
	"github.com/w-h-a/recall/extractor"
	"github.com/w-h-a/recall/relationship"
	"github.com/w-h-a/recall/store"
	memorystore "github.com/w-h-a/recall/store/memory"
)

type fakeEmbedder struct {
	batches [][]string
	err     error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string, opts ...embedder.EmbedOption) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, opts ...embedder.EmbedOption) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

type fakeLedger struct {
	entries map[string]relationship.Entry
}

func (l *fakeLedger) Apply(ctx context.Context, userId string, displayName string, delta int) (relationship.Entry, error) {
	return relationship.Entry{}, errors.New("not used")
}

func (l *fakeLedger) Get(ctx context.Context, userId string) (relationship.Entry, bool, error) {
	entry, exists := l.entries[userId]
	return entry, exists, nil
}

func newBank(ledger relationship.Ledger) (*Bank, store.Store, *fakeEmbedder) {
	s := memorystore.NewStore()
	e := &fakeEmbedder{}

	b := NewBank(
		WithEmbedder(e),
		WithStore(s),
		WithLedger(ledger),
	)

	return b, s, e
}

func TestSaveRoundTripPreservesFields(t *testing.T) {
	b, s, e := newBank(nil)
	ctx := context.Background()

	memories := []extractor.Memory{
		{Content: "alice plays bass", Type: extractor.TypeUserFact, Importance: 7, SubjectUserId: "42", Tags: []string{"music", "hobby"}},
		{Content: "the server was founded in 2019", Type: extractor.TypeServerLore, Importance: 8, Tags: []string{"history"}},
	}

	require.NoError(t, b.Save(ctx, memories))

	// all contents embedded in one batch, in input order
	require.Len(t, e.batches, 1)
	assert.Equal(t, []string{"alice plays bass", "the server was founded in 2019"}, e.batches[0])

	records, _, err := s.Scroll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byContent := map[string]store.Record{}
	for _, rec := range records {
		byContent[rec.Content] = rec
	}

	fact := byContent["alice plays bass"]
	assert.Equal(t, extractor.TypeUserFact, fact.Type)
	assert.Equal(t, 7, fact.Importance)
	assert.Equal(t, "42", fact.SubjectUserId)
	assert.Equal(t, []string{"music", "hobby"}, fact.Tags)
	assert.NotEmpty(t, fact.Id)
}

func TestSaveNothingIsNoop(t *testing.T) {
	b, _, e := newBank(nil)

	require.NoError(t, b.Save(context.Background(), nil))
	assert.Empty(t, e.batches)
}

func TestRecallBuildsOrderedContextBlock(t *testing.T) {
	ledger := &fakeLedger{entries: map[string]relationship.Entry{
		"42": {UserId: "42", DisplayName: "alice", Affinity: 5, Interactions: 12, LastInteraction: time.Now().UTC().Add(-2 * time.Hour)},
	}}

	b, _, _ := newBank(ledger)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, []extractor.Memory{
		{Content: "alice plays bass", Type: extractor.TypeUserFact, Importance: 9, SubjectUserId: "42"},
		{Content: "the server was founded in 2019", Type: extractor.TypeServerLore, Importance: 8},
	}))

	block, err := b.Recall(ctx, "42", "what do you know about me?")
	require.NoError(t, err)

	relIdx := strings.Index(block, "Relationship with alice")
	factIdx := strings.Index(block, "alice plays bass")
	loreIdx := strings.Index(block, "the server was founded in 2019")

	require.GreaterOrEqual(t, relIdx, 0)
	require.Greater(t, factIdx, relIdx)
	require.Greater(t, loreIdx, factIdx)
	assert.Contains(t, block, "affinity +5")
}

func TestRecallOmitsEmptySections(t *testing.T) {
	b, _, _ := newBank(&fakeLedger{entries: map[string]relationship.Entry{}})
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, []extractor.Memory{
		{Content: "the server was founded in 2019", Type: extractor.TypeServerLore, Importance: 8},
	}))

	block, err := b.Recall(ctx, "42", "anything?")
	require.NoError(t, err)

	assert.NotContains(t, block, "Relationship")
	assert.NotContains(t, block, "What I remember")
	assert.Contains(t, block, "Server lore:")
}

func TestRecallEmptyWhenNothingQualifies(t *testing.T) {
	b, _, _ := newBank(&fakeLedger{entries: map[string]relationship.Entry{}})

	block, err := b.Recall(context.Background(), "42", "anything?")
	require.NoError(t, err)
	assert.Equal(t, "", block)
}

func TestRecallDoesNotLeakOtherUsersFacts(t *testing.T) {
	b, _, _ := newBank(nil)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, []extractor.Memory{
		{Content: "bob is allergic to peanuts", Type: extractor.TypeUserFact, Importance: 9, SubjectUserId: "7"},
	}))

	block, err := b.Recall(ctx, "42", "tell me about allergies")
	require.NoError(t, err)
	assert.NotContains(t, block, "bob is allergic")
}

func TestRecallTruncatesToConfiguredCounts(t *testing.T) {
	s := memorystore.NewStore()
	e := &fakeEmbedder{}

	b := NewBank(
		WithEmbedder(e),
		WithStore(s),
		WithCounts(Counts{UserFacts: 0, ServerLore: 2}),
	)
	ctx := context.Background()

	require.NoError(t, b.Save(ctx, []extractor.Memory{
		{Content: "lore one", Type: extractor.TypeServerLore, Importance: 9},
		{Content: "lore two", Type: extractor.TypeServerLore, Importance: 8},
		{Content: "lore three", Type: extractor.TypeServerLore, Importance: 2},
	}))

	block, err := b.Recall(ctx, "42", "lore?")
	require.NoError(t, err)

	assert.Contains(t, block, "lore one")
	assert.Contains(t, block, "lore two")
	assert.NotContains(t, block, "lore three")
}

func TestRecallPropagatesEmbedderError(t *testing.T) {
	s := memorystore.NewStore()
	e := &fakeEmbedder{err: errors.New("embedding service down")}

	b := NewBank(WithEmbedder(e), WithStore(s))

	_, err := b.Recall(context.Background(), "42", "anything?")
	assert.Error(t, err)
}
