package extractor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/recall/buffer"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) Generate(ctx context.Context, system string, prompt string) (string, error) {
	g.calls++
	return g.response, g.err
}

func TestTranscriptFormat(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	events := []buffer.Event{
		{Content: "hello there", AuthorId: "42", AuthorName: "alice", Timestamp: ts, Origin: buffer.OriginIncoming},
		{Content: "hi!", AuthorId: "7", AuthorName: "helper", Timestamp: ts.Add(time.Minute), Origin: buffer.OriginOutgoing, Bot: true},
	}

	got := Transcript(events)

	want := "[2025-03-14 09:26] alice (42): hello there\n" +
		"[2025-03-14 09:27] helper (7) [bot]: hi!\n"

	assert.Equal(t, want, got)
}

func TestParseWellFormed(t *testing.T) {
	raw := `{
		"memories": [
			{"content": "alice plays bass", "type": "user_fact", "importance": 7, "subject_user_id": "42", "tags": ["music"]}
		],
		"relationship_updates": [
			{"user_id": "42", "sentiment_delta": "+2", "reasoning": "friendly exchange"}
		]
	}`

	extraction, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, extraction.Memories, 1)
	assert.Equal(t, "alice plays bass", extraction.Memories[0].Content)
	assert.Equal(t, TypeUserFact, extraction.Memories[0].Type)
	assert.Equal(t, 7, extraction.Memories[0].Importance)
	assert.Equal(t, "42", extraction.Memories[0].SubjectUserId)

	require.Len(t, extraction.Deltas, 1)
	assert.Equal(t, "42", extraction.Deltas[0].UserId)
	assert.Equal(t, 2, extraction.Deltas[0].Delta)
}

func TestParseToleratesSloppyModelOutput(t *testing.T) {
	raw := "```json\n" + `{
		memories: [
			{content: 'bob hates mondays', type: 'user_fact', importance: 12, subject_user_id: 1234, tags: ['mood',],},
		],
		relationship_updates: [
			{user_id: 1234, sentiment_delta: -1, reasoning: 'grumpy'},
		],
	}` + "\n```"

	extraction, err := Parse(raw)
	require.NoError(t, err)

	require.Len(t, extraction.Memories, 1)
	assert.Equal(t, "bob hates mondays", extraction.Memories[0].Content)
	assert.Equal(t, 10, extraction.Memories[0].Importance, "importance clamps to 10")
	assert.Equal(t, "1234", extraction.Memories[0].SubjectUserId, "numeric id coerces to string")

	require.Len(t, extraction.Deltas, 1)
	assert.Equal(t, "1234", extraction.Deltas[0].UserId)
	assert.Equal(t, -1, extraction.Deltas[0].Delta)
}

func TestParseFailureDropsWholeCycle(t *testing.T) {
	extraction, err := Parse("I could not find anything worth remembering in this conversation.")
	assert.Error(t, err)
	assert.Nil(t, extraction)
}

func TestParseNormalizesUnknownType(t *testing.T) {
	raw := `{"memories": [
		{"content": "a", "type": "weird", "importance": 3, "subject_user_id": "9"},
		{"content": "b", "type": "weird", "importance": 3, "subject_user_id": null}
	]}`

	extraction, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, extraction.Memories, 2)
	assert.Equal(t, TypeUserFact, extraction.Memories[0].Type)
	assert.Equal(t, TypeServerLore, extraction.Memories[1].Type)
}

func TestExtractEmptySnapshotSkipsModelCall(t *testing.T) {
	gen := &stubGenerator{}
	e := NewExtractor(WithGenerator(gen))

	extraction, err := e.Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, extraction.Memories)
	assert.Equal(t, 0, gen.calls)
}

func TestExtractPropagatesModelError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	e := NewExtractor(WithGenerator(gen))

	_, err := e.Extract(context.Background(), []buffer.Event{{Content: "hi", AuthorName: "a"}})
	assert.Error(t, err)
}
