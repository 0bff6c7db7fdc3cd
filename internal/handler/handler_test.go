package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/recall/buffer"
	"github.com/w-h-a/recall/embedder"
	"github.com/w-h-a/recall/extractor"
	"github.com/w-h-a/recall/internal/service/recall"
	"github.com/w-h-a/recall/memory"
	"github.com/w-h-a/recall/relationship"
	relationshipfile "github.com/w-h-a/recall/relationship/file"
	"github.com/w-h-a/recall/retention"
	memorystore "github.com/w-h-a/recall/store/memory"
)

type silentGenerator struct{}

func (g *silentGenerator) Generate(ctx context.Context, system string, prompt string) (string, error) {
	return `{"memories": [], "relationship_updates": []}`, nil
}

type zeroEmbedder struct{}

func (e *zeroEmbedder) Embed(ctx context.Context, text string, opts ...embedder.EmbedOption) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (e *zeroEmbedder) EmbedBatch(ctx context.Context, texts []string, opts ...embedder.EmbedOption) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func newTestHandler(t *testing.T) (*Handler, relationship.Ledger) {
	t.Helper()

	s := memorystore.NewStore()
	ledger := relationshipfile.NewLedger(
		relationship.WithLocation(filepath.Join(t.TempDir(), "ledger.json")),
	)

	e := extractor.NewExtractor(extractor.WithGenerator(&silentGenerator{}))

	bank := memory.NewBank(
		memory.WithEmbedder(&zeroEmbedder{}),
		memory.WithStore(s),
		memory.WithLedger(ledger),
	)

	sweeper := retention.NewSweeper(retention.WithStore(s))

	svc := recall.New(e, bank, ledger, sweeper,
		buffer.WithSilenceWindow(time.Hour),
		buffer.WithVolumeThreshold(1000),
	)

	t.Cleanup(svc.Close)

	return New(svc), ledger
}

func TestObserveAcceptsEvent(t *testing.T) {
	h, _ := newTestHandler(t)

	body, err := json.Marshal(map[string]any{
		"content":     "hello there",
		"author_id":   "42",
		"author_name": "alice",
		"channel_id":  "general",
		"origin":      "incoming",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader(body))

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestObserveRejectsMissingFields(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewReader([]byte(`{"content": "no author"}`)))

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextReturnsBlock(t *testing.T) {
	h, _ := newTestHandler(t)

	body := []byte(`{"user_id": "42", "message": "what do you know about me"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/context", bytes.NewReader(body))

	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	_, exists := resp["context"]
	assert.True(t, exists)
}

func TestSweepReturnsReport(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sweep", nil)

	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	assert.Equal(t, 0, report["deleted"])
}

func TestRelationshipNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relationships/99", nil)

	h.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRelationshipFound(t *testing.T) {
	h, ledger := newTestHandler(t)

	_, err := ledger.Apply(context.Background(), "42", "alice", 3)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/relationships/42", nil)

	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var entry relationship.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))

	assert.Equal(t, "alice", entry.DisplayName)
	assert.Equal(t, 3, entry.Affinity)
}
