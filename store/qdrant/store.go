package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/w-h-a/recall/store"
	getsafe "github.com/w-h-a/recall/util/get_safe"
)

type qdrantStore struct {
	options store.Options
	client  *http.Client
}

func (s *qdrantStore) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]map[string]any, 0, len(records))

	for _, rec := range records {
		payload := map[string]any{
			"content":         rec.Content,
			"type":            rec.Type,
			"importance":      rec.Importance,
			"subject_user_id": rec.SubjectUserId,
			"tags":            rec.Tags,
			"timestamp":       rec.Timestamp.UTC().Format(time.RFC3339Nano),
			"created_at":      rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		}

		points = append(points, map[string]any{
			"id":      rec.Id,
			"vector":  rec.Embedding,
			"payload": payload,
		})
	}

	req := map[string]any{
		"points": points,
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantStore) Search(ctx context.Context, vector []float32, opts ...store.SearchOption) ([]store.Record, error) {
	options := store.NewSearchOptions(opts...)

	if options.Limit < 1 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        options.Limit,
		"with_vector":  true,
		"with_payload": true,
	}

	if options.ScoreThreshold > 0 {
		req["score_threshold"] = options.ScoreThreshold
	}

	if filter := buildFilter(options.Type, options.SubjectUserId, options.MinImportance, time.Time{}); filter != nil {
		req["filter"] = filter
	}

	var rsp qdrantEnvelope[[]qdrantPointResult]

	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}

	results := make([]store.Record, 0, len(rsp.Result))

	for _, point := range rsp.Result {
		rec := recordFromPoint(point)
		results = append(results, rec)
	}

	return results, nil
}

func (s *qdrantStore) Scroll(ctx context.Context, opts ...store.ScrollOption) ([]store.Record, string, error) {
	options := store.NewScrollOptions(opts...)

	if options.Limit < 1 {
		return nil, "", nil
	}

	req := map[string]any{
		"limit":        options.Limit,
		"with_vector":  false,
		"with_payload": true,
	}

	if len(options.Cursor) > 0 {
		req["offset"] = options.Cursor
	}

	if filter := buildFilter("", options.SubjectUserId, options.MinImportance, options.Since); filter != nil {
		req["filter"] = filter
	}

	var rsp qdrantEnvelope[qdrantScrollResult]

	path := fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, "", err
	}

	results := make([]store.Record, 0, len(rsp.Result.Points))

	for _, point := range rsp.Result.Points {
		results = append(results, recordFromPoint(point))
	}

	cursor := ""
	if len(rsp.Result.NextOffset) > 0 && string(rsp.Result.NextOffset) != "null" {
		var next string
		if err := json.Unmarshal(rsp.Result.NextOffset, &next); err == nil {
			cursor = next
		}
	}

	return results, cursor, nil
}

func (s *qdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	req := map[string]any{
		"points": ids,
	}

	var rsp qdrantEnvelope[json.RawMessage]

	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(s.options.Collection))

	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func buildFilter(memoryType string, subjectUserId string, minImportance int, since time.Time) map[string]any {
	must := []map[string]any{}

	if len(memoryType) > 0 {
		must = append(must, map[string]any{
			"key":   "type",
			"match": map[string]any{"value": memoryType},
		})
	}

	if len(subjectUserId) > 0 {
		must = append(must, map[string]any{
			"key":   "subject_user_id",
			"match": map[string]any{"value": subjectUserId},
		})
	}

	if minImportance > 0 {
		must = append(must, map[string]any{
			"key":   "importance",
			"range": map[string]any{"gte": minImportance},
		})
	}

	if !since.IsZero() {
		must = append(must, map[string]any{
			"key":   "timestamp",
			"range": map[string]any{"gte": since.UTC().Format(time.RFC3339Nano)},
		})
	}

	if len(must) == 0 {
		return nil
	}

	return map[string]any{"must": must}
}

func recordFromPoint(point qdrantPointResult) store.Record {
	payload := point.Payload

	timestamp, _ := time.Parse(time.RFC3339Nano, getsafe.String(payload, "timestamp"))
	createdAt, _ := time.Parse(time.RFC3339Nano, getsafe.String(payload, "created_at"))

	return store.Record{
		Id:            point.Id,
		Content:       getsafe.String(payload, "content"),
		Type:          getsafe.String(payload, "type"),
		Importance:    getsafe.Int(payload, "importance"),
		SubjectUserId: getsafe.String(payload, "subject_user_id"),
		Tags:          getsafe.Strings(payload, "tags"),
		Timestamp:     timestamp,
		CreatedAt:     createdAt,
		Embedding:     point.Vector,
		Score:         float32(point.Score),
	}
}

func (s *qdrantStore) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := s.options.Location + path

	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")

	if len(s.options.ApiKey) > 0 {
		request.Header.Set("api-key", s.options.ApiKey)
		request.Header.Set("Authorization", "Bearer "+s.options.ApiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}

func (s *qdrantStore) configure() error {
	exists, err := s.collectionExists()
	if err != nil {
		return err
	}

	if !exists {
		if err := s.createCollection(); err != nil && !isAlreadyExists(err) {
			return err
		}
	}

	indexes := map[string]string{
		"type":            "keyword",
		"subject_user_id": "keyword",
		"importance":      "integer",
		"timestamp":       "datetime",
	}

	for field, schema := range indexes {
		if err := s.createIndex(field, schema); err != nil && !isAlreadyExists(err) {
			return err
		}
	}

	return nil
}

func (s *qdrantStore) collectionExists() (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	err := s.do(context.Background(), http.MethodGet, path, nil, &rsp)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, err
	}

	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

func (s *qdrantStore) createCollection() error {
	distance := s.options.Distance
	if len(distance) == 0 {
		distance = "Cosine"
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.options.VectorSize,
			"distance": distance,
		},
	}

	path := fmt.Sprintf("/collections/%s", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(context.Background(), http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func (s *qdrantStore) createIndex(field string, schema string) error {
	req := map[string]any{
		"field_name":   field,
		"field_schema": schema,
	}

	path := fmt.Sprintf("/collections/%s/index", url.PathEscape(s.options.Collection))

	var rsp qdrantEnvelope[json.RawMessage]

	if err := s.do(context.Background(), http.MethodPut, path, req, &rsp); err != nil {
		return err
	}

	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}

	return nil
}

func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "409")
}

func NewStore(opts ...store.Option) store.Store {
	options := store.NewOptions(opts...)

	if len(options.Location) == 0 ||
		len(options.Collection) == 0 ||
		options.VectorSize == 0 {
		panic("missing location, collection, or vector size for qdrant store")
	}

	client := &http.Client{
		Timeout: 15 * time.Second,
	}

	s := &qdrantStore{
		options: options,
		client:  client,
	}

	if err := s.configure(); err != nil {
		panic(err)
	}

	return s
}
