package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/w-h-a/recall/store"
)

type memoryStore struct {
	options store.Options
	records map[string]store.Record
	mtx     sync.RWMutex
}

func (s *memoryStore) Upsert(ctx context.Context, records []store.Record) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, rec := range records {
		cpy := make([]float32, len(rec.Embedding))
		copy(cpy, rec.Embedding)
		rec.Embedding = cpy

		tags := make([]string, len(rec.Tags))
		copy(tags, rec.Tags)
		rec.Tags = tags

		s.records[rec.Id] = rec
	}

	return nil
}

func (s *memoryStore) Search(ctx context.Context, vector []float32, opts ...store.SearchOption) ([]store.Record, error) {
	options := store.NewSearchOptions(opts...)

	if options.Limit < 1 {
		return nil, nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	candidates := make([]store.Record, 0, len(s.records))

	for _, rec := range s.records {
		if !rec.Matches(options.Type, options.SubjectUserId, options.MinImportance) {
			continue
		}

		score := float32(store.CosineSimilarity(vector, rec.Embedding))
		if score < options.ScoreThreshold {
			continue
		}

		rec.Score = score
		candidates = append(candidates, rec)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > options.Limit {
		candidates = candidates[:options.Limit]
	}

	return candidates, nil
}

func (s *memoryStore) Scroll(ctx context.Context, opts ...store.ScrollOption) ([]store.Record, string, error) {
	options := store.NewScrollOptions(opts...)

	if options.Limit < 1 {
		return nil, "", nil
	}

	s.mtx.RLock()
	defer s.mtx.RUnlock()

	matched := make([]store.Record, 0, len(s.records))

	for _, rec := range s.records {
		if !rec.Matches("", options.SubjectUserId, options.MinImportance) {
			continue
		}
		if !options.Since.IsZero() && rec.Timestamp.Before(options.Since) {
			continue
		}
		matched = append(matched, rec)
	}

	// stable id order so the cursor is a simple keyset position
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Id < matched[j].Id
	})

	page := make([]store.Record, 0, options.Limit)

	for _, rec := range matched {
		if len(options.Cursor) > 0 && rec.Id <= options.Cursor {
			continue
		}
		page = append(page, rec)
		if len(page) == options.Limit {
			break
		}
	}

	cursor := ""
	if len(page) == options.Limit {
		cursor = page[len(page)-1].Id
	}

	return page, cursor, nil
}

func (s *memoryStore) Delete(ctx context.Context, ids []string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, id := range ids {
		delete(s.records, id)
	}

	return nil
}

func NewStore(opts ...store.Option) store.Store {
	options := store.NewOptions(opts...)

	s := &memoryStore{
		options: options,
		records: map[string]store.Record{},
		mtx:     sync.RWMutex{},
	}

	return s
}
