package store

import "context"

// Store is the vector store collaborator: batch upsert, filtered semantic
// search, metadata-only scroll, and batch delete. Implementations bootstrap
// their collection idempotently at construction time.
type Store interface {
	Upsert(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, opts ...SearchOption) ([]Record, error)
	Scroll(ctx context.Context, opts ...ScrollOption) ([]Record, string, error)
	Delete(ctx context.Context, ids []string) error
}
