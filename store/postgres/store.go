package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/w-h-a/recall/store"
	"go.nhat.io/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

var DRIVER string

func init() {
	driver, err := otelsql.Register(
		"postgres",
		otelsql.TraceQueryWithoutArgs(),
		otelsql.TraceRowsClose(),
		otelsql.TraceRowsAffected(),
		otelsql.WithSystem(semconv.DBSystemPostgreSQL),
	)
	if err != nil {
		detail := "failed to register pg store with otel"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	DRIVER = driver
}

type postgresStore struct {
	options store.Options
	table   string
	conn    *sql.DB
}

func (s *postgresStore) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (
			id,
			content,
			type,
			importance,
			subject_user_id,
			tags,
			timestamp,
			created_at,
			embedding
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			type = EXCLUDED.type,
			importance = EXCLUDED.importance,
			subject_user_id = EXCLUDED.subject_user_id,
			tags = EXCLUDED.tags,
			timestamp = EXCLUDED.timestamp,
			embedding = EXCLUDED.embedding
	`, pq.QuoteIdentifier(s.table))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		tagsJSON, err := json.Marshal(rec.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}

		if _, err := stmt.ExecContext(
			ctx,
			rec.Id,
			rec.Content,
			rec.Type,
			rec.Importance,
			rec.SubjectUserId,
			tagsJSON,
			rec.Timestamp.UTC(),
			rec.CreatedAt.UTC(),
			pgvector.NewVector(rec.Embedding),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *postgresStore) Search(ctx context.Context, vector []float32, opts ...store.SearchOption) ([]store.Record, error) {
	options := store.NewSearchOptions(opts...)

	if options.Limit < 1 {
		return nil, nil
	}

	where := []string{"1 - (embedding <=> $1) >= $2"}
	args := []any{pgvector.NewVector(vector), options.ScoreThreshold}

	if len(options.Type) > 0 {
		args = append(args, options.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}

	if len(options.SubjectUserId) > 0 {
		args = append(args, options.SubjectUserId)
		where = append(where, fmt.Sprintf("subject_user_id = $%d", len(args)))
	}

	if options.MinImportance > 0 {
		args = append(args, options.MinImportance)
		where = append(where, fmt.Sprintf("importance >= $%d", len(args)))
	}

	args = append(args, options.Limit)

	query := fmt.Sprintf(`
		SELECT
			id,
			content,
			type,
			importance,
			subject_user_id,
			tags,
			timestamp,
			created_at,
			embedding,
			1 - (embedding <=> $1) as score
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, pq.QuoteIdentifier(s.table), strings.Join(where, " AND "), len(args))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows, true)
}

func (s *postgresStore) Scroll(ctx context.Context, opts ...store.ScrollOption) ([]store.Record, string, error) {
	options := store.NewScrollOptions(opts...)

	if options.Limit < 1 {
		return nil, "", nil
	}

	where := []string{"id > $1"}
	args := []any{options.Cursor}

	if len(options.SubjectUserId) > 0 {
		args = append(args, options.SubjectUserId)
		where = append(where, fmt.Sprintf("subject_user_id = $%d", len(args)))
	}

	if options.MinImportance > 0 {
		args = append(args, options.MinImportance)
		where = append(where, fmt.Sprintf("importance >= $%d", len(args)))
	}

	if !options.Since.IsZero() {
		args = append(args, options.Since.UTC())
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	args = append(args, options.Limit)

	query := fmt.Sprintf(`
		SELECT
			id,
			content,
			type,
			importance,
			subject_user_id,
			tags,
			timestamp,
			created_at
		FROM %s
		WHERE %s
		ORDER BY id
		LIMIT $%d
	`, pq.QuoteIdentifier(s.table), strings.Join(where, " AND "), len(args))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	records, err := scanRecords(rows, false)
	if err != nil {
		return nil, "", err
	}

	cursor := ""
	if len(records) == options.Limit {
		cursor = records[len(records)-1].Id
	}

	return records, cursor, nil
}

func (s *postgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", pq.QuoteIdentifier(s.table))

	_, err := s.conn.ExecContext(ctx, query, pq.Array(ids))
	return err
}

func scanRecords(rows *sql.Rows, withVector bool) ([]store.Record, error) {
	var records []store.Record

	for rows.Next() {
		var rec store.Record
		var tagsBytes []byte
		var embedding pgvector.Vector

		dest := []any{
			&rec.Id,
			&rec.Content,
			&rec.Type,
			&rec.Importance,
			&rec.SubjectUserId,
			&tagsBytes,
			&rec.Timestamp,
			&rec.CreatedAt,
		}
		if withVector {
			dest = append(dest, &embedding, &rec.Score)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		if len(tagsBytes) > 0 {
			if err := json.Unmarshal(tagsBytes, &rec.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", err)
			}
		}

		if withVector {
			rec.Embedding = embedding.Slice()
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *postgresStore) configure() error {
	table := pq.QuoteIdentifier(s.table)

	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				type TEXT NOT NULL,
				importance INT NOT NULL,
				subject_user_id TEXT NOT NULL DEFAULT '',
				tags JSONB NOT NULL DEFAULT '[]',
				timestamp TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				embedding vector(%d) NOT NULL
			)
		`, table, s.options.VectorSize),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (type)", pq.QuoteIdentifier(s.table+"_type_idx"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (subject_user_id)", pq.QuoteIdentifier(s.table+"_subject_idx"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (importance)", pq.QuoteIdentifier(s.table+"_importance_idx"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (timestamp)", pq.QuoteIdentifier(s.table+"_timestamp_idx"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)", pq.QuoteIdentifier(s.table+"_embedding_idx"), table),
	}

	for _, statement := range statements {
		if _, err := s.conn.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func NewStore(opts ...store.Option) store.Store {
	options := store.NewOptions(opts...)

	if len(options.Location) == 0 || options.VectorSize == 0 {
		panic("missing location or vector size for postgres store")
	}

	table := options.Collection
	if len(table) == 0 {
		table = "memories"
	}

	conn, err := sql.Open(DRIVER, options.Location)
	if err != nil {
		panic(err)
	}

	s := &postgresStore{
		options: options,
		table:   table,
		conn:    conn,
	}

	if err := s.configure(); err != nil {
		panic(err)
	}

	return s
}
