package rules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Store persists embedded rule chunks in PostgreSQL with a pgvector HNSW
// index for approximate nearest-neighbour search. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// SearchResult is one rule chunk returned by a similarity search, with its
// cosine distance to the query (smaller is more similar).
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// NewStore connects to the PostgreSQL database at dsn, registers pgvector
// types on every connection, and runs [Migrate].
//
// embeddingDimensions must match the output dimension of the embedding model
// used at ingestion time (1536 for OpenAI text-embedding-3-small). Changing
// it after the first migration requires dropping and re-ingesting the index.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("rules store: parse dsn: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("rules store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rules store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("rules store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// ddlRuleChunks returns the schema DDL with the vector dimension baked into
// the column type.
func ddlRuleChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS rule_chunks (
    number      TEXT         PRIMARY KEY,
    section     TEXT         NOT NULL DEFAULT '',
    rule_text   TEXT         NOT NULL,
    embedding   vector(%d),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rule_chunks_embedding
    ON rule_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates the rule_chunks table and its indexes. Idempotent and safe
// to run on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlRuleChunks(embeddingDimensions)); err != nil {
		return fmt.Errorf("rules migrate: %w", err)
	}
	return nil
}

// UpsertChunk stores a chunk and its embedding, replacing any previous
// version of the same rule number. Ingesting an updated rules document is
// therefore a plain re-run.
func (s *Store) UpsertChunk(ctx context.Context, chunk Chunk, embedding []float32) error {
	const q = `
		INSERT INTO rule_chunks (number, section, rule_text, embedding, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (number) DO UPDATE SET
		    section    = EXCLUDED.section,
		    rule_text  = EXCLUDED.rule_text,
		    embedding  = EXCLUDED.embedding,
		    updated_at = now()`

	_, err := s.pool.Exec(ctx, q, chunk.Number, chunk.Section, chunk.Text, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("rules store: upsert %s: %w", chunk.Number, err)
	}
	return nil
}

// Search returns the topK chunks closest to the query embedding by cosine
// distance, most similar first.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error) {
	const q = `
		SELECT number, section, rule_text, embedding <=> $1 AS distance
		FROM   rule_chunks
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("rules store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchResult, error) {
		var r SearchResult
		err := row.Scan(&r.Chunk.Number, &r.Chunk.Section, &r.Chunk.Text, &r.Distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("rules store: scan rows: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// Count returns the number of indexed rule chunks. Zero means the index has
// not been ingested yet.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM rule_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("rules store: count: %w", err)
	}
	return n, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
