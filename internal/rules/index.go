package rules

import (
	"context"
	"fmt"

	"github.com/tolarian/tutor/pkg/embeddings"
)

// embedBatchSize bounds how many chunks go into one embedding request during
// ingestion. OpenAI accepts far larger batches, but smaller ones keep
// progress visible and retries cheap.
const embedBatchSize = 64

// Index ties a chunk store to an embedding provider: ingestion embeds and
// stores chunks, queries embed the question and search the store.
type Index struct {
	store    *Store
	embedder embeddings.Provider
}

// NewIndex creates an Index over store using embedder for both ingestion
// and queries. Both sides must use the same model, or distances are
// meaningless.
func NewIndex(store *Store, embedder embeddings.Provider) *Index {
	return &Index{store: store, embedder: embedder}
}

// Ingest chunks the rules document, embeds every chunk, and upserts the
// results. Re-running with a newer document replaces changed rules in place.
// Returns the number of chunks indexed.
func (ix *Index) Ingest(ctx context.Context, document string) (int, error) {
	chunks := ChunkRules(document)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("rules index: document produced no chunks")
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content()
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("rules index: embed batch at %s: %w", batch[0].Number, err)
		}
		for i, c := range batch {
			if err := ix.store.UpsertChunk(ctx, c, vectors[i]); err != nil {
				return 0, err
			}
		}
	}

	return len(chunks), nil
}

// Query embeds the question and returns the topK most similar rule chunks.
func (ix *Index) Query(ctx context.Context, question string, topK int) ([]SearchResult, error) {
	if question == "" {
		return nil, fmt.Errorf("rules index: question must not be empty")
	}
	vector, err := ix.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rules index: embed question: %w", err)
	}
	return ix.store.Search(ctx, vector, topK)
}

// Size reports how many chunks the index currently holds.
func (ix *Index) Size(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}
