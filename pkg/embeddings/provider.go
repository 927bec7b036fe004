// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// A provider maps text to dense float32 vectors. The rules index embeds each
// Comprehensive Rules chunk once at ingestion time and embeds the user's
// question at query time; nearest-neighbour search over the stored vectors
// then surfaces the rules most relevant to the question.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector a single Provider instance returns has the same length,
// reported by Dimensions. Vectors from different providers or models live in
// different spaces and must never be compared against each other; an index
// built with one model has to be re-ingested to switch models.
type Provider interface {
	// Embed computes the embedding vector for one text. The input passes
	// through verbatim; any model-specific prefixing is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in a single provider call, which is
	// much cheaper than looping over Embed during ingestion. The result
	// has the same length and order as texts. On error no partial results
	// are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces. Constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the backend's model identifier, e.g.
	// "text-embedding-3-small". Used for logging and for verifying that
	// an existing index was built with the same model.
	ModelID() string
}
