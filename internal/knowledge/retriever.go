package knowledge

import (
	"context"
	"fmt"

	"github.com/nirajstha/bookpilot/internal/observability/metrics"
	"github.com/nirajstha/bookpilot/pkg/logging"
)

// chunkSearcher is the store capability the retriever needs.
type chunkSearcher interface {
	Search(ctx context.Context, embedding []float32, embeddingModel string, k int) ([]Chunk, error)
}

// Retriever embeds a query and returns the k nearest chunks by vector distance.
// It shares its Embedder with the Indexer so index-time and query-time vectors
// always come from the same model.
type Retriever struct {
	embedder Embedder
	store    chunkSearcher
	logger   *logging.Logger
	metrics  *metrics.KnowledgeMetrics
}

// NewRetriever creates a retriever over the given store.
func NewRetriever(embedder Embedder, store chunkSearcher, logger *logging.Logger, m *metrics.KnowledgeMetrics) *Retriever {
	if embedder == nil {
		panic("knowledge: embedder cannot be nil")
	}
	if store == nil {
		panic("knowledge: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger, metrics: m}
}

// Retrieve returns the top-k chunks for the query, ascending by distance.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	chunks, err := r.store.Search(ctx, vectors[0], r.embedder.Model(), k)
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveRetrieval()
	r.logger.Debug("retrieved chunks", "query_len", len(query), "k", k, "returned", len(chunks))
	return chunks, nil
}
