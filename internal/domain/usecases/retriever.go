package usecases

import (
	"context"
	"fmt"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

// DefaultTopK is the number of chunks handed to the document responder.
const DefaultTopK = 3

// Retriever embeds a query and returns the most similar stored chunks.
type Retriever struct {
	embedder    ports.EmbeddingService
	vectorStore ports.VectorStore
	topK        int
}

// NewRetriever creates a Retriever. A non-positive topK uses DefaultTopK.
func NewRetriever(embedder ports.EmbeddingService, vectorStore ports.VectorStore, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
		topK:        topK,
	}
}

// Retrieve returns up to topK chunks, best first. An empty index yields an
// empty result; any failure is wrapped with entities.ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error) {
	count, err := r.vectorStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: counting chunks: %w", entities.ErrRetrievalUnavailable, err)
	}
	if count == 0 {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", entities.ErrRetrievalUnavailable, err)
	}

	results, err := r.vectorStore.Search(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching vectors: %w", entities.ErrRetrievalUnavailable, err)
	}
	if len(results) > r.topK {
		results = results[:r.topK]
	}
	return results, nil
}
