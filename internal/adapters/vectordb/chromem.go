package vectordb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

const chromemCollection = "documents"

const (
	metaDocumentID = "document_id"
	metaSource     = "source"
	metaIndex      = "chunk_index"
)

// ChromemStore implements ports.VectorStore with chromem-go, an embedded
// vector database. With a path it persists every write to disk.
type ChromemStore struct {
	mu  sync.RWMutex
	db  *chromem.DB
	col *chromem.Collection
}

// NewChromemStore opens or creates a chromem database at path. An empty
// path keeps the index in memory.
func NewChromemStore(path string, compress bool, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
		logger.Info("created in-memory vector index")
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("opening vector index %s: %w", path, err)
		}
		logger.Info("opened persistent vector index", zap.String("path", path))
	}

	store := &ChromemStore{db: db}
	if err := store.openCollection(); err != nil {
		return nil, err
	}
	return store, nil
}

// Embeddings are computed by the ingest pipeline; the collection never embeds on its own.
func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("chunks must carry precomputed embeddings")
}

func (s *ChromemStore) openCollection() error {
	col, err := s.db.GetOrCreateCollection(chromemCollection, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("opening collection %q: %w", chromemCollection, err)
	}
	s.col = col
	return nil
}

// Store saves chunks with their embeddings.
func (s *ChromemStore) Store(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		docs[i] = chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				metaDocumentID: c.DocumentID,
				metaSource:     c.Source,
				metaIndex:      strconv.Itoa(c.Index),
			},
			Embedding: c.Embedding,
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding chunks: %w", err)
	}
	return nil
}

// Search finds the most similar chunks to a query embedding.
func (s *ChromemStore) Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(topK, s.col.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := s.col.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	out := make([]entities.QueryResult, len(results))
	for i, r := range results {
		index, _ := strconv.Atoi(r.Metadata[metaIndex])
		out[i] = entities.QueryResult{
			Chunk: entities.Chunk{
				ID:         r.ID,
				DocumentID: r.Metadata[metaDocumentID],
				Source:     r.Metadata[metaSource],
				Content:    r.Content,
				Index:      index,
				Embedding:  r.Embedding,
			},
			Score:     float64(r.Similarity),
			SourceDoc: r.Metadata[metaSource],
		}
	}
	return out, nil
}

// Delete removes all chunks for a document.
func (s *ChromemStore) Delete(ctx context.Context, documentID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.col.Count() == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, map[string]string{metaDocumentID: documentID}, nil); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	return nil
}

// Clear removes all data from the store.
func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(chromemCollection); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return s.openCollection()
}

// Count returns the number of stored chunks.
func (s *ChromemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count(), nil
}
