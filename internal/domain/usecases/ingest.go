// Package usecases contains application business rules: ingestion, retrieval,
// the supervisor, the two responders and the workflow graph that composes them.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// IngestUseCase loads documents, chunks them, embeds them and stores them.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	vectorStore  ports.VectorStore
	loader       ports.DocumentLoader
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// IngestReport summarises a directory ingestion.
type IngestReport struct {
	Files     []string
	Documents int
	Chunks    int
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	vectorStore ports.VectorStore,
	loader ports.DocumentLoader,
	chunkSize, chunkOverlap int,
	logger *zap.Logger,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = min(DefaultChunkOverlap, chunkSize/5)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		embedder:     embedder,
		vectorStore:  vectorStore,
		loader:       loader,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Ingest processes a document: chunks it, embeds it, stores it.
// Chunks from a previous ingestion of the same document are replaced.
func (uc *IngestUseCase) Ingest(ctx context.Context, doc *entities.Document) (int, error) {
	chunks := uc.chunkDocument(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks of %s: %w", doc.Name, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("embedding chunks of %s: got %d vectors for %d chunks", doc.Name, len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}

	if err := uc.vectorStore.Delete(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("replacing chunks of %s: %w", doc.Name, err)
	}
	if err := uc.vectorStore.Store(ctx, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks of %s: %w", doc.Name, err)
	}

	uc.logger.Info("document ingested",
		zap.String("document", doc.Name),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IngestFile loads and ingests a single file.
func (uc *IngestUseCase) IngestFile(ctx context.Context, path string) (int, error) {
	if uc.loader == nil {
		return 0, fmt.Errorf("ingesting %s: no document loader configured", path)
	}
	doc, err := uc.loader.Load(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", path, err)
	}
	return uc.Ingest(ctx, doc)
}

// IngestDirectory ingests every supported file directly inside dir.
func (uc *IngestUseCase) IngestDirectory(ctx context.Context, dir string) (*IngestReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	report := &IngestReport{}
	for _, entry := range entries {
		if entry.IsDir() || !uc.Supports(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		n, err := uc.IngestFile(ctx, path)
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, path)
		report.Documents++
		report.Chunks += n
	}
	return report, nil
}

// Supports reports whether the loader handles the file's extension.
func (uc *IngestUseCase) Supports(name string) bool {
	if uc.loader == nil {
		return false
	}
	return slices.Contains(uc.loader.SupportedExtensions(), strings.ToLower(filepath.Ext(name)))
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.vectorStore.Delete(ctx, documentID)
}

// chunkDocument splits document content into overlapping chunks,
// preferring word boundaries and never splitting a UTF-8 sequence.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document) []entities.Chunk {
	content := strings.TrimSpace(doc.Content)
	if len(content) == 0 {
		return nil
	}

	var chunks []entities.Chunk
	start := 0
	index := 0

	for start < len(content) {
		end := start + uc.chunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			for end > start && !utf8.RuneStart(content[end]) {
				end--
			}
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		if chunkContent := strings.TrimSpace(content[start:end]); len(chunkContent) > 0 {
			chunks = append(chunks, entities.Chunk{
				ID:         generateChunkID(doc.ID, index),
				DocumentID: doc.ID,
				Source:     doc.Name,
				Content:    chunkContent,
				Index:      index,
			})
			index++
		}

		if end == len(content) {
			break
		}

		next := end - uc.chunkOverlap
		for next > 0 && !utf8.RuneStart(content[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, index)))
	return hex.EncodeToString(hash[:8])
}
