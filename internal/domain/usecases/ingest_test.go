package usecases

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// stubLoader implements ports.DocumentLoader for .txt files
type stubLoader struct{}

func (stubLoader) Load(ctx context.Context, path string) (*entities.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &entities.Document{ID: "id-" + filepath.Base(path), Name: filepath.Base(path), Path: path, Content: string(data)}, nil
}

func (stubLoader) SupportedExtensions() []string { return []string{".txt"} }

func TestIngestUseCase_ChunksDocument(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, nil, 100, 20, nil)

	doc := &entities.Document{
		ID:      "doc-1",
		Name:    "test.txt",
		Content: "This is some content that should be chunked properly.",
	}

	n, err := uc.Ingest(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.chunks, 1)
	assert.Equal(t, "test.txt", store.chunks[0].Source)
	assert.NotEmpty(t, store.chunks[0].Embedding)
}

func TestIngestUseCase_EmptyDocument(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, nil, 100, 20, nil)

	n, err := uc.Ingest(context.Background(), &entities.Document{ID: "empty", Content: "  \n "})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.chunks)
}

func TestIngestUseCase_LargeDocumentOverlaps(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, nil, 50, 10, nil)

	doc := &entities.Document{ID: "big", Content: strings.Repeat("word ", 40)}

	_, err := uc.Ingest(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(store.chunks), 2)

	for i, c := range store.chunks {
		assert.LessOrEqual(t, len(c.Content), 50)
		assert.Equal(t, i, c.Index)
	}
}

func TestIngestUseCase_ChunkingTerminatesWithoutSpaces(t *testing.T) {
	uc := NewIngestUseCase(&mockEmbedder{}, &mockVectorStore{}, nil, 10, 8, nil)

	chunks := uc.chunkDocument(&entities.Document{ID: "x", Content: strings.Repeat("a", 95)})
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1].Content, "a"))
}

func TestIngestUseCase_ChunkingKeepsRunesWhole(t *testing.T) {
	uc := NewIngestUseCase(&mockEmbedder{}, &mockVectorStore{}, nil, 7, 2, nil)

	chunks := uc.chunkDocument(&entities.Document{ID: "x", Content: strings.Repeat("é", 20)})
	for _, c := range chunks {
		assert.True(t, strings.Trim(c.Content, "é") == "", "chunk %q split a rune", c.Content)
	}
}

func TestIngestUseCase_ReingestReplacesChunks(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, nil, 100, 20, nil)
	doc := &entities.Document{ID: "doc-1", Name: "a.txt", Content: "first version"}

	_, err := uc.Ingest(context.Background(), doc)
	require.NoError(t, err)
	doc.Content = "second version"
	_, err = uc.Ingest(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, store.chunks, 1)
	assert.Equal(t, "second version", store.chunks[0].Content)
}

func TestIngestUseCase_EmbeddingFailure(t *testing.T) {
	embedder := &mockEmbedder{embedFn: func(string) ([]float32, error) { return nil, errBoom }}
	store := &mockVectorStore{}
	uc := NewIngestUseCase(embedder, store, nil, 100, 20, nil)

	_, err := uc.Ingest(context.Background(), &entities.Document{ID: "d", Name: "d.txt", Content: "text"})
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, store.chunks)
}

func TestIngestUseCase_IngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte("ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, stubLoader{}, 100, 20, nil)

	report, err := uc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Chunks)
	assert.Len(t, report.Files, 2)
}

func TestIngestUseCase_Delete(t *testing.T) {
	store := &mockVectorStore{}
	uc := NewIngestUseCase(&mockEmbedder{}, store, nil, 100, 20, nil)

	require.NoError(t, uc.Delete(context.Background(), "doc-1"))
	assert.Equal(t, []string{"doc-1"}, store.deleted)
}
