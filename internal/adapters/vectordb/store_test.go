package vectordb

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
	"github.com/0xcro3dile/ira-go/internal/domain/ports"
	"github.com/0xcro3dile/ira-go/internal/domain/usecases"
)

type storeFactory func(t *testing.T) ports.VectorStore

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) ports.VectorStore {
			return NewInMemoryStore()
		},
		"sqlite": func(t *testing.T) ports.VectorStore {
			store, err := NewSQLiteStore(t.TempDir(), nil)
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
		"chromem": func(t *testing.T) ports.VectorStore {
			store, err := NewChromemStore("", false, nil)
			require.NoError(t, err)
			return store
		},
		"chromem-persistent": func(t *testing.T) ports.VectorStore {
			store, err := NewChromemStore(t.TempDir(), false, nil)
			require.NoError(t, err)
			return store
		},
	}
}

func TestStores_StoreAndSearch(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			require.NoError(t, store.Store(ctx, []entities.Chunk{
				{ID: "c1", DocumentID: "doc1", Source: "a.pdf", Content: "hello", Index: 0, Embedding: []float32{1, 0, 0}},
				{ID: "c2", DocumentID: "doc1", Source: "a.pdf", Content: "world", Index: 1, Embedding: []float32{0, 1, 0}},
				{ID: "c3", DocumentID: "doc2", Source: "b.pdf", Content: "near", Index: 0, Embedding: []float32{0.9, 0.1, 0}},
			}))

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, count)

			results, err := store.Search(ctx, []float32{1, 0, 0}, 2)
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, "c1", results[0].Chunk.ID)
			assert.Equal(t, "c3", results[1].Chunk.ID)
			assert.Equal(t, "b.pdf", results[1].SourceDoc)
			assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		})
	}
}

func TestStores_SearchMoreThanStored(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			results, err := store.Search(ctx, []float32{1, 0, 0}, 3)
			require.NoError(t, err)
			assert.Empty(t, results)

			require.NoError(t, store.Store(ctx, []entities.Chunk{
				{ID: "c1", DocumentID: "doc1", Content: "only", Embedding: []float32{1, 0, 0}},
			}))
			results, err = store.Search(ctx, []float32{1, 0, 0}, 3)
			require.NoError(t, err)
			assert.Len(t, results, 1)
		})
	}
}

func TestStores_DeleteAndClear(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			require.NoError(t, store.Delete(ctx, "missing"))
			require.NoError(t, store.Store(ctx, []entities.Chunk{
				{ID: "c1", DocumentID: "doc1", Content: "one", Embedding: []float32{1, 0, 0}},
				{ID: "c2", DocumentID: "doc2", Content: "two", Embedding: []float32{0, 1, 0}},
			}))

			require.NoError(t, store.Delete(ctx, "doc1"))
			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			require.NoError(t, store.Clear(ctx))
			count, err = store.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewChromemStore(dir, false, nil)
	require.NoError(t, err)
	require.NoError(t, store.Store(ctx, []entities.Chunk{
		{ID: "c1", DocumentID: "doc1", Source: "a.pdf", Content: "kept", Embedding: []float32{1, 0, 0}},
	}))

	reopened, err := NewChromemStore(dir, false, nil)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity(nil, nil))
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := decodeEmbedding(encodeEmbedding(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

// bagOfWords is a deterministic embedder: each word increments one of 64 buckets.
type bagOfWords struct{}

func (bagOfWords) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,;:!?")))
		v[h.Sum32()%64]++
	}
	v[63] += 0.01
	return v, nil
}

func (b bagOfWords) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = b.Embed(ctx, text)
	}
	return out, nil
}

func TestIngestThenRetrieveRoundTrip(t *testing.T) {
	phrase := "the quarterly revenue of the lighthouse cooperative grew by eleven percent"
	others := []string{
		"Bananas are rich in potassium and are a popular breakfast fruit.",
		"The Go scheduler multiplexes goroutines onto operating system threads.",
		"Mount Everest is the highest mountain above sea level.",
		"Photosynthesis converts light energy into chemical energy in plants.",
	}

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			ingest := usecases.NewIngestUseCase(bagOfWords{}, store, nil, 120, 20, nil)

			for i, text := range others {
				_, err := ingest.Ingest(ctx, &entities.Document{ID: string(rune('a' + i)), Name: "other.pdf", Content: text})
				require.NoError(t, err)
			}
			_, err := ingest.Ingest(ctx, &entities.Document{
				ID:      "report",
				Name:    "report.pdf",
				Content: "Annual report. In summary, " + phrase + ". Other sections follow.",
			})
			require.NoError(t, err)

			results, err := usecases.NewRetriever(bagOfWords{}, store, usecases.DefaultTopK).Retrieve(ctx, phrase)
			require.NoError(t, err)
			require.LessOrEqual(t, len(results), 3)

			found := false
			for _, r := range results {
				if r.Chunk.DocumentID == "report" && strings.Contains(r.Chunk.Content, "lighthouse cooperative") {
					found = true
				}
			}
			assert.True(t, found, "ingested phrase not in top-3: %+v", results)
		})
	}
}
