// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/0xcro3dile/ira-go/internal/domain/entities"
)

// EmbeddingService generates vector embeddings for text.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// LLMService is a chat-completion client bound to one model.
type LLMService interface {
	// Generate produces one model turn for the request.
	// Failures are wrapped with entities.ErrProvider.
	Generate(ctx context.Context, req *entities.GenerateRequest) (*entities.GenerateResponse, error)

	// Model returns the provider model identifier.
	Model() string
}

// ModelSelector maps a model choice and session credentials to a client.
// Missing or invalid credentials fail with entities.ErrConfiguration
// before any network call.
type ModelSelector interface {
	Select(choice entities.ModelChoice, creds entities.Credentials) (LLMService, error)
}

// VectorStore persists and queries document embeddings.
type VectorStore interface {
	// Store saves chunks with their embeddings.
	Store(ctx context.Context, chunks []entities.Chunk) error

	// Search finds the most similar chunks to a query embedding, best first.
	Search(ctx context.Context, embedding []float32, topK int) ([]entities.QueryResult, error)

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats.
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf").
	SupportedFormats() []string
}

// DocumentRetriever returns the chunks most similar to a query, best first.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, query string) ([]entities.QueryResult, error)
}

// SearchProvider runs a free-text web search.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]entities.SearchResult, error)
}

// PageFetcher retrieves readable text for a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Tool is a capability the research loop can invoke on the model's behalf.
// A failed call returns an error wrapping entities.ErrToolFailure; its message
// is handed back to the model as the observation.
type Tool interface {
	Definition() entities.ToolDefinition
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Metrics records workflow observations.
type Metrics interface {
	ObserveRoute(route entities.Route)
	ObserveToolCall(tool string, failed bool)
	ObserveInvocation(route entities.Route, outcome string, elapsed time.Duration)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

// String returns the operation name.
func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
