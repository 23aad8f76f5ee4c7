// Package entities contains core business entities.
// These are pure domain objects with no knowledge of providers, storage or transport.
package entities

import "time"

// Document represents a source document (PDF, TXT, MD) handed to ingestion.
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk represents a bounded slice of a document, stored with its embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string    // Document name for attribution
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Vector representation (populated by adapter)
}

// QueryResult represents a retrieved chunk with its similarity score.
type QueryResult struct {
	Chunk     Chunk
	Score     float64
	SourceDoc string
}

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}
