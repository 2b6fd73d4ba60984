package retrieval

import "context"

// VectorStoreBackend is the pluggable interface for vector databases.
// All vector compute (storage, indexing, search) happens externally;
// this interface abstracts the specific vector DB implementation.
type VectorStoreBackend interface {
	// EnsureCollection creates the named collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// Upsert stores document chunks with their embedding vectors.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a nearest-neighbor search in the named collection.
	Search(ctx context.Context, collection string, vector []float32, maxResults int) ([]SearchMatch, error)
}

// Point is one chunk of a document with its embedding.
type Point struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]string
}

// SearchMatch represents a single search result from the vector store.
type SearchMatch struct {
	DocumentID string
	Score      float32
	Content    string
	Metadata   map[string]string
}

// Source returns the human-readable origin of a match for attribution in
// the reference section, falling back to the document ID.
func (m SearchMatch) Source() string {
	if s, ok := m.Metadata["source"]; ok && s != "" {
		return s
	}
	if s, ok := m.Metadata["title"]; ok && s != "" {
		return s
	}
	return m.DocumentID
}
