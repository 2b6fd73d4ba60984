package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/debug"
)

const (
	// DefaultTopK is the number of reference chunks injected into a prompt.
	DefaultTopK = 3

	// DefaultTimeout bounds one full augment round trip (embed + search).
	DefaultTimeout = 5 * time.Second

	referenceHeader = "--- Reference material (for inspiration, not requirements) ---"
	referenceFooter = "--- End of reference material ---"
)

// Sidecar enriches prompts with reference material from a vector store.
// A nil Sidecar is valid and disables retrieval.
type Sidecar struct {
	backend    VectorStoreBackend
	embedder   EmbeddingClient
	collection string

	// TopK is the number of matches to inject. Zero means DefaultTopK.
	TopK int

	// Timeout bounds one augment round trip. Zero means DefaultTimeout.
	Timeout time.Duration
}

// NewSidecar creates a retrieval sidecar reading from the given collection.
func NewSidecar(backend VectorStoreBackend, embedder EmbeddingClient, collection string) *Sidecar {
	return &Sidecar{
		backend:    backend,
		embedder:   embedder,
		collection: collection,
	}
}

// Augment returns the prompt enriched with a delimited reference section,
// plus the injected reference text for auditing. Retrieval is best effort:
// on any failure the original prompt is returned with an empty reference
// string, never an error.
func (s *Sidecar) Augment(ctx context.Context, prompt string) (string, string) {
	if s == nil || s.backend == nil || s.embedder == nil {
		return prompt, ""
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vectors, err := s.embedder.Embed(ctx, []string{prompt})
	if err != nil || len(vectors) == 0 {
		slog.Warn("retrieval embedding failed, continuing without context", "error", err)
		return prompt, ""
	}

	topK := s.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	matches, err := s.backend.Search(ctx, s.collection, vectors[0], topK)
	if err != nil {
		slog.Warn("retrieval search failed, continuing without context", "error", err)
		return prompt, ""
	}
	if len(matches) == 0 {
		debug.Log("retrieval", "no matches", "collection", s.collection)
		return prompt, ""
	}

	refs := formatReferences(matches)
	debug.Log("retrieval", "augmented prompt",
		"matches", len(matches),
		"reference_bytes", len(refs),
	)
	return prompt + "\n\n" + refs, refs
}

// formatReferences renders matches as a delimited block with per-chunk
// source attribution.
func formatReferences(matches []SearchMatch) string {
	var b strings.Builder
	b.WriteString(referenceHeader)
	b.WriteString("\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] (source: %s)\n%s\n", i+1, m.Source(), strings.TrimSpace(m.Content))
	}
	b.WriteString(referenceFooter)
	return b.String()
}

// Document is raw reference material to ingest into the vector store.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Ingest chunks the documents, embeds each chunk, and upserts them into
// the sidecar's collection. Unlike Augment, ingestion reports failures so
// callers can surface them on the management API.
func (s *Sidecar) Ingest(ctx context.Context, docs []Document) (int, error) {
	if s == nil || s.backend == nil || s.embedder == nil {
		return 0, fmt.Errorf("retrieval is not configured")
	}

	var points []Point
	var texts []string
	for _, doc := range docs {
		id := doc.ID
		if id == "" {
			id = api.NewDocumentID()
		}
		for i, chunk := range ChunkText(doc.Content, defaultChunkSize, defaultChunkOverlap) {
			points = append(points, Point{
				Content: chunk,
				Metadata: map[string]string{
					"source":   doc.Source,
					"document": id,
					"chunk":    fmt.Sprintf("%d", i),
				},
			})
			texts = append(texts, chunk)
		}
	}
	if len(points) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding document chunks: %w", err)
	}
	for i := range points {
		points[i].Vector = vectors[i]
	}

	if err := s.backend.EnsureCollection(ctx, s.collection, s.embedder.Dimensions()); err != nil {
		return 0, fmt.Errorf("ensuring collection: %w", err)
	}
	if err := s.backend.Upsert(ctx, s.collection, points); err != nil {
		return 0, fmt.Errorf("upserting chunks: %w", err)
	}

	slog.Info("ingested reference documents",
		"documents", len(docs),
		"chunks", len(points),
		"collection", s.collection,
	)
	return len(points), nil
}

const (
	defaultChunkSize    = 1200
	defaultChunkOverlap = 200
)

// ChunkText splits text into overlapping chunks, preferring paragraph
// boundaries and falling back to a hard split for oversized paragraphs.
func ChunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	paragraphs := strings.Split(text, "\n\n")
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len()+len(p) > size && current.Len() > 0 {
			flush()
		}
		// A single paragraph larger than the chunk size gets a hard split
		// with overlap.
		for len(p) > size {
			chunks = append(chunks, p[:size])
			p = p[size-overlap:]
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	flush()
	return chunks
}
