package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeBackend implements VectorStoreBackend for tests.
type fakeBackend struct {
	matches   []SearchMatch
	searchErr error
	upserted  []Point
	ensured   bool
}

func (f *fakeBackend) EnsureCollection(ctx context.Context, name string, dims int) error {
	f.ensured = true
	return nil
}

func (f *fakeBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeBackend) Search(ctx context.Context, collection string, vector []float32, maxResults int) ([]SearchMatch, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if maxResults < len(f.matches) {
		return f.matches[:maxResults], nil
	}
	return f.matches, nil
}

// fakeEmbedder implements EmbeddingClient for tests.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

func TestAugmentInjectsReferences(t *testing.T) {
	backend := &fakeBackend{matches: []SearchMatch{
		{DocumentID: "d1", Content: "snake games use a grid", Metadata: map[string]string{"source": "design-notes.md"}},
		{DocumentID: "d2", Content: "keep the loop under 16ms"},
	}}
	s := NewSidecar(backend, &fakeEmbedder{}, "refs")

	augmented, refs := s.Augment(context.Background(), "make a snake game")
	if !strings.HasPrefix(augmented, "make a snake game") {
		t.Errorf("original prompt not preserved: %q", augmented)
	}
	if !strings.Contains(augmented, referenceHeader) || !strings.Contains(augmented, referenceFooter) {
		t.Error("reference section not delimited")
	}
	if !strings.Contains(refs, "(source: design-notes.md)") {
		t.Errorf("missing source attribution: %q", refs)
	}
	if !strings.Contains(refs, "(source: d2)") {
		t.Errorf("missing document ID fallback: %q", refs)
	}
}

func TestAugmentNeverFails(t *testing.T) {
	tests := []struct {
		name string
		s    *Sidecar
	}{
		{"nil sidecar", nil},
		{"embedder down", NewSidecar(&fakeBackend{}, &fakeEmbedder{err: errors.New("boom")}, "refs")},
		{"search down", NewSidecar(&fakeBackend{searchErr: errors.New("boom")}, &fakeEmbedder{}, "refs")},
		{"no matches", NewSidecar(&fakeBackend{}, &fakeEmbedder{}, "refs")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			augmented, refs := tt.s.Augment(context.Background(), "prompt")
			if augmented != "prompt" {
				t.Errorf("prompt changed: %q", augmented)
			}
			if refs != "" {
				t.Errorf("refs = %q, want empty", refs)
			}
		})
	}
}

func TestAugmentRespectsTopK(t *testing.T) {
	backend := &fakeBackend{matches: []SearchMatch{
		{DocumentID: "1", Content: "a"},
		{DocumentID: "2", Content: "b"},
		{DocumentID: "3", Content: "c"},
		{DocumentID: "4", Content: "d"},
	}}
	s := NewSidecar(backend, &fakeEmbedder{}, "refs")

	_, refs := s.Augment(context.Background(), "p")
	if strings.Contains(refs, "[4]") {
		t.Errorf("more than %d matches injected: %q", DefaultTopK, refs)
	}
	if !strings.Contains(refs, "[3]") {
		t.Errorf("expected %d matches: %q", DefaultTopK, refs)
	}
}

func TestIngestChunksAndUpserts(t *testing.T) {
	backend := &fakeBackend{}
	s := NewSidecar(backend, &fakeEmbedder{}, "refs")

	n, err := s.Ingest(context.Background(), []Document{
		{Source: "guide.md", Content: strings.Repeat("paragraph one.\n\n", 200)},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n < 2 {
		t.Errorf("chunks = %d, want multiple", n)
	}
	if !backend.ensured {
		t.Error("collection not ensured")
	}
	if len(backend.upserted) != n {
		t.Errorf("upserted = %d, want %d", len(backend.upserted), n)
	}
	if backend.upserted[0].Metadata["source"] != "guide.md" {
		t.Errorf("metadata = %v", backend.upserted[0].Metadata)
	}
	if len(backend.upserted[0].Vector) != 3 {
		t.Errorf("vector not attached: %v", backend.upserted[0].Vector)
	}
}

func TestIngestUnconfigured(t *testing.T) {
	var s *Sidecar
	if _, err := s.Ingest(context.Background(), nil); err == nil {
		t.Error("expected error from nil sidecar")
	}
}

func TestChunkText(t *testing.T) {
	if got := ChunkText("", 100, 10); got != nil {
		t.Errorf("empty input = %v", got)
	}
	if got := ChunkText("short", 100, 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short input = %v", got)
	}

	long := strings.Repeat("x", 250)
	chunks := ChunkText(long, 100, 20)
	if len(chunks) < 3 {
		t.Errorf("hard split chunks = %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk exceeds size: %d", len(c))
		}
	}
}
