package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQdrantSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/refs/points/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req qdrantSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Limit != 3 || !req.WithPayload {
			t.Errorf("request = %+v", req)
		}
		fmt.Fprint(w, `{"result":[
			{"id":"abc","score":0.9,"payload":{"content":"grid movement","source":"notes.md"}},
			{"id":7,"score":0.5,"payload":{"content":"second"}}
		]}`)
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL)
	matches, err := q.Search(context.Background(), "refs", []float32{0.1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d", len(matches))
	}
	if matches[0].Content != "grid movement" || matches[0].Metadata["source"] != "notes.md" {
		t.Errorf("match = %+v", matches[0])
	}
	// Numeric point IDs are stringified.
	if matches[1].DocumentID != "7" {
		t.Errorf("id = %q", matches[1].DocumentID)
	}
}

func TestQdrantSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"status":{"error":"collection not found"}}`)
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL)
	if _, err := q.Search(context.Background(), "missing", []float32{0.1}, 3); err == nil {
		t.Error("expected error for 404")
	}
}

func TestQdrantEnsureCollection(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			created = true
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			vectors := body["vectors"].(map[string]any)
			if vectors["size"].(float64) != 384 || vectors["distance"] != "Cosine" {
				t.Errorf("vectors = %v", vectors)
			}
			fmt.Fprint(w, `{"result":true}`)
		}
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL)
	if err := q.EnsureCollection(context.Background(), "refs", 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	if !created {
		t.Error("collection not created")
	}
}

func TestQdrantEnsureCollectionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			t.Error("existing collection must not be recreated")
		}
		fmt.Fprint(w, `{"result":{"status":"green"}}`)
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL)
	if err := q.EnsureCollection(context.Background(), "refs", 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
}

func TestQdrantUpsert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/refs/points" || r.Method != http.MethodPut {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Points) != 1 {
			t.Fatalf("points = %d", len(body.Points))
		}
		p := body.Points[0]
		if p.ID == "" {
			t.Error("missing generated point ID")
		}
		if p.Payload["content"] != "chunk text" || p.Payload["source"] != "doc.md" {
			t.Errorf("payload = %v", p.Payload)
		}
		fmt.Fprint(w, `{"result":{"status":"completed"}}`)
	}))
	defer srv.Close()

	q := NewQdrant(srv.URL)
	err := q.Upsert(context.Background(), "refs", []Point{{
		Vector:   []float32{0.1, 0.2},
		Content:  "chunk text",
		Metadata: map[string]string{"source": "doc.md"},
	}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}
