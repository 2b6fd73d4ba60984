package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/spielwerk/pkg/provider"
)

func TestCompleteNonStreaming(t *testing.T) {
	var gotReq ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Model: "gpt-test",
			Choices: []ChatChoice{{
				Message:      ChatMessage{Role: "assistant", Content: "hello world"},
				FinishReason: "stop",
			}},
			Usage: &ChatUsage{PromptTokens: 12, CompletionTokens: 3},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", 5*time.Second)
	resp, err := c.Complete(context.Background(), &provider.ChatRequest{
		Model:  "gpt-test",
		System: "you are terse",
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: "say hello"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("system prompt not prepended: %+v", gotReq.Messages)
	}
	if gotReq.Stream {
		t.Error("stream should be false")
	}
}

func TestCompleteStreamingAccumulates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream || req.StreamOptions == nil || !req.StreamOptions.IncludeUsage {
			t.Errorf("stream options not set: %+v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"<!doctype html>", "<html>", "</html>"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, `data: {"choices":[{"delta":{},"finish_reason":"stop"}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[],"usage":{"prompt_tokens":100,"completion_tokens":50}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	c.UseStreaming = true
	resp, err := c.Complete(context.Background(), &provider.ChatRequest{
		Model:    "m",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "p"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "<!doctype html><html></html>" {
		t.Errorf("accumulated text = %q", resp.Text)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.InputTokens != 100 || resp.Usage.OutputTokens != 50 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestCompleteStreamingSkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"ok "}}]}`+"\n\n")
		fmt.Fprint(w, "data: {not json\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"fine"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	c.UseStreaming = true
	resp, err := c.Complete(context.Background(), &provider.ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "ok fine" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestCompleteHTTPErrorMapping(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		wantMsg   string
		retryable bool
	}{
		{http.StatusTooManyRequests, `{"error":{"message":"rate limited"}}`, "rate limited", true},
		{http.StatusBadRequest, `{"error":{"message":"bad model"}}`, "bad model", false},
		{http.StatusInternalServerError, "", "Internal Server Error", true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, tt.body)
		}))

		c := NewClient(srv.URL, "", 5*time.Second)
		_, err := c.Complete(context.Background(), &provider.ChatRequest{Model: "m"})
		srv.Close()

		var te *provider.TransportError
		if !errors.As(err, &te) {
			t.Fatalf("status %d: error = %v, want TransportError", tt.status, err)
		}
		if te.StatusCode != tt.status {
			t.Errorf("status = %d, want %d", te.StatusCode, tt.status)
		}
		if te.Message != tt.wantMsg {
			t.Errorf("message = %q, want %q", te.Message, tt.wantMsg)
		}
		if te.Retryable != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, te.Retryable, tt.retryable)
		}
	}
}

func TestCompleteConnectionError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)
	_, err := c.Complete(context.Background(), &provider.ChatRequest{Model: "m"})

	var te *provider.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TransportError", err)
	}
	if te.StatusCode != 0 || !te.Retryable {
		t.Errorf("connection error = %+v", te)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ChatModelsResponse{
			Object: "list",
			Data:   []ChatModel{{ID: "gpt-test", Object: "model", OwnedBy: "org"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].ID != "gpt-test" {
		t.Errorf("models = %+v", models)
	}
}

func TestModelMapper(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "mapped-model" {
			t.Errorf("model = %q, want mapped-model", req.Model)
		}
		json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []ChatChoice{{Message: ChatMessage{Content: "x"}, FinishReason: "stop"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	c.ModelMapper = func(string) string { return "mapped-model" }
	if _, err := c.Complete(context.Background(), &provider.ChatRequest{Model: "original"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}
