package provider

import (
	"context"

	"github.com/rhuss/spielwerk/pkg/api"
)

// Roles used in ChatRequest messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ModelClient abstracts an LLM inference backend. Pipeline stages hold a
// ModelClient and never see the wire protocol behind it.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type ModelClient interface {
	// Name returns the adapter identifier (e.g., "openaicompat", "anthropic").
	Name() string

	// Complete performs a single inference call and returns the full
	// assistant text. Adapters that stream internally accumulate the
	// deltas before returning.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ListModels returns available models from the backend.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// Close releases client resources (HTTP clients, connections).
	Close() error
}

// ChatRequest is the backend-facing request. It contains only what the
// adapter needs, stripped of transport and storage concerns.
type ChatRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// Message is one turn of the conversation sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the backend's complete response, reduced to the single
// assistant text the pipeline consumes.
type ChatResponse struct {
	Text         string    `json:"text"`
	Model        string    `json:"model"`
	FinishReason string    `json:"finish_reason"`
	Usage        api.Usage `json:"usage"`
}

// ModelInfo holds information about a model served by the backend.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}
