package transport

import (
	"context"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/retrieval"
)

// GameGenerator handles the two generation operations. The pipeline
// orchestrator is the production implementation.
type GameGenerator interface {
	Generate(ctx context.Context, req *api.GenerateRequest) (*api.GameResult, error)
	Iterate(ctx context.Context, req *api.IterateRequest) (*api.GameResult, error)
}

// DocumentIngester loads documents into the retrieval index. The retrieval
// sidecar is the production implementation.
type DocumentIngester interface {
	Ingest(ctx context.Context, docs []retrieval.Document) (int, error)
}

// ConversationStore handles conversation persistence and retrieval.
// Implementations scope all operations to the tenant carried in the
// context, treat soft-deleted conversations as absent, and report missing
// records with storage.ErrNotFound.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *api.Conversation) error
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)
	ListConversations(ctx context.Context, opts ListOptions) (*ConversationList, error)
	AppendMessage(ctx context.Context, conversationID string, msg *api.Message) error
	GetMessage(ctx context.Context, conversationID, messageID string) (*api.Message, error)
	DeleteConversation(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// ListOptions controls pagination and ordering for conversation listing.
type ListOptions struct {
	After string // Cursor: return items after this conversation ID.
	Limit int    // Maximum number of items to return (default 20, max 100).
	Order string // Sort order by update time: "asc" or "desc" (default "desc").
}

// ConversationList holds one page of conversation summaries.
type ConversationList struct {
	Object  string                    `json:"object"`
	Data    []api.ConversationSummary `json:"data"`
	FirstID string                    `json:"first_id,omitempty"`
	LastID  string                    `json:"last_id,omitempty"`
	HasMore bool                      `json:"has_more"`
}
