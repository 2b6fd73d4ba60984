package api

import "time"

// Usage reports token consumption for a single upstream model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// GenerateRequest is the client request to produce a new game from a
// natural-language prompt. ConversationID is optional; when present the
// result is appended to that conversation, otherwise a new conversation is
// started.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// IterateRequest is the client request to improve an existing game. The
// base message identifies the prior result whose summary fields seed the
// new generation prompt.
type IterateRequest struct {
	ConversationID  string   `json:"conversation_id"`
	BaseMessageID   string   `json:"base_message_id"`
	IterationPrompt string   `json:"iteration_prompt"`
	KeepElements    []string `json:"keep_elements,omitempty"`
	ChangeElements  []string `json:"change_elements,omitempty"`
}

// GameResult is the complete outcome of a successful pipeline run: the
// playable HTML document plus summary metadata and placeholder media.
type GameResult struct {
	HTML           string   `json:"html"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	GameType       string   `json:"game_type"`
	LogicSummary   string   `json:"logic_summary"`
	ImageResources []string `json:"image_resources"`
	AudioResources []string `json:"audio_resources"`

	// ConversationID and MessageID are set after persistence.
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`

	// ExecutionChain is the ordered list of completed stage names, kept for
	// diagnostics and for distinguishing complete runs from partial ones.
	ExecutionChain []string `json:"execution_chain,omitempty"`

	// UsageStats maps stage name to the token usage of its model call.
	UsageStats map[string]Usage `json:"usage_stats,omitempty"`
}

// GenerateResponse is the top-level HTTP response envelope.
type GenerateResponse struct {
	Success   bool        `json:"success"`
	Data      *GameResult `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Message is one generation exchange within a conversation: the prompt that
// triggered it and the resulting game payload.
type Message struct {
	ID               string      `json:"id"`
	UserPrompt       string      `json:"user_prompt"`
	EnhancedPrompt   string      `json:"enhanced_prompt,omitempty"`
	RetrievalContext string      `json:"retrieval_context,omitempty"`
	ParentMessageID  string      `json:"parent_message_id,omitempty"`
	Game             *GameResult `json:"game,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Conversation is an ordered history of generation exchanges.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is the list-view projection of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
