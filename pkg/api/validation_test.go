package api

import (
	"strings"
	"testing"
)

func TestValidateGenerateRequest(t *testing.T) {
	cfg := DefaultValidationConfig()

	tests := []struct {
		name      string
		req       GenerateRequest
		wantParam string // empty means valid
	}{
		{"valid", GenerateRequest{Prompt: "a simple snake game"}, ""},
		{"valid with conversation", GenerateRequest{Prompt: "snake", ConversationID: NewConversationID()}, ""},
		{"empty prompt", GenerateRequest{}, "prompt"},
		{"whitespace prompt", GenerateRequest{Prompt: "   \n\t"}, "prompt"},
		{"oversized prompt", GenerateRequest{Prompt: strings.Repeat("x", cfg.MaxPromptSize+1)}, "prompt"},
		{"bad conversation id", GenerateRequest{Prompt: "snake", ConversationID: "not-a-uuid"}, "conversation_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGenerateRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestValidateIterateRequest(t *testing.T) {
	cfg := DefaultValidationConfig()
	convID := NewConversationID()

	tests := []struct {
		name      string
		req       IterateRequest
		wantParam string
	}{
		{"valid", IterateRequest{ConversationID: convID, BaseMessageID: NewMessageID(), IterationPrompt: "make it faster"}, ""},
		{"missing conversation", IterateRequest{BaseMessageID: "m", IterationPrompt: "p"}, "conversation_id"},
		{"bad conversation id", IterateRequest{ConversationID: "nope", BaseMessageID: "m", IterationPrompt: "p"}, "conversation_id"},
		{"missing base message", IterateRequest{ConversationID: convID, IterationPrompt: "p"}, "base_message_id"},
		{"missing prompt", IterateRequest{ConversationID: convID, BaseMessageID: "m"}, "iteration_prompt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIterateRequest(&tt.req, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}
