package api

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxPromptSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxPromptSize: 64 * 1024, // 64KB
	}
}

// ValidateGenerateRequest checks a GenerateRequest for validity. It returns
// an *APIError describing the first validation failure, or nil if the
// request is valid.
func ValidateGenerateRequest(req *GenerateRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Prompt) == "" {
		return NewInvalidRequestError("prompt", "prompt is required")
	}

	if cfg.MaxPromptSize > 0 && len(req.Prompt) > cfg.MaxPromptSize {
		return NewInvalidRequestError("prompt",
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxPromptSize))
	}

	if req.ConversationID != "" {
		if _, err := uuid.Parse(req.ConversationID); err != nil {
			return NewInvalidRequestError("conversation_id", "conversation_id must be a UUID")
		}
	}

	return nil
}

// ValidateIterateRequest checks an IterateRequest for validity.
func ValidateIterateRequest(req *IterateRequest, cfg ValidationConfig) *APIError {
	if req.ConversationID == "" {
		return NewInvalidRequestError("conversation_id", "conversation_id is required")
	}
	if _, err := uuid.Parse(req.ConversationID); err != nil {
		return NewInvalidRequestError("conversation_id", "conversation_id must be a UUID")
	}

	if req.BaseMessageID == "" {
		return NewInvalidRequestError("base_message_id", "base_message_id is required")
	}

	if strings.TrimSpace(req.IterationPrompt) == "" {
		return NewInvalidRequestError("iteration_prompt", "iteration_prompt is required")
	}

	if cfg.MaxPromptSize > 0 && len(req.IterationPrompt) > cfg.MaxPromptSize {
		return NewInvalidRequestError("iteration_prompt",
			fmt.Sprintf("iteration_prompt exceeds maximum of %d bytes", cfg.MaxPromptSize))
	}

	return nil
}
