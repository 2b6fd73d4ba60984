package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/provider"
)

// AccumulateSSE reads Chat Completions SSE chunks from the given reader and
// accumulates all text deltas into a single ChatResponse. The pipeline only
// consumes complete responses, so streamed output is collapsed here rather
// than exposed delta by delta.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped. Context cancellation stops
// reading immediately.
func AccumulateSSE(ctx context.Context, body io.Reader) (*provider.ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	resp := &provider.ChatResponse{FinishReason: "stop"}
	var text strings.Builder

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		line := scanner.Text()

		// SSE lines that don't start with "data: " are ignored
		// (empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"error", err.Error(),
				"data", Truncate(payload, 200),
			)
			continue
		}

		if chunk.Model != "" {
			resp.Model = chunk.Model
		}
		// Usage arrives on the final chunk when stream_options.include_usage
		// is set; some backends send it on a choice-less trailer chunk.
		if chunk.Usage != nil {
			resp.Usage = api.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != nil {
			text.WriteString(*choice.Delta.Content)
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			resp.FinishReason = *choice.FinishReason
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, provider.NewTransportError(0, "SSE stream read error: "+err.Error())
	}

	resp.Text = text.String()
	return resp, nil
}

// Truncate limits a string to maxLen characters for log output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
