// Command mock-backend runs a deterministic Chat Completions server for
// testing the generation pipeline without a real LLM. It inspects the
// system prompt to decide whether the caller is the logic stage or the
// render stage and answers with a fixed, well-formed payload.
//
// It also serves /v1/embeddings with hash-derived vectors so the
// retrieval sidecar can be exercised end to end.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("POST /v1/embeddings", handleEmbeddings)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int     `json:"index"`
	Message      chatMsg `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Canned stage payloads ---

const logicPayload = `{
  "title": "Mock Breakout",
  "gameType": "arcade",
  "description": "A paddle and ball game with destructible bricks.",
  "gameLogic": {
    "controls": "Move the paddle with the arrow keys.",
    "loop": "Ball bounces, bricks break on contact.",
    "win_condition": "All bricks destroyed.",
    "lose_condition": "Ball falls below the paddle three times.",
    "score_system": "10 points per brick."
  },
  "ui": {"canvas": {"width": 800, "height": 600}},
  "meta": {"difficulty": "medium"}
}`

const renderPayload = "```html\n<!DOCTYPE html>\n<html>\n<head><title>Mock Breakout</title></head>\n<body>\n<canvas id=\"game\" width=\"800\" height=\"600\"></canvas>\n<script>\nconst canvas = document.getElementById('game');\nconst ctx = canvas.getContext('2d');\nctx.fillStyle = '#222';\nctx.fillRect(0, 0, canvas.width, canvas.height);\n</script>\n</body>\n</html>\n```"

// --- Handlers ---

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	content := stagePayload(&req)

	if req.Stream {
		handleStreaming(w, &req, content)
		return
	}

	resp := chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  modelName(&req),
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMsg{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// stagePayload picks the canned answer by looking at the system prompt.
// The render stage asks for HTML output, the logic stage for a JSON
// game structure.
func stagePayload(req *chatRequest) string {
	for _, msg := range req.Messages {
		if msg.Role != "system" {
			continue
		}
		lower := strings.ToLower(msg.Content)
		if strings.Contains(lower, "html") {
			return renderPayload
		}
	}
	return logicPayload
}

func modelName(req *chatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return "mock-model"
}

// --- Streaming ---

func handleStreaming(w http.ResponseWriter, req *chatRequest, content string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	model := modelName(req)

	// Role chunk first, then the payload in fixed-size slices.
	writeSSEChunk(w, model, "", true)
	flusher.Flush()

	const sliceSize = 64
	chunks := 0
	for i := 0; i < len(content); i += sliceSize {
		end := i + sliceSize
		if end > len(content) {
			end = len(content)
		}
		writeSSEChunk(w, model, content[i:end], false)
		flusher.Flush()
		chunks++
	}

	writeFinishChunk(w, model, chunks)
	flusher.Flush()

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSEChunk(w http.ResponseWriter, model, content string, isRole bool) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
	}

	delta := map[string]any{}
	if isRole {
		delta["role"] = "assistant"
	}
	if content != "" {
		delta["content"] = content
	}

	chunk["choices"] = []any{
		map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": nil,
		},
	}

	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeFinishChunk(w http.ResponseWriter, model string, tokenCount int) {
	chunk := map[string]any{
		"id":     "chatcmpl-mock-stream",
		"object": "chat.completion.chunk",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         map[string]any{},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     50,
			"completion_tokens": tokenCount,
			"total_tokens":      50 + tokenCount,
		},
	}

	data, _ := json.Marshal(chunk)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// --- Embeddings endpoint ---

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// handleEmbeddings returns deterministic 8-dimensional vectors derived
// from a hash of the input text. Identical inputs always embed to the
// same vector, which is all the retrieval tests need.
func handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	data := make([]map[string]any, len(req.Input))
	for i, text := range req.Input {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": hashVector(text),
		}
	}

	resp := map[string]any{
		"object": "list",
		"model":  req.Model,
		"data":   data,
		"usage":  map[string]any{"prompt_tokens": len(req.Input) * 8, "total_tokens": len(req.Input) * 8},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func hashVector(text string) []float32 {
	vec := make([]float32, 8)
	for i := range vec {
		h := fnv.New32a()
		fmt.Fprintf(h, "%d:%s", i, text)
		vec[i] = float32(h.Sum32()%1000)/500.0 - 1.0
	}
	return vec
}

// --- Models endpoint ---

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "spielwerk-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
