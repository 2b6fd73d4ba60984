package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/provider"
)

// Client performs HTTP requests against an OpenAI-compatible Chat
// Completions backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// UseStreaming makes Complete request a streamed response and
	// accumulate the deltas. Some backends enforce shorter timeouts on
	// non-streaming requests, which matters for multi-minute generations.
	UseStreaming bool

	// ModelMapper is an optional function that transforms the model name
	// before sending it to the backend. If nil, the model name is used as-is.
	ModelMapper func(string) string
}

var _ provider.ModelClient = (*Client)(nil)

// NewClient creates a new Client for an OpenAI-compatible backend.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	// Normalize: remove trailing slash from base URL.
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Name returns the adapter identifier.
func (c *Client) Name() string {
	return "openaicompat"
}

// Complete performs inference against the Chat Completions endpoint and
// returns the accumulated assistant text.
func (c *Client) Complete(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	chatReq := c.translate(req)

	if c.UseStreaming {
		return c.completeStreaming(ctx, chatReq)
	}

	httpResp, err := c.post(ctx, chatReq, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	if len(chatResp.Choices) == 0 {
		return nil, provider.NewTransportError(0, "backend returned no choices")
	}
	choice := chatResp.Choices[0]

	resp := &provider.ChatResponse{
		Text:         choice.Message.Content,
		Model:        chatResp.Model,
		FinishReason: choice.FinishReason,
	}
	if chatResp.Usage != nil {
		resp.Usage = api.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		}
	}
	return resp, nil
}

func (c *Client) completeStreaming(ctx context.Context, chatReq ChatCompletionRequest) (*provider.ChatResponse, error) {
	chatReq.Stream = true
	chatReq.StreamOptions = &ChatStreamOptions{IncludeUsage: true}

	httpResp, err := c.post(ctx, chatReq, true)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	return AccumulateSSE(ctx, httpResp.Body)
}

func (c *Client) post(ctx context.Context, chatReq ChatCompletionRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	client := c.httpClient
	if stream {
		// No fixed timeout for streaming. A stream can legitimately last
		// longer than any fixed timeout; the context controls the request
		// lifetime instead.
		client = &http.Client{Transport: c.httpClient.Transport}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, MapHTTPError(httpResp)
	}
	return httpResp, nil
}

func (c *Client) translate(req *provider.ChatRequest) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
		N:           1,
	}
	if c.ModelMapper != nil {
		cr.Model = c.ModelMapper(cr.Model)
	}

	// Chat Completions carries the system prompt as a leading message.
	if req.System != "" {
		cr.Messages = append(cr.Messages, ChatMessage{
			Role:    provider.RoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		cr.Messages = append(cr.Messages, ChatMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return cr
}

// ListModels returns available models from the backend by querying the
// /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.baseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	var models []provider.ModelInfo
	for _, m := range modelsResp.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
		})
	}

	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
