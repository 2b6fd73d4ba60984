package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/provider"
)

const (
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 8192
)

// Client performs HTTP requests against the Anthropic Messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ provider.ModelClient = (*Client)(nil)

// NewClient creates a new Client for the Anthropic Messages API. An empty
// baseURL defaults to the public endpoint.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 300 * time.Second
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
	return "anthropic"
}

// Complete performs inference against the Messages endpoint. Text content
// blocks are concatenated into the response text.
func (c *Client) Complete(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	msgReq := messagesRequest{
		Model:         req.Model,
		System:        req.System,
		Temperature:   req.Temperature,
		StopSequences: req.Stop,
		MaxTokens:     defaultMaxTokens,
	}
	if req.MaxTokens != nil {
		msgReq.MaxTokens = *req.MaxTokens
	}
	for _, m := range req.Messages {
		msgReq.Messages = append(msgReq.Messages, message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	body, err := json.Marshal(msgReq)
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.NewTransportError(0, err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&msgResp); err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &provider.ChatResponse{
		Text:         text.String(),
		Model:        msgResp.Model,
		FinishReason: mapStopReason(msgResp.StopReason),
		Usage: api.Usage{
			InputTokens:  msgResp.Usage.InputTokens,
			OutputTokens: msgResp.Usage.OutputTokens,
		},
	}, nil
}

// ListModels queries the /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.baseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("X-Api-Key", c.apiKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, provider.NewTransportError(0, err.Error())
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var listResp modelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&listResp); err != nil {
		return nil, provider.NewTransportError(0,
			fmt.Sprintf("failed to parse models response: %s", err.Error()))
	}

	var models []provider.ModelInfo
	for _, m := range listResp.Data {
		models = append(models, provider.ModelInfo{ID: m.ID, Object: m.Type})
	}
	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func mapHTTPError(resp *http.Response) *provider.TransportError {
	message := http.StatusText(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		var errResp errorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
	}
	return provider.NewTransportError(resp.StatusCode, message)
}

// mapStopReason normalizes Anthropic stop reasons to the Chat Completions
// vocabulary the pipeline logs.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
