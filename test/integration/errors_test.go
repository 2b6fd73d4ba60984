package integration

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/rhuss/spielwerk/pkg/api"
)

func TestGenerateEmptyPrompt(t *testing.T) {
	resp := postJSON(t, "/v1/games/generate", api.GenerateRequest{Prompt: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Success {
		t.Error("success = true, want false")
	}
	if envelope.Error == nil {
		t.Fatal("error payload is missing")
	}
	if envelope.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q, want %q", envelope.Error.Type, api.ErrorTypeInvalidRequest)
	}
	if envelope.Error.Param != "prompt" {
		t.Errorf("error param = %q, want \"prompt\"", envelope.Error.Param)
	}
}

func TestGenerateMalformedJSON(t *testing.T) {
	resp, err := http.Post(testEnv.Server.URL+"/v1/games/generate",
		"application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateWrongContentType(t *testing.T) {
	resp, err := http.Post(testEnv.Server.URL+"/v1/games/generate",
		"text/plain", bytes.NewReader([]byte(`{"prompt":"a game"}`)))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestIterateInvalidConversationID(t *testing.T) {
	resp := postJSON(t, "/v1/games/iterate", api.IterateRequest{
		ConversationID:  "not-a-uuid",
		BaseMessageID:   "00000000-0000-0000-0000-000000000000",
		IterationPrompt: "Add a boss",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	envelope := decodeEnvelope(t, resp)
	if envelope.Error == nil || envelope.Error.Param != "conversation_id" {
		t.Errorf("error = %+v, want param \"conversation_id\"", envelope.Error)
	}
}

func TestUnknownConversation(t *testing.T) {
	resp := get(t, "/v1/conversations/00000000-0000-0000-0000-000000000000")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, testEnv.Server.URL+"/v1/conversations", nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("X-Request-ID", "req-integration-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-integration-1" {
		t.Errorf("X-Request-ID = %q, want passthrough", got)
	}
}
