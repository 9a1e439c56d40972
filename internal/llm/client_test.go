package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/interfaces"
)

const completionBody = `{"id":"c1","object":"chat.completion","created":1,"model":"m",
"choices":[{"index":0,"message":{"role":"assistant","content":"{\"narration\":\"风起\"}"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":11,"completion_tokens":7,"total_tokens":18}}`

func newTestClient(url string) *Client {
	c := NewClient(config.LLMConfig{BaseURL: url + "/v1", APIKey: "k", Model: "default-model", Timeout: 5 * time.Second}, zerolog.Nop())
	c.retryDelay = time.Millisecond
	return c
}

func TestGenerateSendsModelAndFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Generate(context.Background(), &interfaces.GenerationRequest{
		Prompt: "讲个故事",
		Format: interfaces.FormatJSON,
		Model:  "light-model",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != `{"narration":"风起"}` {
		t.Fatalf("content = %q", resp.Content)
	}
	if resp.Metadata.TotalTokens != 18 || resp.Metadata.PromptTokens != 11 || resp.Metadata.Model != "light-model" {
		t.Fatalf("metadata = %+v", resp.Metadata)
	}
	if got["model"] != "light-model" {
		t.Fatalf("model sent = %v", got["model"])
	}
	format, _ := got["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("response_format = %v", got["response_format"])
	}
}

func TestGenerateUsesDefaultModel(t *testing.T) {
	var model string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		model, _ = body["model"].(string)
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), &interfaces.GenerationRequest{Prompt: "p"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if model != "default-model" {
		t.Fatalf("model = %q", model)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), &interfaces.GenerationRequest{Prompt: "p"}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Generate(context.Background(), &interfaces.GenerationRequest{Prompt: "p"}); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	if _, err := newTestClient("http://unused").Generate(context.Background(), &interfaces.GenerationRequest{}); err == nil {
		t.Fatal("expected error")
	}
}
