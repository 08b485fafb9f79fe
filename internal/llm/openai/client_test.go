package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/pdftest"
)

func TestIsReasoningModel(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  bool
	}{
		{name: "o3 mini", model: "o3-mini", want: true},
		{name: "o1", model: "o1", want: true},
		{name: "gpt5 variant", model: "gpt-5-mini", want: true},
		{name: "uppercase", model: " O4-mini ", want: true},
		{name: "gpt4o", model: "gpt-4o", want: false},
		{name: "empty", model: "", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := isReasoningModel(tt.model); got != tt.want {
				t.Fatalf("isReasoningModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresKeyAndModel(t *testing.T) {
	if _, err := NewClient(Options{Model: "gpt-4o"}); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewClient(Options{APIKey: "sk-test"}); err == nil {
		t.Fatal("expected missing model error")
	}
}

type capturedRequest struct {
	Model               string `json:"model"`
	MaxTokens           int    `json:"max_tokens"`
	MaxCompletionTokens int    `json:"max_completion_tokens"`
	ResponseFormat      struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, reply string, captured *capturedRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": captured.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteSendsSessionSnapshot(t *testing.T) {
	var captured capturedRequest
	srv := newTestServer(t, ` {"is_contiguous":true} `, &captured)

	client, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	doc := pdftest.Write(t, t.TempDir(), "merged_bank_1.pdf", "Statement period January")

	session := llm.NewSession(client, "analyst").WithDocument(doc).WithText("context", `{"a":1}`)
	got, err := session.Ask(context.Background(), "Check continuity")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got != `{"is_contiguous":true}` {
		t.Fatalf("unexpected reply %q", got)
	}

	if captured.Model != "gpt-4o" || captured.ResponseFormat.Type != "json_object" {
		t.Fatalf("unexpected request %+v", captured)
	}
	if captured.MaxTokens == 0 || captured.MaxCompletionTokens != 0 {
		t.Fatalf("expected max_tokens for chat model, got %+v", captured)
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("expected system+doc+text+prompt, got %d messages", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "analyst" {
		t.Fatalf("unexpected system message %+v", captured.Messages[0])
	}
	if !strings.Contains(captured.Messages[1].Content, "Document "+filepath.Base(doc)) {
		t.Fatalf("document not inlined: %q", captured.Messages[1].Content)
	}
	if captured.Messages[3].Content != "Check continuity" {
		t.Fatalf("prompt not last: %+v", captured.Messages[3])
	}
}

func TestCompleteReasoningModelUsesCompletionTokens(t *testing.T) {
	var captured capturedRequest
	srv := newTestServer(t, `{}`, &captured)

	client, err := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "o3-mini"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.Complete(context.Background(), llm.Request{Prompt: "decide"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if captured.MaxCompletionTokens == 0 || captured.MaxTokens != 0 {
		t.Fatalf("expected max_completion_tokens only, got %+v", captured)
	}
}

func TestCompleteSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	_, err := client.Complete(context.Background(), llm.Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.ShouldRetry(err) {
		t.Fatalf("expected 503 to be retryable, got %v", err)
	}
}

func TestCompleteMissingDocument(t *testing.T) {
	client, _ := NewClient(Options{APIKey: "sk-test", BaseURL: "http://127.0.0.1:1/v1", Model: "gpt-4o"})
	_, err := client.Complete(context.Background(), llm.Request{
		Parts:  []llm.Part{{Kind: llm.PartDocument, Label: "x.pdf", Path: "/nonexistent/x.pdf"}},
		Prompt: "x",
	})
	if err == nil || !strings.Contains(err.Error(), "x.pdf") {
		t.Fatalf("expected attach error, got %v", err)
	}
}
