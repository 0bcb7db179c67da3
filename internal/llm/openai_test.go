package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/asymptotic-code/telegram-bot/internal/config"
)

func TestOpenAIGenerate_SendsMessagesAndHeaders(t *testing.T) {
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	var referrer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referrer = r.Header.Get("HTTP-Referer")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Yes "}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL, "gpt-test", "https://example.org", "bot").Deterministic()
	resp, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Content != " Yes " || resp.TotalTokens != 4 || resp.Model != "gpt-test" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotReq.Model != "gpt-test" || len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "hi" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.Temperature <= 0 || gotReq.Temperature > 1e-30 {
		t.Fatalf("temperature should be near zero, got %v", gotReq.Temperature)
	}
	if referrer != "https://example.org" {
		t.Fatalf("referrer header missing: %q", referrer)
	}
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL, "m", "", "")
	if _, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}); err == nil {
		t.Fatalf("expected error on empty choices")
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	f := NewFactory(&config.Config{})
	if _, err := f.Classifier("llama-on-a-toaster"); err == nil {
		t.Fatalf("expected error")
	}
	c, err := f.Classifier(config.ProviderOpenAI)
	if err != nil || c == nil {
		t.Fatalf("openai classifier: %v", err)
	}
}
