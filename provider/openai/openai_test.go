package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quester/config"
)

func testClient(baseURL string) *Client {
	return New(config.LLMProvider{
		Type:    "openai",
		APIKey:  "sk-test",
		BaseURL: baseURL,
		Models: map[string]config.LLMModel{
			"fast": {Name: "fast", APIName: "gpt-4o-mini", Temperature: 0.2, MaxTokens: 512},
		},
	})
}

func TestGenerateResolvesLogicalModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header %q", auth)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("logical model not resolved: %v", req["model"])
		}
		if req["temperature"] != 0.2 || req["max_tokens"] != float64(512) {
			t.Errorf("model params not applied: %v", req)
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "hello back"}}]}`))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).Generate(context.Background(), "fast",
		[]Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("content %q", out)
	}
}

func TestGenerateSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": {"message": "model overloaded"}}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "fast", nil); err == nil {
		t.Fatalf("expected API error")
	}
}

func TestGenerateNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "fast", nil); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestGenerateStreamAccumulatesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != true {
			t.Errorf("stream flag missing: %v", req)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\": [{\"delta\": {\"content\": \"Hel\"}}]}\n\n" +
				"data: {\"choices\": [{\"delta\": {\"content\": \"lo \"}}]}\n\n" +
				": keepalive comment\n\n" +
				"data: {\"choices\": [{\"delta\": {\"content\": \"world\"}}]}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	var deltas []string
	out, err := testClient(srv.URL).GenerateStream(context.Background(), "fast",
		[]Message{{Role: "user", Content: "hi"}}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("GenerateStream: %v", err)
	}
	if out != "Hello world" {
		t.Fatalf("accumulated %q", out)
	}
	if len(deltas) != 3 || deltas[0] != "Hel" || deltas[2] != "world" {
		t.Fatalf("deltas %v", deltas)
	}
}

func TestUnknownModelPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-custom" {
			t.Errorf("model %v", req["model"])
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Generate(context.Background(), "gpt-custom", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}
