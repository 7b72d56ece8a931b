package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		if payload["api_key"] != "key-1" || payload["query"] != "golang news" {
			t.Errorf("payload: %v", payload)
		}
		if payload["search_depth"] != "basic" || payload["include_answer"] != true {
			t.Errorf("search options: %v", payload)
		}
		if payload["max_results"] != float64(2) {
			t.Errorf("max_results: %v", payload["max_results"])
		}
		_, _ = w.Write([]byte(`{"results": [
			{"title": "A", "url": "https://a", "content": "first"},
			{"title": "B", "url": "https://b", "content": "second"},
			{"title": "C", "url": "https://c", "content": "third"}
		]}`))
	}))
	defer srv.Close()

	tav := &Tavily{APIKey: "key-1", BaseURL: srv.URL}
	results, err := tav.Search(context.Background(), "golang news", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected results capped at 2, got %d", len(results))
	}
	if results[0].Title != "A" || results[0].URL != "https://a" || results[0].Content != "first" {
		t.Fatalf("first result: %+v", results[0])
	}
	if results[0].Query != "golang news" || results[1].Query != "golang news" {
		t.Fatalf("query not attached: %+v", results)
	}
}

func TestTavilySearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tav := &Tavily{APIKey: "bad", BaseURL: srv.URL}
	if _, err := tav.Search(context.Background(), "q", 3); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestBraveSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("token header: %q", r.Header.Get("X-Subscription-Token"))
		}
		if got := r.URL.Query().Get("q"); got != "rust traits" {
			t.Errorf("query param: %q", got)
		}
		_, _ = w.Write([]byte(`{"web": {"results": [
			{"title": "T", "url": "https://t", "description": "desc"}
		]}}`))
	}))
	defer srv.Close()

	b := &Brave{APIKey: "brave-key", BaseURL: srv.URL}
	results, err := b.Search(context.Background(), "rust traits", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "desc" || results[0].Query != "rust traits" {
		t.Fatalf("results: %+v", results)
	}
}

func TestSerperSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("key header: %q", r.Header.Get("X-API-KEY"))
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["q"] != "ev sales" {
			t.Errorf("payload: %v", payload)
		}
		_, _ = w.Write([]byte(`{"organic": [
			{"title": "S", "link": "https://s", "snippet": "snip"},
			{"title": "S2", "link": "https://s2", "snippet": "snip2"}
		]}`))
	}))
	defer srv.Close()

	s := &Serper{APIKey: "serper-key", BaseURL: srv.URL}
	results, err := s.Search(context.Background(), "ev sales", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://s" {
		t.Fatalf("results: %+v", results)
	}
}

func TestNewProviderSelection(t *testing.T) {
	for _, p := range []Provider{TavilyProvider, BraveProvider, SerperProvider} {
		if _, err := New(p, "key", 5*time.Second); err != nil {
			t.Fatalf("New(%s): %v", p, err)
		}
	}
	if _, err := New("duckduckgo", "key", 5*time.Second); err != ErrUnsupportedProvider {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
