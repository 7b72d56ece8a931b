package websearch

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Result is a single web search hit. Query is the planned query that
// produced it, filled in by the caller.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Query   string `json:"query,omitempty"`
}

// Searcher executes one query and returns up to k results.
type Searcher interface {
	Search(ctx context.Context, q string, k int) ([]Result, error)
}

type Provider string

const (
	TavilyProvider Provider = "tavily"
	BraveProvider  Provider = "brave"
	SerperProvider Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("websearch: unsupported provider")

// New builds a Searcher for the configured provider.
func New(provider Provider, apiKey string, timeout time.Duration) (Searcher, error) {
	client := &http.Client{Timeout: timeout}
	switch provider {
	case TavilyProvider:
		return &Tavily{APIKey: apiKey, Client: client}, nil
	case BraveProvider:
		return &Brave{APIKey: apiKey, Client: client}, nil
	case SerperProvider:
		return &Serper{APIKey: apiKey, Client: client}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
