package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily searches via the Tavily API (https://docs.tavily.com).
type Tavily struct {
	APIKey  string
	Client  *http.Client
	BaseURL string // overrides the default endpoint, used in tests
}

func (t *Tavily) Search(ctx context.Context, q string, k int) ([]Result, error) {
	payload := map[string]any{
		"api_key":        t.APIKey,
		"query":          q,
		"search_depth":   "basic",
		"include_answer": true,
		"max_results":    k,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tavily: encoding request: %w", err)
	}
	endpoint := t.BaseURL
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: status %d: %s", resp.StatusCode, snippet)
	}

	var raw struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("tavily: decoding response: %w", err)
	}
	out := make([]Result, 0, len(raw.Results))
	for i, r := range raw.Results {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Content: r.Content, Query: q})
	}
	return out, nil
}

func (t *Tavily) client() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}
