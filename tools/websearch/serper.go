package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const serperEndpoint = "https://google.serper.dev/search"

// Serper searches via the serper.dev Google wrapper.
type Serper struct {
	APIKey  string
	Client  *http.Client
	BaseURL string
}

func (s *Serper) Search(ctx context.Context, q string, k int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{"q": q, "num": k})
	if err != nil {
		return nil, fmt.Errorf("serper: encoding request: %w", err)
	}
	endpoint := s.BaseURL
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decoding response: %w", err)
	}
	var out []Result
	for i, r := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.Link, Content: r.Snippet, Query: q})
	}
	return out, nil
}

func (s *Serper) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}
