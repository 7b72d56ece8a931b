package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave searches via the Brave web search API
// (https://api.search.brave.com/app/documentation/web-search).
type Brave struct {
	APIKey  string
	Client  *http.Client
	BaseURL string
}

func (b *Brave) Search(ctx context.Context, q string, k int) ([]Result, error) {
	endpoint := b.BaseURL
	if endpoint == "" {
		endpoint = braveEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s?q=%s&count=%d", endpoint, url.QueryEscape(q), k), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave: status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave: decoding response: %w", err)
	}
	var out []Result
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		out = append(out, Result{Title: r.Title, URL: r.URL, Content: r.Description, Query: q})
	}
	return out, nil
}

func (b *Brave) client() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}
