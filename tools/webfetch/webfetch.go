// Package webfetch extracts readable article text from web pages, used to
// enrich search results whose snippets are too thin to summarize from.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

// Fetcher retrieves the readable text content of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Static fetches pages over plain HTTP and extracts the article body with
// readability. Cheap, but blind to script-rendered pages.
type Static struct {
	Timeout  time.Duration
	MaxChars int
}

func (s Static) Fetch(_ context.Context, pageURL string) (string, error) {
	if strings.TrimSpace(pageURL) == "" {
		return "", errors.New("webfetch: empty url")
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	article, err := readability.FromURL(pageURL, timeout)
	if err != nil {
		return "", fmt.Errorf("webfetch: %w", err)
	}
	return clip(strings.TrimSpace(article.TextContent), s.MaxChars), nil
}

// Rendered drives a headless browser and runs readability over the rendered
// DOM. Used as a fallback when the static fetch comes back empty.
type Rendered struct {
	Timeout  time.Duration
	MaxChars int
}

func (r Rendered) Fetch(ctx context.Context, pageURL string) (string, error) {
	if strings.TrimSpace(pageURL) == "" {
		return "", errors.New("webfetch: empty url")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := renderHTML(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("webfetch: rendering %s: %w", pageURL, err)
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("webfetch: %w", err)
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", fmt.Errorf("webfetch: extracting %s: %w", pageURL, err)
	}
	return clip(strings.TrimSpace(article.TextContent), r.MaxChars), nil
}

func renderHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

// Chain tries each fetcher in order until one returns non-empty content.
type Chain []Fetcher

func (c Chain) Fetch(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for _, f := range c {
		text, err := f.Fetch(ctx, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", errors.New("webfetch: no content")
}

func clip(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max]
	}
	return s
}
