package enrich

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gurnameh-99/fact-den/internal/ports"
)

// TitleEnricher resolves verdict source URLs to their page titles so the
// UI can show "BBC: Climate report 2024" instead of a bare link. Lookups
// are advisory; any failure falls back to the URL itself.
type TitleEnricher struct {
	http *http.Client
}

var _ ports.TitleResolver = (*TitleEnricher)(nil)

// NewTitleEnricher builds an enricher with a short fetch timeout.
func NewTitleEnricher(client *http.Client) *TitleEnricher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &TitleEnricher{http: client}
}

// ResolveTitle fetches the page and extracts its <title> text.
func (e *TitleEnricher) ResolveTitle(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch source: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse source page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return "", fmt.Errorf("source page has no title")
	}
	return title, nil
}

// Labels resolves a batch of source URLs to display labels, falling back
// to the URL when resolution fails.
func (e *TitleEnricher) Labels(ctx context.Context, urls []string) []string {
	labels := make([]string, len(urls))
	for i, u := range urls {
		title, err := e.ResolveTitle(ctx, u)
		if err != nil {
			labels[i] = u
			continue
		}
		labels[i] = title
	}
	return labels
}
