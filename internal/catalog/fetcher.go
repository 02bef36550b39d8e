package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// JE9PEL's amateur satellite frequency list.
const defaultCatalogURL = "https://www.ne.jp/asahi/hamradio/je9pel/satslist.csv"

// The satslist CSV is well under a megabyte; cap reads so a bad URL cannot
// buffer an arbitrary payload.
const maxCatalogBytes = 2 << 20

// Fetcher retrieves the raw satellite frequency CSV from a remote source.
type Fetcher struct {
	sourceURL string
	client    *http.Client
}

// NewFetcher creates a Fetcher for the given source URL, falling back to the
// JE9PEL list when url is empty.
func NewFetcher(sourceURL string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultCatalogURL
	}
	return &Fetcher{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET and returns the raw CSV.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog source %s returned status %d", f.sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("reading catalog response: %w", err)
	}
	return body, nil
}
