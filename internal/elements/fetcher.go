package elements

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Celestrak amateur-radio satellite group, the element source the service
// tracks by default.
const defaultSourceURL = "https://celestrak.org/NORAD/elements/gp.php?GROUP=amateur&FORMAT=tle"

// A full Celestrak group is a few hundred KB; anything past this is a
// misconfigured URL, not element data.
const maxResponseBytes = 4 << 20

// Fetcher retrieves raw TLE text from a remote source.
type Fetcher struct {
	sourceURL string
	client    *http.Client
}

// NewFetcher creates a Fetcher for the given source URL, falling back to the
// Celestrak amateur group when url is empty.
func NewFetcher(sourceURL string) *Fetcher {
	if sourceURL == "" {
		sourceURL = defaultSourceURL
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

// Fetch performs an HTTP GET and returns the raw TLE text.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building TLE request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TLE source %s returned status %d", f.sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading TLE response: %w", err)
	}
	return body, nil
}
