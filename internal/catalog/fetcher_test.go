package catalog_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamsat/skytrack/internal/catalog"
)

func TestFetcherSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleList))
	}))
	defer srv.Close()

	f := catalog.NewFetcher(srv.URL)
	body, err := f.Fetch(context.Background())
	require.NoError(t, err)

	infos := catalog.Parse(strings.NewReader(string(body)), testLogger())
	assert.Len(t, infos, 3)
}

func TestFetcherHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := catalog.NewFetcher(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcherDefaultURL(t *testing.T) {
	f := catalog.NewFetcher("")
	assert.Contains(t, f.SourceURL(), "je9pel")
}
