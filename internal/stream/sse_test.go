package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/sky"
	"github.com/hamsat/skytrack/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testStore() *elements.Store {
	store := elements.NewStore()
	store.Set(elements.NewDataset("test",
		time.Date(2026, 2, 6, 3, 45, 0, 0, time.UTC), nil))
	return store
}

func testSkyCache(store *elements.Store) *sky.SnapshotCache {
	observer := transform.NewObserverPosition(51.38833333333, -0.75416666666, 100)
	computer := sky.NewComputer(store, observer, 2, testLogger())
	return sky.NewSnapshotCache(sky.Config{
		Step:        time.Second,
		Horizon:     30 * time.Second,
		GracePeriod: 5 * time.Second,
		Buffer:      10 * time.Second,
	}, computer, store, clockwork.NewRealClock(), testLogger())
}

func testConfig() Config {
	return Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}
}

// TestBuildSkyMessage verifies the snapshot payload structure.
func TestBuildSkyMessage(t *testing.T) {
	snap := &sky.Snapshot{
		Timestamp: time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC),
		Satellites: []sky.SatSky{
			{
				CatalogNumber: 25544,
				Name:          "ISS",
				AltitudeDeg:   45.2,
				AzimuthDeg:    187.1,
				RangeKm:       512.7,
				RangeRateKmS:  -4.1,
				Doppler2mHz:   1995.3,
				Doppler70cmHz: 5970.1,
			},
			{CatalogNumber: 7530, Name: "AO-7"},
		},
	}

	msg := buildSkyMessage(snap)

	if msg.Type != "sky" {
		t.Errorf("type = %q, want %q", msg.Type, "sky")
	}
	if msg.T != "2026-02-06T04:00:00Z" {
		t.Errorf("t = %q, want %q", msg.T, "2026-02-06T04:00:00Z")
	}
	if len(msg.Sat) != 2 {
		t.Fatalf("sat count = %d, want 2", len(msg.Sat))
	}
	if msg.Sat[0].ID != 25544 || msg.Sat[0].Name != "ISS" {
		t.Errorf("sat[0] identity = %d %q", msg.Sat[0].ID, msg.Sat[0].Name)
	}
	if msg.Sat[0].Alt != 45.2 || msg.Sat[0].Az != 187.1 {
		t.Errorf("sat[0] position = %v/%v", msg.Sat[0].Alt, msg.Sat[0].Az)
	}
	if msg.Sat[0].RR != -4.1 || msg.Sat[0].D2m != 1995.3 {
		t.Errorf("sat[0] doppler fields = %v/%v", msg.Sat[0].RR, msg.Sat[0].D2m)
	}
}

// TestSkyMessageJSON verifies the JSON serialization of the wire format.
func TestSkyMessageJSON(t *testing.T) {
	msg := skyMessage{
		Type: "sky",
		T:    "2026-02-06T04:00:00Z",
		Sat: []satPayload{
			{ID: 25544, Name: "ISS", Alt: 12.5, Az: 80.0, Rng: 1400.0, RR: -6.2, D2m: 3017.0, D70: 9026.0},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}

	if parsed["type"] != "sky" {
		t.Errorf("type = %v, want sky", parsed["type"])
	}
	if parsed["t"] != "2026-02-06T04:00:00Z" {
		t.Errorf("t = %v", parsed["t"])
	}

	sats, ok := parsed["sat"].([]any)
	if !ok || len(sats) != 1 {
		t.Fatalf("sat = %v, want 1-element array", parsed["sat"])
	}

	sat := sats[0].(map[string]any)
	if sat["id"].(float64) != 25544 {
		t.Errorf("sat[0].id = %v, want 25544", sat["id"])
	}
	for _, key := range []string{"name", "alt", "az", "rng", "rr", "d2m", "d70"} {
		if _, ok := sat[key]; !ok {
			t.Errorf("sat[0] missing %q", key)
		}
	}
}

// TestMetadataMessageJSON verifies the metadata message format.
func TestMetadataMessageJSON(t *testing.T) {
	msg := metadataMessage{
		Type:         "metadata",
		DatasetEpoch: "2026-02-06T03:45:00Z",
		TLEAge:       1800,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatal(err)
	}

	if parsed["type"] != "metadata" {
		t.Errorf("type = %v, want metadata", parsed["type"])
	}
	if parsed["dataset_epoch"] != "2026-02-06T03:45:00Z" {
		t.Errorf("dataset_epoch = %v", parsed["dataset_epoch"])
	}
	if parsed["tle_age_seconds"].(float64) != 1800 {
		t.Errorf("tle_age_seconds = %v, want 1800", parsed["tle_age_seconds"])
	}
}

// TestSSEMessageFormat verifies the SSE wire format: "data: {json}\n\n".
func TestSSEMessageFormat(t *testing.T) {
	store := testStore()
	handler := NewHandler(testSkyCache(store), store, Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  time.Second,
	}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/sky?step=1", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	// Cancel the request after the first messages have gone out.
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandleSky(w, req)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	body := w.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	var foundMetadata bool

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		if msg["type"] == "metadata" {
			foundMetadata = true
			if _, ok := msg["dataset_epoch"]; !ok {
				t.Error("metadata missing dataset_epoch")
			}
			if _, ok := msg["tle_age_seconds"]; !ok {
				t.Error("metadata missing tle_age_seconds")
			}
		}
	}
	if !foundMetadata {
		t.Error("did not receive metadata message")
	}

	// Every line is an event, a retry directive, a keepalive comment, or a
	// separator.
	for _, line := range strings.Split(body, "\n") {
		if line == "" || line == ":" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

// TestMetadataSentBeforeDatasetLoad verifies that a connection opened
// before any element dataset has been loaded still receives the
// metadata-first message, with an empty epoch.
func TestMetadataSentBeforeDatasetLoad(t *testing.T) {
	store := elements.NewStore()
	handler := NewHandler(testSkyCache(store), store, Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  time.Second,
	}, testLogger())

	req := httptest.NewRequest("GET", "/api/v1/stream/sky?step=1", nil)
	req.RemoteAddr = "127.0.0.1:12345"

	ctx, cancel := context.WithTimeout(req.Context(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	handler.HandleSky(w, req)

	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Fatalf("invalid JSON in SSE data line: %v", err)
		}
		// The first data message must be metadata even with no dataset.
		if msg["type"] != "metadata" {
			t.Fatalf("first message type = %v, want metadata", msg["type"])
		}
		if msg["dataset_epoch"] != "" {
			t.Errorf("dataset_epoch = %v, want empty before first load", msg["dataset_epoch"])
		}
		if msg["tle_age_seconds"].(float64) != 0 {
			t.Errorf("tle_age_seconds = %v, want 0", msg["tle_age_seconds"])
		}
		return
	}
	t.Fatal("no data message received")
}

// TestRateLimiting verifies per-IP concurrent stream limits.
func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
}

// TestRateLimitingGlobalCap verifies the global connection ceiling.
func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(10)
	limiter.maxTotal = 2

	if !limiter.acquire("10.0.0.1") || !limiter.acquire("10.0.0.2") {
		t.Fatal("acquires under the global cap should succeed")
	}
	if limiter.acquire("10.0.0.3") {
		t.Error("acquire beyond the global cap should fail")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.3") {
		t.Error("acquire after release should succeed")
	}
}

// TestRateLimitingConcurrent verifies rate limiter thread safety.
func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

// TestRateLimitHTTPResponse verifies 429 response when the limit is hit.
func TestRateLimitHTTPResponse(t *testing.T) {
	store := testStore()
	handler := NewHandler(testSkyCache(store), store, Config{
		MaxConcurrentPerIP: 1,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}, testLogger())

	// Hold the first connection open.
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/sky", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		ctx, cancel := context.WithCancel(req.Context())
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		go func() {
			time.Sleep(50 * time.Millisecond)
			close(ready)
			time.Sleep(200 * time.Millisecond)
			cancel()
		}()

		handler.HandleSky(w, req)
	}()

	<-ready

	// Second connection from the same IP gets 429.
	req := httptest.NewRequest("GET", "/api/v1/stream/sky", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler.HandleSky(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	<-done
}

// TestInvalidQueryParams verifies error responses for bad step values.
func TestInvalidQueryParams(t *testing.T) {
	store := testStore()
	handler := NewHandler(testSkyCache(store), store, testConfig(), testLogger())

	tests := []struct {
		name  string
		query string
	}{
		{"step zero", "?step=0"},
		{"step negative", "?step=-2"},
		{"step too large", "?step=100"},
		{"step non-numeric", "?step=abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/stream/sky"+tt.query, nil)
			req.RemoteAddr = "127.0.0.1:12345"
			w := httptest.NewRecorder()
			handler.HandleSky(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
		})
	}
}
