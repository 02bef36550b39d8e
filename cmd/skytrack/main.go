package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hamsat/skytrack/internal/api"
	"github.com/hamsat/skytrack/internal/auth"
	"github.com/hamsat/skytrack/internal/catalog"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/metrics"
	"github.com/hamsat/skytrack/internal/sky"
	"github.com/hamsat/skytrack/internal/stream"
	"github.com/hamsat/skytrack/internal/transform"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SKYTRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	observer, err := loadObserver(logger)
	if err != nil {
		logger.Error("invalid observer configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	store := elements.NewStore()
	tleCache := elements.NewFileCache(tleCfg.CacheDir, "tle", "txt", tleCfg.MaxFiles)

	// Attempt to load cached element data on startup.
	if data, ts, err := tleCache.LoadLatest(); err != nil {
		logger.Info("no element cache found, starting without element data", "error", err)
	} else if sats, err := elements.Parse(bytes.NewReader(data), logger); err != nil {
		logger.Warn("failed to parse cached element data", "error", err)
	} else if len(sats) > 0 {
		store.Set(elements.NewDataset("cache", ts, sats))
		metrics.SetTLEDatasetCount(len(sats))
		logger.Info("loaded element data from cache", "count", len(sats), "cached_at", ts.Format(time.RFC3339))
	}

	fetcher := elements.NewFetcher(tleCfg.SourceURL)
	refresh := func(ctx context.Context) (*elements.Dataset, error) {
		// One refresh at a time; readers keep the old dataset meanwhile.
		store.Lock()
		defer store.Unlock()

		data, err := fetcher.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		sats, err := elements.Parse(bytes.NewReader(data), logger)
		if err != nil {
			return nil, err
		}
		if len(sats) == 0 {
			return nil, fmt.Errorf("no valid element sets in response from %s", fetcher.SourceURL())
		}

		now := time.Now().UTC()
		ds := elements.NewDataset(fetcher.SourceURL(), now, sats)
		store.Set(ds)
		metrics.SetTLEDatasetCount(len(sats))

		if err := tleCache.Write(data, now); err != nil {
			logger.Warn("failed to write element cache", "error", err)
		}
		logger.Info("element data refreshed", "count", len(sats), "source", fetcher.SourceURL())
		return ds, nil
	}

	catalogStore := catalog.NewStore()
	loadCatalog(logger, catalogStore)

	workers := loadWorkers(logger)
	computer := sky.NewComputer(store, observer, workers, logger)
	metrics.SetPropagationWorkersActive(workers)

	skyCfg := loadSkyConfig(logger)
	skyCache := sky.NewSnapshotCache(skyCfg, computer, store, clockwork.NewRealClock(), logger)

	streamCfg := loadStreamConfig(logger)
	streamHandler := stream.NewHandler(skyCache, store, streamCfg, logger)

	srv := api.NewServer(addr, observer, api.Deps{
		Store:    store,
		Catalog:  catalogStore,
		SkyCache: skyCache,
		Computer: computer,
		Stream:   streamHandler,
		Refresh:  refresh,
	}, authCfg, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Fetch elements on boot when nothing usable was cached.
	if store.Get() == nil && tleCfg.EnableFetch {
		go func() {
			fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
			defer cancel()
			if _, err := refresh(fetchCtx); err != nil {
				logger.Error("initial element fetch failed", "error", err)
			}
		}()
	}

	// Start sky cache background worker.
	go skyCache.Start(ctx)

	// Background goroutine to update the element dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetTLEDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", tleCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SKYTRACK_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SKYTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SKYTRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SKYTRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// loadObserver reads the ground station location. Latitude and longitude
// accept signed degrees or the "51.3883 N" hemisphere form.
func loadObserver(logger *slog.Logger) (transform.ObserverPosition, error) {
	latStr := os.Getenv("SKYTRACK_OBSERVER_LAT")
	if latStr == "" {
		latStr = "51.38833333333 N"
	}
	lonStr := os.Getenv("SKYTRACK_OBSERVER_LON")
	if lonStr == "" {
		lonStr = "0.75416666666 W"
	}

	lat, err := transform.ParseAngle(latStr)
	if err != nil || lat < -90 || lat > 90 {
		return transform.ObserverPosition{}, fmt.Errorf("invalid SKYTRACK_OBSERVER_LAT %q", latStr)
	}
	lon, err := transform.ParseAngle(lonStr)
	if err != nil || lon < -180 || lon > 180 {
		return transform.ObserverPosition{}, fmt.Errorf("invalid SKYTRACK_OBSERVER_LON %q", lonStr)
	}

	elev := 100.0
	if v := os.Getenv("SKYTRACK_OBSERVER_ELEV"); v != "" {
		e, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return transform.ObserverPosition{}, fmt.Errorf("invalid SKYTRACK_OBSERVER_ELEV %q", v)
		}
		elev = e
	}

	logger.Info("observer config", "lat_deg", lat, "lon_deg", lon, "elev_m", elev)
	return transform.NewObserverPosition(lat, lon, elev), nil
}

func loadWorkers(logger *slog.Logger) int {
	workers := runtime.NumCPU()
	if v := os.Getenv("SKYTRACK_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_PROP_WORKERS value, using default", "value", v, "default", workers)
		} else {
			workers = n
		}
	}
	return workers
}

func loadSkyConfig(logger *slog.Logger) sky.Config {
	cfg := sky.Config{
		Step:        1 * time.Second,
		Horizon:     30 * time.Second,
		GracePeriod: 30 * time.Second,
		Buffer:      60 * time.Second,
	}

	if v := os.Getenv("SKYTRACK_SKY_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_SKY_STEP value, using default", "value", v, "default", 1)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYTRACK_SKY_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_SKY_HORIZON value, using default", "value", v, "default", 30)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYTRACK_SKY_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_SKY_GRACE_PERIOD value, using default", "value", v, "default", 30)
		} else {
			cfg.GracePeriod = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYTRACK_SKY_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_SKY_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SKYTRACK_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("SKYTRACK_STREAM_BANDWIDTH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_STREAM_BANDWIDTH_LIMIT value, using default", "value", v, "default", 1048576)
		} else {
			cfg.BandwidthLimit = n
		}
	}

	if v := os.Getenv("SKYTRACK_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SKYTRACK_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SKYTRACK_STREAM_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SKYTRACK_STREAM_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)

	return cfg
}

type tleConfig struct {
	SourceURL   string
	CacheDir    string
	MaxFiles    int
	EnableFetch bool
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		CacheDir:    "/tmp/skytrack/tle",
		MaxFiles:    5,
		EnableFetch: true,
	}

	if v := os.Getenv("SKYTRACK_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SKYTRACK_ENABLE_TLE_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("SKYTRACK_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("SKYTRACK_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	logger.Info("TLE config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"fetch_enabled", cfg.EnableFetch,
	)

	return cfg
}

// loadCatalog installs the JE9PEL frequency list: from the local cache when
// present, otherwise fetched in the background so boot never blocks on it.
func loadCatalog(logger *slog.Logger, store *catalog.Store) {
	dir := os.Getenv("SKYTRACK_CATALOG_CACHE_DIR")
	if dir == "" {
		dir = "/tmp/skytrack/catalog"
	}
	cache := elements.NewFileCache(dir, "satslist", "csv", 3)

	if data, ts, err := cache.LoadLatest(); err == nil {
		infos := catalog.Parse(bytes.NewReader(data), logger)
		store.Set(infos)
		logger.Info("loaded satellite catalog from cache", "count", len(infos), "cached_at", ts.Format(time.RFC3339))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		fetcher := catalog.NewFetcher(os.Getenv("SKYTRACK_CATALOG_SOURCE_URL"))
		data, err := fetcher.Fetch(ctx)
		if err != nil {
			logger.Warn("catalog fetch failed, radio info unavailable", "error", err)
			return
		}
		infos := catalog.Parse(bytes.NewReader(data), logger)
		store.Set(infos)
		if err := cache.Write(data, time.Now().UTC()); err != nil {
			logger.Warn("failed to write catalog cache", "error", err)
		}
		logger.Info("satellite catalog fetched", "count", len(infos), "source", fetcher.SourceURL())
	}()
}
