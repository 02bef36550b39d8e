// Package sky computes and caches current-sky snapshots: topocentric
// observations plus Doppler shifts for every satellite above the observer's
// horizon at an instant.
//
// Snapshots are precomputed over a rolling [now, now+horizon] window by a
// background worker so stream and API reads never wait on SGP4. When the
// element dataset changes the cache is rebuilt gracefully without
// interrupting reads.
package sky

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hamsat/skytrack/internal/doppler"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/metrics"
	"github.com/hamsat/skytrack/internal/propagation"
	"github.com/hamsat/skytrack/internal/transform"
)

// SatSky is one visible satellite in a snapshot. Doppler shifts are for the
// standard amateur downlink bands; positive means received above nominal.
type SatSky struct {
	CatalogNumber int     `json:"catalog_number"`
	Name          string  `json:"name"`
	AltitudeDeg   float64 `json:"altitude_deg"`
	AzimuthDeg    float64 `json:"azimuth_deg"`
	RangeKm       float64 `json:"range_km"`
	RangeRateKmS  float64 `json:"range_rate_km_s"`
	Doppler2mHz   float64 `json:"doppler_2m_hz"`
	Doppler70cmHz float64 `json:"doppler_70cm_hz"`
}

// Snapshot holds every satellite above the horizon at Timestamp, ordered by
// catalog number.
type Snapshot struct {
	Timestamp  time.Time `json:"timestamp"`
	Satellites []SatSky  `json:"satellites"`
}

// propCache pairs initialized propagators with the dataset they came from.
type propCache struct {
	props     map[int]*propagation.Propagator
	fetchedAt time.Time
}

// Computer produces snapshots from the current element dataset. It keeps
// initialized propagators cached per dataset so per-snapshot cost is pure
// propagation.
type Computer struct {
	store    *elements.Store
	observer transform.ObserverPosition
	pool     *propagation.Pool
	logger   *slog.Logger

	cache atomic.Pointer[propCache]
	mu    sync.Mutex // serializes cache rebuilds
}

// NewComputer creates a Computer for the given observer.
func NewComputer(store *elements.Store, observer transform.ObserverPosition, workers int, logger *slog.Logger) *Computer {
	return &Computer{
		store:    store,
		observer: observer,
		pool:     propagation.NewPool(workers, logger),
		logger:   logger,
	}
}

// cachedProps returns the propagator set for ds, rebuilding it when the
// dataset changed. Double-checked so concurrent snapshots rebuild once.
func (c *Computer) cachedProps(ds *elements.Dataset) map[int]*propagation.Propagator {
	if pc := c.cache.Load(); pc != nil && pc.fetchedAt.Equal(ds.FetchedAt) {
		return pc.props
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if pc := c.cache.Load(); pc != nil && pc.fetchedAt.Equal(ds.FetchedAt) {
		return pc.props
	}

	props := make(map[int]*propagation.Propagator, len(ds.Satellites))
	skipped := 0
	for _, el := range ds.Satellites {
		if _, ok := props[el.CatalogNumber]; ok {
			continue
		}
		p, err := propagation.New(el)
		if err != nil {
			c.logger.Warn("propagator init failed",
				"catalog_number", el.CatalogNumber,
				"error", err)
			skipped++
			continue
		}
		props[el.CatalogNumber] = p
	}

	c.logger.Info("propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.cache.Store(&propCache{props: props, fetchedAt: ds.FetchedAt})
	return props
}

// SnapshotAt computes the sky snapshot at the given instant from the current
// dataset. Satellites below the horizon are excluded; one failing satellite
// never aborts the snapshot.
func (c *Computer) SnapshotAt(ctx context.Context, t time.Time) (*Snapshot, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, fmt.Errorf("no element dataset loaded")
	}

	props := c.cachedProps(ds)
	list := make([]*propagation.Propagator, 0, len(props))
	for _, p := range props {
		list = append(list, p)
	}

	start := time.Now()
	results, successCount, errorCount := c.pool.PropagateBatch(ctx, list, t)
	metrics.RecordPropagation(time.Since(start), successCount, errorCount)

	snap := &Snapshot{Timestamp: t}
	for _, r := range results {
		o := transform.Observe(r.State, c.observer)
		if o.AltitudeDeg <= 0 {
			continue
		}
		snap.Satellites = append(snap.Satellites, SatSky{
			CatalogNumber: r.CatalogNumber,
			Name:          props[r.CatalogNumber].Elements().Name,
			AltitudeDeg:   o.AltitudeDeg,
			AzimuthDeg:    o.AzimuthDeg,
			RangeKm:       o.RangeKm,
			RangeRateKmS:  o.RangeRateKmS,
			Doppler2mHz:   doppler.Shift(o.RangeRateKmS, doppler.Downlink2m),
			Doppler70cmHz: doppler.Shift(o.RangeRateKmS, doppler.Downlink70cm),
		})
	}
	sort.Slice(snap.Satellites, func(i, j int) bool {
		return snap.Satellites[i].CatalogNumber < snap.Satellites[j].CatalogNumber
	})

	return snap, nil
}
