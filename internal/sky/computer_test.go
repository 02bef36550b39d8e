package sky

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamsat/skytrack/internal/doppler"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/transform"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   08264.51782528 -.00002182  00000-0 -11606-4 0  2927"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"

	ao7Name  = "AO-7"
	ao7Line1 = "1 07530U 74089B   24100.50000000 -.00000030  00000-0  12345-4 0  9998"
	ao7Line2 = "2 07530 101.9000 120.0000 0012000 140.0000 220.0000 12.53600000    00"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testObserver() transform.ObserverPosition {
	return transform.NewObserverPosition(51.38833333333, -0.75416666666, 100)
}

// testDataset builds a store holding the ISS fixture, stamped fetchedAt.
func testDataset(t *testing.T, fetchedAt time.Time, lines ...[3]string) *elements.Store {
	t.Helper()
	if len(lines) == 0 {
		lines = [][3]string{{issName, issLine1, issLine2}}
	}

	sats := make([]elements.OrbitalElements, 0, len(lines))
	for _, l := range lines {
		el, err := elements.ParseSet(l[0], l[1], l[2])
		require.NoError(t, err)
		sats = append(sats, el)
	}

	store := elements.NewStore()
	store.Set(elements.NewDataset("test", fetchedAt, sats))
	return store
}

func issEpoch() time.Time {
	return time.Date(2008, 9, 20, 12, 25, 40, 0, time.UTC)
}

func TestSnapshotAtNoDataset(t *testing.T) {
	c := NewComputer(elements.NewStore(), testObserver(), 2, testLogger())
	_, err := c.SnapshotAt(context.Background(), issEpoch())
	require.Error(t, err)
}

func TestSnapshotAtVisibleSatellite(t *testing.T) {
	store := testDataset(t, issEpoch())
	c := NewComputer(store, testObserver(), 2, testLogger())

	// Scan a day in coarse steps until the ISS is above the horizon; it
	// passes over a UK observer several times per day.
	var found *SatSky
	var at time.Time
	for o := time.Duration(0); o < 24*time.Hour; o += 2 * time.Minute {
		at = issEpoch().Add(o)
		snap, err := c.SnapshotAt(context.Background(), at)
		require.NoError(t, err)
		require.True(t, snap.Timestamp.Equal(at))
		if len(snap.Satellites) > 0 {
			found = &snap.Satellites[0]
			break
		}
	}
	require.NotNil(t, found, "ISS never above the horizon in 24h")

	assert.Equal(t, 25544, found.CatalogNumber)
	assert.Equal(t, issName, found.Name)
	assert.Greater(t, found.AltitudeDeg, 0.0)
	assert.GreaterOrEqual(t, found.AzimuthDeg, 0.0)
	assert.Less(t, found.AzimuthDeg, 360.0)
	assert.InDelta(t, doppler.Shift(found.RangeRateKmS, doppler.Downlink2m), found.Doppler2mHz, 1e-9)
	assert.InDelta(t, doppler.Shift(found.RangeRateKmS, doppler.Downlink70cm), found.Doppler70cmHz, 1e-9)
	// LEO slant range from the ground is bounded by the horizon distance.
	assert.Greater(t, found.RangeKm, 300.0)
	assert.Less(t, found.RangeKm, 3000.0)
}

func TestSnapshotSorted(t *testing.T) {
	store := testDataset(t, issEpoch(),
		[3]string{issName, issLine1, issLine2},
		[3]string{ao7Name, ao7Line1, ao7Line2},
	)
	c := NewComputer(store, testObserver(), 2, testLogger())

	for o := time.Duration(0); o < 6*time.Hour; o += 10 * time.Minute {
		snap, err := c.SnapshotAt(context.Background(), issEpoch().Add(o))
		require.NoError(t, err)
		for i := 1; i < len(snap.Satellites); i++ {
			assert.Less(t, snap.Satellites[i-1].CatalogNumber, snap.Satellites[i].CatalogNumber)
		}
	}
}

func TestPropagatorCacheReuse(t *testing.T) {
	store := testDataset(t, issEpoch())
	c := NewComputer(store, testObserver(), 2, testLogger())

	_, err := c.SnapshotAt(context.Background(), issEpoch())
	require.NoError(t, err)
	first := c.cache.Load()
	require.NotNil(t, first)

	_, err = c.SnapshotAt(context.Background(), issEpoch().Add(time.Minute))
	require.NoError(t, err)
	assert.Same(t, first, c.cache.Load(), "propagator cache rebuilt for unchanged dataset")

	// A replaced dataset invalidates the cached propagators.
	ds := store.Get()
	store.Set(elements.NewDataset(ds.Source, ds.FetchedAt.Add(time.Hour), ds.Satellites))
	_, err = c.SnapshotAt(context.Background(), issEpoch().Add(2*time.Minute))
	require.NoError(t, err)
	assert.NotSame(t, first, c.cache.Load())
}

func TestPropagatorCacheSkipsBadElements(t *testing.T) {
	el, err := elements.ParseSet(issName, issLine1, issLine2)
	require.NoError(t, err)
	bad := el
	bad.CatalogNumber = 99999
	bad.Eccentricity = 1.5

	store := elements.NewStore()
	store.Set(elements.NewDataset("test", issEpoch(), []elements.OrbitalElements{el, bad}))

	c := NewComputer(store, testObserver(), 2, testLogger())
	_, err = c.SnapshotAt(context.Background(), issEpoch())
	require.NoError(t, err)

	pc := c.cache.Load()
	require.NotNil(t, pc)
	assert.Len(t, pc.props, 1)
	assert.Contains(t, pc.props, 25544)
}
