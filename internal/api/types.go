package api

import (
	"math"
	"time"

	"github.com/hamsat/skytrack/internal/catalog"
	"github.com/hamsat/skytrack/internal/passes"
	"github.com/hamsat/skytrack/internal/transform"
)

// Response payload types.

type observerJSON struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	ElevM  float64 `json:"elev_m"`
}

func newObserverJSON(obs transform.ObserverPosition) observerJSON {
	return observerJSON{
		LatDeg: obs.LatRad * 180 / math.Pi,
		LonDeg: obs.LonRad * 180 / math.Pi,
		ElevM:  obs.ElevM,
	}
}

type eventJSON struct {
	Time        string  `json:"time"`
	AltitudeDeg float64 `json:"altitude_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	RangeKm     float64 `json:"range_km"`
}

func newEventJSON(ev *passes.Event) *eventJSON {
	if ev == nil {
		return nil
	}
	return &eventJSON{
		Time:        ev.Time.UTC().Format(time.RFC3339Nano),
		AltitudeDeg: ev.Observation.AltitudeDeg,
		AzimuthDeg:  ev.Observation.AzimuthDeg,
		RangeKm:     ev.Observation.RangeKm,
	}
}

type trackPointJSON struct {
	Time        string  `json:"time"`
	AltitudeDeg float64 `json:"altitude_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	RangeKm     float64 `json:"range_km"`
	Label       string  `json:"label,omitempty"`
}

func newTrackJSON(track []passes.TrackPoint) []trackPointJSON {
	out := make([]trackPointJSON, len(track))
	for i, p := range track {
		out[i] = trackPointJSON{
			Time:        p.Time.UTC().Format(time.RFC3339),
			AltitudeDeg: p.AltitudeDeg,
			AzimuthDeg:  p.AzimuthDeg,
			RangeKm:     p.RangeKm,
			Label:       p.Label,
		}
	}
	return out
}

type passJSON struct {
	Rise     *eventJSON       `json:"rise,omitempty"`
	Transit  *eventJSON       `json:"transit,omitempty"`
	Set      *eventJSON       `json:"set,omitempty"`
	Complete bool             `json:"complete"`
	Degraded bool             `json:"degraded,omitempty"`
	Track    []trackPointJSON `json:"track,omitempty"`
}

type satPassesJSON struct {
	CatalogNumber int        `json:"catalog_number"`
	Name          string     `json:"name"`
	Passes        []passJSON `json:"passes"`
	Error         string     `json:"error,omitempty"`
}

type passesResponse struct {
	Observer   observerJSON    `json:"observer"`
	Start      string          `json:"start"`
	Hours      float64         `json:"hours"`
	Satellites []satPassesJSON `json:"satellites"`
}

type satelliteJSON struct {
	CatalogNumber int            `json:"catalog_number"`
	Name          string         `json:"name"`
	Epoch         string         `json:"epoch"`
	Status        string         `json:"status,omitempty"`
	Callsign      string         `json:"callsign,omitempty"`
	UplinksMHz    []float64      `json:"uplinks_mhz,omitempty"`
	DownlinksMHz  []float64      `json:"downlinks_mhz,omitempty"`
	BeaconsMHz    []float64      `json:"beacons_mhz,omitempty"`
	UplinkRange   *catalog.Range `json:"uplink_range,omitempty"`
	DownlinkRange *catalog.Range `json:"downlink_range,omitempty"`
	Modes         []string       `json:"modes,omitempty"`
}

func newSatelliteJSON(e catalog.Entry) satelliteJSON {
	sj := satelliteJSON{
		CatalogNumber: e.CatalogNumber,
		Name:          e.Name,
		Epoch:         e.Epoch.UTC().Format(time.RFC3339),
	}
	if e.Info != nil {
		sj.Status = e.Info.Status
		sj.Callsign = e.Info.Callsign
		sj.UplinksMHz = e.Info.UplinksMHz
		sj.DownlinksMHz = e.Info.DownlinksMHz
		sj.BeaconsMHz = e.Info.BeaconsMHz
		sj.UplinkRange = e.Info.UplinkRange
		sj.DownlinkRange = e.Info.DownlinkRange
		sj.Modes = e.Info.Modes
	}
	return sj
}

type satellitesResponse struct {
	DatasetFetchedAt string          `json:"dataset_fetched_at"`
	Count            int             `json:"count"`
	Satellites       []satelliteJSON `json:"satellites"`
}

type refreshResponse struct {
	Satellites  int    `json:"satellites"`
	FetchedAt   string `json:"fetched_at"`
	OldestEpoch string `json:"oldest_epoch"`
	NewestEpoch string `json:"newest_epoch"`
}
