package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hamsat/skytrack/internal/catalog"
	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/httputil"
	"github.com/hamsat/skytrack/internal/metrics"
	"github.com/hamsat/skytrack/internal/passes"
	"github.com/hamsat/skytrack/internal/transform"
)

// handlePasses predicts passes over a window.
// GET /api/v1/passes?lat=&lon=&elev=&start=&hours=&horizon=&max_passes=&sat=&track=&step=
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Store.Get()
	if ds == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no element data loaded")
		return
	}

	q := r.URL.Query()

	observer := s.observer
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if (latStr == "") != (lonStr == "") {
		httputil.WriteError(w, http.StatusBadRequest, "lat and lon must be given together")
		return
	}
	if latStr != "" {
		lat, errLat := transform.ParseAngle(latStr)
		lon, errLon := transform.ParseAngle(lonStr)
		if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid lat/lon")
			return
		}
		elev := 0.0
		if v := q.Get("elev"); v != "" {
			e, err := strconv.ParseFloat(v, 64)
			if err != nil {
				httputil.WriteError(w, http.StatusBadRequest, "invalid elev parameter")
				return
			}
			elev = e
		}
		observer = transform.NewObserverPosition(lat, lon, elev)
	}

	start := time.Now().UTC()
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid start parameter, want RFC3339")
			return
		}
		start = t
	}

	hours := 24.0
	if v := q.Get("hours"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h <= 0 || h > 168 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid hours parameter, must be in (0, 168]")
			return
		}
		hours = h
	}

	horizon := 0.0
	if v := q.Get("horizon"); v != "" {
		h, err := strconv.ParseFloat(v, 64)
		if err != nil || h < -90 || h > 90 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid horizon parameter")
			return
		}
		horizon = h
	}

	maxPasses := 0
	if v := q.Get("max_passes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid max_passes parameter")
			return
		}
		maxPasses = n
	}

	sats, err := selectSatellites(ds, q.Get("sat"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	includeTrack := q.Get("track") == "1" || q.Get("track") == "true"

	req := passes.Request{
		Observer:     observer,
		Satellites:   sats,
		Start:        start,
		HorizonHours: hours,
		HorizonDeg:   horizon,
		MaxPasses:    maxPasses,
	}
	if includeTrack {
		req.LabelEveryNth = 10
	}

	predictStart := time.Now()
	results := passes.Predict(r.Context(), req)
	metrics.ObservePredictionDuration(time.Since(predictStart))

	out := passesResponse{
		Observer: newObserverJSON(observer),
		Start:    start.Format(time.RFC3339),
		Hours:    hours,
	}
	for _, res := range results {
		sj := satPassesJSON{
			CatalogNumber: res.CatalogNumber,
			Name:          res.Name,
			Error:         res.Err,
		}
		for _, p := range res.Passes {
			pj := passJSON{
				Rise:     newEventJSON(p.Rise),
				Transit:  newEventJSON(p.Transit),
				Set:      newEventJSON(p.Set),
				Complete: p.Complete,
				Degraded: p.Degraded,
			}
			if includeTrack {
				pj.Track = newTrackJSON(p.Track)
			}
			sj.Passes = append(sj.Passes, pj)
		}
		out.Satellites = append(out.Satellites, sj)
	}

	httputil.WriteJSON(w, http.StatusOK, out)
}

// selectSatellites filters the dataset down to the requested catalog
// numbers, or returns all of it when the parameter is empty. Unknown numbers
// are a client error.
func selectSatellites(ds *elements.Dataset, satParam string) ([]elements.OrbitalElements, error) {
	if satParam == "" {
		return ds.Satellites, nil
	}

	byNumber := make(map[int]elements.OrbitalElements, len(ds.Satellites))
	for _, el := range ds.Satellites {
		byNumber[el.CatalogNumber] = el
	}

	var sats []elements.OrbitalElements
	for _, tok := range strings.Split(satParam, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return nil, &paramError{"invalid sat parameter: " + tok}
		}
		el, ok := byNumber[n]
		if !ok {
			return nil, &paramError{"unknown catalog number: " + tok}
		}
		sats = append(sats, el)
	}
	return sats, nil
}

type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

// handleSky serves the latest sky snapshot.
// GET /api/v1/sky
func (s *Server) handleSky(w http.ResponseWriter, r *http.Request) {
	if snap := s.deps.SkyCache.GetLatest(); snap != nil {
		httputil.WriteJSON(w, http.StatusOK, snap)
		return
	}

	// Cache cold (startup, or cutover gap): compute on demand.
	if s.deps.Computer != nil {
		snap, err := s.deps.Computer.SnapshotAt(r.Context(), time.Now().UTC())
		if err == nil {
			httputil.WriteJSON(w, http.StatusOK, snap)
			return
		}
		s.logger.Warn("on-demand snapshot failed", "error", err)
	}

	httputil.WriteError(w, http.StatusServiceUnavailable, "no sky data available")
}

// handleSkyStats serves snapshot cache statistics.
// GET /api/v1/sky/stats
func (s *Server) handleSkyStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.deps.SkyCache.Stats())
}

// handleSatellites lists tracked satellites joined with catalog info.
// GET /api/v1/satellites?transponder=&uplink=&downlink=&beacon=&mode=
func (s *Server) handleSatellites(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Store.Get()
	if ds == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "no element data loaded")
		return
	}

	q := r.URL.Query()
	f := catalog.Filter{
		Transponder: boolParam(q.Get("transponder")),
		Uplink:      boolParam(q.Get("uplink")),
		Downlink:    boolParam(q.Get("downlink")),
		Beacon:      boolParam(q.Get("beacon")),
		Mode:        q.Get("mode"),
	}

	entries := catalog.Merge(ds.Satellites, s.deps.Catalog.Get())
	out := satellitesResponse{
		DatasetFetchedAt: ds.FetchedAt.UTC().Format(time.RFC3339),
	}
	for _, e := range entries {
		if e.Info != nil && !f.Match(*e.Info) {
			continue
		}
		if e.Info == nil && !f.Match(catalog.Info{}) {
			// No radio info at all: only listed when the filter is open.
			continue
		}
		out.Satellites = append(out.Satellites, newSatelliteJSON(e))
	}
	out.Count = len(out.Satellites)

	httputil.WriteJSON(w, http.StatusOK, out)
}

func boolParam(v string) bool {
	return v == "1" || v == "true"
}

// handleRefresh fetches a fresh element set and installs it.
// POST /api/v1/tle/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Refresh == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}

	ds, err := s.deps.Refresh(r.Context())
	if err != nil {
		s.logger.Error("element refresh failed", "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "element refresh failed")
		return
	}

	metrics.SetTLEDatasetCount(len(ds.Satellites))
	httputil.WriteJSON(w, http.StatusOK, refreshResponse{
		Satellites:  len(ds.Satellites),
		FetchedAt:   ds.FetchedAt.UTC().Format(time.RFC3339),
		OldestEpoch: ds.EpochRange.Min.UTC().Format(time.RFC3339),
		NewestEpoch: ds.EpochRange.Max.UTC().Format(time.RFC3339),
	})
}
