package passes

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/propagation"
	"github.com/hamsat/skytrack/internal/transform"
)

// Request describes a pass prediction over a time window for one observer
// and a set of element sets.
type Request struct {
	Observer   transform.ObserverPosition
	Satellites []elements.OrbitalElements

	Start        time.Time
	HorizonHours float64 // window length, default 24h
	HorizonDeg   float64 // altitude threshold for rise/set, default 0

	// MaxPasses caps complete passes per satellite; <= 0 means unlimited.
	MaxPasses int

	// Track sampling. SampleStep <= 0 uses DefaultSampleStep;
	// LabelEveryNth == 0 produces unlabelled tracks.
	SampleStep    time.Duration
	LabelEveryNth int
}

func (r Request) window() (time.Time, time.Time) {
	hours := r.HorizonHours
	if hours <= 0 {
		hours = 24
	}
	start := r.Start.UTC()
	return start, start.Add(time.Duration(hours * float64(time.Hour)))
}

// Pass groups the events of one above-horizon arc together with its sampled
// track. Rise is nil when the window opened mid-pass, Set is nil when it
// closed mid-pass; Complete is true only when all three events are present.
// Degraded flags predictions computed from elements older than the reliable
// propagation span.
type Pass struct {
	Rise     *Event
	Transit  *Event
	Set      *Event
	Complete bool
	Degraded bool
	Track    []TrackPoint
}

// SatellitePasses holds the prediction outcome for one satellite. Err is set
// when the element set could not be propagated at all; an empty Passes slice
// with empty Err simply means the satellite is not visible in the window.
type SatellitePasses struct {
	CatalogNumber int
	Name          string
	Passes        []Pass
	Err           string
}

// Predict runs pass prediction for every satellite in the request,
// fanning out across CPUs. Results keep the request's satellite order.
// Satellites not yet started when ctx is cancelled are skipped.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	start, end := req.window()

	results := make([]SatellitePasses, len(req.Satellites))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, el := range req.Satellites {
		select {
		case <-ctx.Done():
			results[i] = SatellitePasses{CatalogNumber: el.CatalogNumber, Name: el.Name, Err: ctx.Err().Error()}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, el elements.OrbitalElements) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = predictOne(el, req.Observer, start, end, req)
		}(i, el)
	}
	wg.Wait()

	return results
}

func predictOne(el elements.OrbitalElements, obs transform.ObserverPosition, start, end time.Time, req Request) SatellitePasses {
	out := SatellitePasses{CatalogNumber: el.CatalogNumber, Name: el.Name}

	prop, err := propagation.New(el)
	if err != nil {
		out.Err = err.Error()
		return out
	}

	events := FindEvents(prop, obs, start, end, req.HorizonDeg, req.MaxPasses)
	for _, p := range groupPasses(events) {
		from, to := start, end
		if p.Rise != nil {
			from = p.Rise.Time
		}
		if p.Set != nil {
			to = p.Set.Time
		}
		p.Track = SamplePass(prop, obs, from, to, req.SampleStep, req.LabelEveryNth)
		p.Degraded = prop.Degraded(from)
		out.Passes = append(out.Passes, p)
	}
	return out
}

// groupPasses splits a time-ordered event sequence into passes. A Set closes
// the current pass; trailing events without a Set form a final partial pass.
func groupPasses(events []Event) []Pass {
	var passes []Pass
	var cur *Pass
	for i := range events {
		ev := &events[i]
		switch ev.Kind {
		case Rise:
			if cur != nil {
				passes = append(passes, *cur)
			}
			cur = &Pass{Rise: ev}
		case Transit:
			if cur == nil {
				cur = &Pass{}
			}
			cur.Transit = ev
		case Set:
			if cur == nil {
				cur = &Pass{}
			}
			cur.Set = ev
			cur.Complete = cur.Rise != nil && cur.Transit != nil
			passes = append(passes, *cur)
			cur = nil
		}
	}
	if cur != nil {
		passes = append(passes, *cur)
	}
	return passes
}

// ListedPass is a pass annotated with its satellite, for flattened listings.
type ListedPass struct {
	CatalogNumber int
	Name          string
	Pass
}

// SortedList flattens per-satellite results into one list ordered by rise
// time, breaking ties by catalog number.
func SortedList(results []SatellitePasses) []ListedPass {
	var list []ListedPass
	for _, r := range results {
		for _, p := range r.Passes {
			list = append(list, ListedPass{CatalogNumber: r.CatalogNumber, Name: r.Name, Pass: p})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		ti, tj := sortKey(list[i].Pass), sortKey(list[j].Pass)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return list[i].CatalogNumber < list[j].CatalogNumber
	})
	return list
}

func sortKey(p Pass) time.Time {
	switch {
	case p.Rise != nil:
		return p.Rise.Time
	case p.Transit != nil:
		return p.Transit.Time
	case p.Set != nil:
		return p.Set.Time
	}
	return time.Time{}
}
