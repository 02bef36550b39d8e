// Package passes finds horizon-crossing events and builds sampled sky tracks
// for satellite passes over a ground observer.
package passes

import (
	"time"

	"github.com/hamsat/skytrack/internal/propagation"
	"github.com/hamsat/skytrack/internal/transform"
)

// EventKind identifies a horizon-crossing event within a pass.
type EventKind int

const (
	Rise EventKind = iota
	Transit
	Set
)

func (k EventKind) String() string {
	switch k {
	case Rise:
		return "rise"
	case Transit:
		return "transit"
	case Set:
		return "set"
	}
	return "unknown"
}

// Event is a single pass event with the topocentric observation at its time.
type Event struct {
	Time        time.Time
	Kind        EventKind
	Observation transform.Observation
}

const (
	// coarseStep must stay well under the shortest LEO pass (~5 min above a
	// zero-degree horizon) so no pass is skipped entirely.
	coarseStep = 30 * time.Second

	// refineTolerance is the target bracket width for event times.
	refineTolerance = 100 * time.Millisecond

	maxRefineIters = 60
)

// altitudeFn evaluates altitude minus the horizon threshold at t. The bool is
// false when propagation failed at that instant.
type altitudeFn func(t time.Time) (float64, transform.Observation, bool)

// FindEvents scans [start, end] for rise/transit/set events above the given
// horizon altitude (degrees), in non-decreasing time order.
//
// Behavior at the window edges:
//   - Above the horizon at start: no synthetic Rise is fabricated; the
//     ongoing pass still yields its Transit and Set if they fall inside the
//     window.
//   - Window ends mid-pass: the sequence ends without a Set (partial pass).
//     Transit is included only when the satellite peaked before the window
//     closed.
//
// A satellite that never crosses the horizon yields an empty slice — that is
// the normal not-visible case, not a failure. The scan stops once maxPasses
// Set events have been found (maxPasses <= 0 means no limit), so cost is
// bounded by O(window / step) regardless of geometry.
func FindEvents(prop *propagation.Propagator, obs transform.ObserverPosition, start, end time.Time, horizonDeg float64, maxPasses int) []Event {
	if !start.Before(end) {
		return nil
	}

	altAt := func(t time.Time) (float64, transform.Observation, bool) {
		sv, err := prop.Propagate(t)
		if err != nil {
			return 0, transform.Observation{}, false
		}
		o := transform.Observe(sv, obs)
		return o.AltitudeDeg - horizonDeg, o, true
	}

	var (
		events    []Event
		completed int
		havePrev  bool
		prevT     time.Time
		inPass    bool
		rose      bool      // a Rise was emitted for the current above-horizon span
		passStart time.Time // rise time, or window start when already up
	)

	t := start
	for {
		diff, _, ok := altAt(t)
		if ok {
			switch {
			case !havePrev:
				havePrev = true
				inPass = diff > 0
				if inPass {
					passStart = t
				}

			case !inPass && diff > 0:
				riseT, riseObs := refineCrossing(altAt, prevT, t, true)
				events = append(events, Event{Time: riseT, Kind: Rise, Observation: riseObs})
				inPass = true
				rose = true
				passStart = riseT

			case inPass && diff <= 0:
				setT, setObs := refineCrossing(altAt, prevT, t, false)
				trT, trObs := refineMax(altAt, passStart, setT)
				events = append(events,
					Event{Time: trT, Kind: Transit, Observation: trObs},
					Event{Time: setT, Kind: Set, Observation: setObs},
				)
				inPass = false
				rose = false
				completed++
				if maxPasses > 0 && completed >= maxPasses {
					return events
				}
			}
			prevT = t
		}

		if !t.Before(end) {
			break
		}
		t = t.Add(coarseStep)
		if t.After(end) {
			t = end
		}
	}

	// Window closed mid-pass: Set omitted. Report the Transit only when the
	// peak is clearly interior to the window.
	if inPass && rose {
		trT, trObs := refineMax(altAt, passStart, end)
		if trT.Before(end.Add(-coarseStep)) {
			events = append(events, Event{Time: trT, Kind: Transit, Observation: trObs})
		}
	}

	return events
}

// refineCrossing narrows a horizon crossing bracketed by [lo, hi] to
// refineTolerance using bisection. rising selects which crossing direction
// the bracket holds.
func refineCrossing(f altitudeFn, lo, hi time.Time, rising bool) (time.Time, transform.Observation) {
	for i := 0; i < maxRefineIters && hi.Sub(lo) > refineTolerance; i++ {
		mid := lo.Add(hi.Sub(lo) / 2)
		d, _, ok := f(mid)
		if !ok {
			break
		}
		if rising == (d < 0) {
			lo = mid
		} else {
			hi = mid
		}
	}

	t := lo.Add(hi.Sub(lo) / 2)
	_, o, ok := f(t)
	if !ok {
		o = transform.Observation{Time: t}
	}
	return t, o
}

// refineMax finds the altitude maximum in [lo, hi] by ternary search. A pass
// has a single culmination, so altitude is unimodal over the span.
func refineMax(f altitudeFn, lo, hi time.Time) (time.Time, transform.Observation) {
	for i := 0; i < maxRefineIters && hi.Sub(lo) > refineTolerance; i++ {
		third := hi.Sub(lo) / 3
		m1 := lo.Add(third)
		m2 := hi.Add(-third)
		d1, _, ok1 := f(m1)
		d2, _, ok2 := f(m2)
		if !ok1 || !ok2 {
			break
		}
		if d1 < d2 {
			lo = m1
		} else {
			hi = m2
		}
	}

	t := lo.Add(hi.Sub(lo) / 2)
	_, o, ok := f(t)
	if !ok {
		o = transform.Observation{Time: t}
	}
	return t, o
}
