package passes

import (
	"time"

	"github.com/hamsat/skytrack/internal/propagation"
	"github.com/hamsat/skytrack/internal/transform"
)

// DefaultSampleStep is the spacing between track points when the caller does
// not choose one.
const DefaultSampleStep = 30 * time.Second

// TrackPoint is one sampled observation along a pass. Label carries an
// HH:MM:SS UTC timestamp on the points a plot should annotate, and is empty
// elsewhere.
type TrackPoint struct {
	transform.Observation
	Label string
}

// SamplePass samples the sky track between from and to at the given step.
// The terminal instant always gets a sample so the track reaches the horizon
// even when the span is not a whole multiple of step. When labelEveryNth > 0
// every Nth point plus the final one is labelled; zero disables labels.
// Instants where propagation fails are skipped.
func SamplePass(prop *propagation.Propagator, obs transform.ObserverPosition, from, to time.Time, step time.Duration, labelEveryNth int) []TrackPoint {
	if step <= 0 {
		step = DefaultSampleStep
	}
	if to.Before(from) {
		return nil
	}

	var points []TrackPoint
	i := 0
	for t := from; t.Before(to); t = t.Add(step) {
		if p, ok := samplePoint(prop, obs, t, labelEveryNth > 0 && i%labelEveryNth == 0); ok {
			points = append(points, p)
		}
		i++
	}
	if p, ok := samplePoint(prop, obs, to, labelEveryNth > 0); ok {
		points = append(points, p)
	}
	return points
}

func samplePoint(prop *propagation.Propagator, obs transform.ObserverPosition, t time.Time, label bool) (TrackPoint, bool) {
	sv, err := prop.Propagate(t)
	if err != nil {
		return TrackPoint{}, false
	}
	p := TrackPoint{Observation: transform.Observe(sv, obs)}
	if label {
		p.Label = t.UTC().Format("15:04:05")
	}
	return p, true
}
