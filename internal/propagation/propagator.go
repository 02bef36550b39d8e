package propagation

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/hamsat/skytrack/internal/elements"
	"github.com/hamsat/skytrack/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite.
//
// Pure Go (no CGO), explicit TEME output, battle-tested since 2016. Its
// Propagate() takes the Satellite by value, so SGP4 error codes are not
// visible to the caller; propagation failures are detected by checking the
// output for NaN/Inf and unreasonable position magnitudes.

// MaxReliableDrift is how far from the element epoch SGP4 output remains
// trustworthy for LEO amateur satellites. Propagation past this point still
// succeeds; callers that care about accuracy check Degraded.
const MaxReliableDrift = 14 * 24 * time.Hour

// Propagator computes TEME state vectors for one satellite at arbitrary
// times. It holds no mutable state after construction and is safe for
// concurrent use.
type Propagator struct {
	sat satellite.Satellite
	el  elements.OrbitalElements
}

// New creates a Propagator from parsed orbital elements.
// Elements are validated for physical consistency before SGP4 initialization
// (the library fatally exits on garbage input); inconsistent parameters yield
// an *InvalidElementsError.
func New(el elements.OrbitalElements) (*Propagator, error) {
	if err := validate(el); err != nil {
		return nil, err
	}

	sat := satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, &InvalidElementsError{
			CatalogNumber: el.CatalogNumber,
			Reason:        fmt.Sprintf("sgp4 init code=%d %s", sat.Error, sat.ErrorStr),
		}
	}
	return &Propagator{sat: sat, el: el}, nil
}

// validate rejects physically inconsistent element parameters.
func validate(el elements.OrbitalElements) *InvalidElementsError {
	fail := func(reason string) *InvalidElementsError {
		return &InvalidElementsError{CatalogNumber: el.CatalogNumber, Reason: reason}
	}

	if len(el.Line1) != 69 || len(el.Line2) != 69 {
		return fail("element lines must be 69 columns")
	}
	if el.Line1[0] != '1' || el.Line2[0] != '2' {
		return fail("element lines must start with their line numbers")
	}
	if el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return fail(fmt.Sprintf("eccentricity %g outside [0,1)", el.Eccentricity))
	}
	if el.MeanMotion <= 0 {
		return fail(fmt.Sprintf("mean motion %g must be positive", el.MeanMotion))
	}
	if el.InclinationDeg < 0 || el.InclinationDeg > 180 {
		return fail(fmt.Sprintf("inclination %g outside [0,180]", el.InclinationDeg))
	}
	if el.Epoch.IsZero() {
		return fail("zero epoch")
	}
	return nil
}

// Elements returns the element set this propagator was built from.
func (p *Propagator) Elements() elements.OrbitalElements {
	return p.el
}

// EpochAge returns how far t is from the element epoch (always >= 0).
func (p *Propagator) EpochAge(t time.Time) time.Duration {
	d := t.Sub(p.el.Epoch)
	if d < 0 {
		d = -d
	}
	return d
}

// Degraded reports whether predictions at t have drifted past the reliable
// propagation horizon. Never an error: the caller decides whether to flag it.
func (p *Propagator) Degraded(t time.Time) bool {
	return p.EpochAge(t) > MaxReliableDrift
}

// Propagate computes the satellite state at t in the TEME frame (km, km/s).
// Deterministic: identical inputs give identical output. The underlying SGP4
// call has whole-second granularity; sub-second instants are handled by
// linear interpolation between the bracketing seconds, which for LEO speeds
// (~8 km/s) stays within a few meters of the true arc.
func (p *Propagator) Propagate(t time.Time) (transform.StateVector, error) {
	t = t.UTC()
	base := t.Truncate(time.Second)

	sv, err := p.propagateWhole(base)
	if err != nil {
		return transform.StateVector{}, err
	}

	if frac := float64(t.Sub(base)) / float64(time.Second); frac > 0 {
		next, err := p.propagateWhole(base.Add(time.Second))
		if err != nil {
			return transform.StateVector{}, err
		}
		for i := 0; i < 3; i++ {
			sv.Position[i] += (next.Position[i] - sv.Position[i]) * frac
			sv.Velocity[i] += (next.Velocity[i] - sv.Velocity[i]) * frac
		}
	}

	sv.Time = t
	return sv, nil
}

// propagateWhole runs SGP4 at whole-second resolution and sanity-checks the
// output. Position magnitude must fall between a decayed perigee and well
// beyond geostationary radius.
func (p *Propagator) propagateWhole(t time.Time) (transform.StateVector, error) {
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return transform.StateVector{}, fmt.Errorf("sgp4 propagation failed for catalog %d: output is NaN/Inf", p.el.CatalogNumber)
	}

	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return transform.StateVector{}, fmt.Errorf("sgp4 propagation failed for catalog %d: unreasonable position magnitude %.1f km", p.el.CatalogNumber, mag)
	}

	return transform.StateVector{
		Time:     t,
		Position: [3]float64{pos.X, pos.Y, pos.Z},
		Velocity: [3]float64{vel.X, vel.Y, vel.Z},
	}, nil
}
