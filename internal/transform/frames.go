// Package transform provides coordinate frame transformations and topocentric
// observations for satellite tracking.
//
// SGP4 outputs state vectors in TEME (True Equator Mean Equinox); observers
// live on the rotating Earth. The TEME -> ECEF rotation here is the simplified
// Vallado-style GMST-only rotation (TEME -> PEF ~= ECEF), ignoring polar motion
// and the equation of the equinoxes. The resulting ~50 m error is far below
// the km-level accuracy of the TLE element sets themselves.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3-4.
package transform

import (
	"math"
	"time"
)

// StateVector is a satellite position (km) and velocity (km/s) in the TEME
// inertial frame at a specific instant.
type StateVector struct {
	Time     time.Time
	Position [3]float64
	Velocity [3]float64
}

// ECEFState is a satellite position (km) and velocity (km/s) in the
// Earth-Centered Earth-Fixed frame.
type ECEFState struct {
	Position [3]float64
	Velocity [3]float64
}

// TEMEToECEF transforms a TEME state to ECEF at the state's own time.
func TEMEToECEF(sv StateVector) ECEFState {
	return TEMEToECEFWithGMST(sv, GMST(sv.Time))
}

// TEMEToECEFWithGMST transforms TEME to ECEF using a precomputed GMST angle
// (radians). Useful when transforming many satellites at the same instant.
//
//	r_ECEF = R3(θ) · r_TEME
//	v_ECEF = R3(θ) · v_TEME − ω × r_ECEF
//
// where R3(θ) rotates about the Z axis by GMST and ω = [0, 0, ω_earth].
// The ECEF velocity is relative to the rotating Earth, so a ground observer
// is stationary in this frame.
func TEMEToECEFWithGMST(sv StateVector, gmst float64) ECEFState {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := sv.Position[0]*cosG + sv.Position[1]*sinG
	y := -sv.Position[0]*sinG + sv.Position[1]*cosG
	z := sv.Position[2]

	vx := sv.Velocity[0]*cosG + sv.Velocity[1]*sinG
	vy := -sv.Velocity[0]*sinG + sv.Velocity[1]*cosG
	vz := sv.Velocity[2]

	// ω × r_ECEF = [-ω·y, ω·x, 0]
	vx += OmegaEarth * y
	vy -= OmegaEarth * x

	return ECEFState{
		Position: [3]float64{x, y, z},
		Velocity: [3]float64{vx, vy, vz},
	}
}

// ValidECEF reports whether an ECEF position (km) is physically reasonable
// for an Earth-orbiting satellite: finite, and between a low perigee and
// somewhat beyond geostationary radius.
func ValidECEF(pos [3]float64) bool {
	for _, v := range pos {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	mag := math.Sqrt(pos[0]*pos[0] + pos[1]*pos[1] + pos[2]*pos[2])
	return mag >= 6200.0 && mag <= 50000.0
}
