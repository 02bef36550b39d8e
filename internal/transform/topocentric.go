package transform

import (
	"math"
	"time"
)

// Observation is the topocentric view of a satellite from a ground observer
// at one instant. Azimuth is measured clockwise from geographic north in
// [0, 360) degrees; altitude is degrees above the horizon in [-90, 90].
// RangeRateKmS is positive when the satellite recedes and negative when it
// approaches — the Doppler sign convention depends on this.
type Observation struct {
	Time         time.Time
	AltitudeDeg  float64
	AzimuthDeg   float64
	RangeKm      float64
	RangeRateKmS float64
}

// azEps: below this slant distance from the zenith axis (km) the azimuth is
// numerically meaningless; a fixed 0 is returned instead of atan2 noise.
const azEps = 1e-9

// Observe converts a TEME state vector to a topocentric observation for the
// given observer. Pure function of its inputs.
//
// The state is rotated into ECEF, where the observer is stationary, so the
// range rate is simply the projection of the satellite's ECEF velocity onto
// the observer-to-satellite unit vector. Altitude/azimuth come from the SEZ
// (South-East-Zenith) rotation per Vallado Section 4.4.
func Observe(sv StateVector, obs ObserverPosition) Observation {
	ecef := TEMEToECEF(sv)

	rx := ecef.Position[0] - obs.ECEF[0]
	ry := ecef.Position[1] - obs.ECEF[1]
	rz := ecef.Position[2] - obs.ECEF[2]

	rangeMag := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if rangeMag < azEps {
		// Degenerate geometry: satellite at the observer. Defined values
		// rather than NaN.
		return Observation{Time: sv.Time, AltitudeDeg: 90}
	}

	sinLat := math.Sin(obs.LatRad)
	cosLat := math.Cos(obs.LatRad)
	sinLon := math.Sin(obs.LonRad)
	cosLon := math.Cos(obs.LonRad)

	// Rotate the ECEF range vector to SEZ (South, East, Zenith).
	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	// Clamp before Asin: rounding can push the ratio a ULP past 1.
	sinEl := zenith / rangeMag
	if sinEl > 1 {
		sinEl = 1
	} else if sinEl < -1 {
		sinEl = -1
	}
	el := math.Asin(sinEl)

	// Azimuth clockwise from North. In SEZ, North = -South, so
	// az = atan2(east, -south). Directly at the zenith (or nadir) the
	// horizontal component vanishes and azimuth is fixed at 0.
	var az float64
	if math.Hypot(south, east) > azEps {
		az = math.Atan2(east, -south)
		if az < 0 {
			az += 2 * math.Pi
		}
	}

	// Observer is stationary in ECEF, so the relative velocity is the
	// satellite's ECEF velocity.
	rangeRate := (ecef.Velocity[0]*rx + ecef.Velocity[1]*ry + ecef.Velocity[2]*rz) / rangeMag

	return Observation{
		Time:         sv.Time,
		AltitudeDeg:  el * 180.0 / math.Pi,
		AzimuthDeg:   az * 180.0 / math.Pi,
		RangeKm:      rangeMag,
		RangeRateKmS: rangeRate,
	}
}
