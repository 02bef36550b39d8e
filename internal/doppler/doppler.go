// Package doppler derives carrier frequency shifts from topocentric range
// rates. The sign convention follows the transform package: negative range
// rate (approaching) gives a positive shift.
package doppler

// SpeedOfLightKmS is c in km/s, matching the km/s units of range rate.
const SpeedOfLightKmS = 299792.458

// Reference amateur downlink carriers (Hz) used for at-a-glance shift
// readouts alongside a satellite's own published frequencies.
const (
	Downlink2m   = 145.9e6
	Downlink70cm = 436.5e6
)

// Shift returns the Doppler frequency delta in Hz for a carrier observed at
// the given range rate:
//
//	Δf = −(dρ/dt)/c · f₀
//
// Valid for any finite carrier frequency (non-relativistic approximation).
func Shift(rangeRateKmS, carrierHz float64) float64 {
	return -rangeRateKmS / SpeedOfLightKmS * carrierHz
}
