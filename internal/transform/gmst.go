package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 reference epoch.
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

const secondsPerDay = 86400.0

// JulianDate converts a UTC instant to Julian Date using the Fliegel/Van
// Flandern style Gregorian algorithm. Sub-second precision is preserved
// through the nanosecond field.
func JulianDate(t time.Time) float64 {
	t = t.UTC()

	year := float64(t.Year())
	month := float64(t.Month())
	// January and February are counted as months 13 and 14 of the prior year
	// so the leap day lands at the end of the counting year.
	if month <= 2 {
		year--
		month += 12
	}

	century := math.Floor(year / 100)
	gregorian := 2 - century + math.Floor(century/4)

	dayNumber := math.Floor(365.25*(year+4716)) +
		math.Floor(30.6001*(month+1)) +
		float64(t.Day()) + gregorian - 1524.5

	clock := float64(t.Hour())*3600 +
		float64(t.Minute())*60 +
		float64(t.Second()) +
		float64(t.Nanosecond())/1e9

	return dayNumber + clock/secondsPerDay
}

// GMST returns Greenwich Mean Sidereal Time in radians, [0, 2π).
// IAU-82 model (Vallado Eq 3-47): a cubic in Julian centuries of UT1 from
// J2000.0, evaluated in seconds of time.
func GMST(t time.Time) float64 {
	tc := (JulianDate(t) - j2000) / 36525.0

	// 876600 hours expressed in seconds is 3155760000.
	sec := 67310.54841 + tc*(3155760000.0+8640184.812866+tc*(0.093104-tc*6.2e-6))

	sec = math.Mod(sec, secondsPerDay)
	if sec < 0 {
		sec += secondsPerDay
	}
	return sec * (2 * math.Pi / secondsPerDay)
}
