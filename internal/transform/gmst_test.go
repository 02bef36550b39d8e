package transform

import (
	"math"
	"testing"
	"time"
)

func TestJulianDateJ2000(t *testing.T) {
	// J2000.0 epoch: 2000-01-01 12:00:00 UTC is JD 2451545.0 (ignoring the
	// sub-minute UTC/TT offset, which JulianDate does not model).
	jd := JulianDate(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC))
	if math.Abs(jd-2451545.0) > 1e-9 {
		t.Errorf("JulianDate(J2000) = %.9f, want 2451545.0", jd)
	}
}

func TestJulianDateKnownDates(t *testing.T) {
	cases := []struct {
		when time.Time
		want float64
	}{
		// Midnight preceding J2000.
		{time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), 2451544.5},
		// Vallado Example 3-4.
		{time.Date(1996, 10, 26, 14, 20, 0, 0, time.UTC), 2450383.09722222},
		// January handled via the month-13 branch.
		{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), 2460324.5},
	}
	for _, tc := range cases {
		got := JulianDate(tc.when)
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("JulianDate(%s) = %.8f, want %.8f", tc.when, got, tc.want)
		}
	}
}

func TestJulianDateMonotonic(t *testing.T) {
	base := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	jd0 := JulianDate(base)
	jd1 := JulianDate(base.Add(6 * time.Hour))
	if math.Abs((jd1-jd0)-0.25) > 1e-9 {
		t.Errorf("6 hours advanced JD by %.10f days, want 0.25", jd1-jd0)
	}
}

func TestGMSTVallado(t *testing.T) {
	// Vallado Example 3-5: 1992 August 20, 12:14:00 UT1 gives
	// GMST = 152.578787886 degrees.
	when := time.Date(1992, 8, 20, 12, 14, 0, 0, time.UTC)
	gotDeg := GMST(when) * 180.0 / math.Pi
	if math.Abs(gotDeg-152.578787886) > 1e-3 {
		t.Errorf("GMST = %.6f deg, want 152.578788", gotDeg)
	}
}

func TestGMSTRange(t *testing.T) {
	// GMST must stay in [0, 2π) across a day of samples.
	base := time.Date(2024, 4, 9, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 24; i++ {
		g := GMST(base.Add(time.Duration(i) * time.Hour))
		if g < 0 || g >= 2*math.Pi {
			t.Errorf("GMST at hour %d = %f, outside [0, 2π)", i, g)
		}
	}
}

func TestGMSTAdvancesWithEarthRotation(t *testing.T) {
	// Over one hour the sidereal angle advances slightly more than 15
	// degrees (sidereal day is ~4 minutes shorter than solar).
	base := time.Date(2024, 4, 9, 3, 0, 0, 0, time.UTC)
	g0 := GMST(base)
	g1 := GMST(base.Add(time.Hour))
	delta := math.Mod(g1-g0+2*math.Pi, 2*math.Pi) * 180.0 / math.Pi
	if delta < 15.0 || delta > 15.1 {
		t.Errorf("GMST advanced %.4f deg in one hour, want ~15.04", delta)
	}
}
