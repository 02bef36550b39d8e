package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// WGS-84 ellipsoid parameters (km).
const (
	wgs84A  = 6378.137              // semi-major axis
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ObserverPosition is a ground observer's location in both geodetic and ECEF
// frames. The ECEF coordinates (km) are precomputed once so they can be reused
// across many satellite lookups. Immutable value; safe to share across
// goroutines.
type ObserverPosition struct {
	LatRad, LonRad float64
	ElevM          float64    // meters above the ellipsoid
	ECEF           [3]float64 // km
}

// NewObserverPosition creates an ObserverPosition from geodetic coordinates.
// Latitude and longitude are signed degrees (north/east positive), elevation
// is meters above the WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, elevM float64) ObserverPosition {
	lat := latDeg * math.Pi / 180.0
	lon := lonDeg * math.Pi / 180.0

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	altKm := elevM / 1000.0

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		ElevM:  elevM,
		ECEF: [3]float64{
			(N + altKm) * cosLat * math.Cos(lon),
			(N + altKm) * cosLat * math.Sin(lon),
			(N*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// ParseAngle converts a latitude/longitude string to signed degrees. Accepts
// plain signed decimal degrees ("-0.7542") or degrees with a hemisphere
// letter ("51.3883 N", "0.7542 W"). South and west are negative.
func ParseAngle(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty angle")
	}

	sign := 1.0
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "S"), strings.HasSuffix(upper, "W"):
		sign = -1.0
		s = strings.TrimSpace(s[:len(s)-1])
	case strings.HasSuffix(upper, "N"), strings.HasSuffix(upper, "E"):
		s = strings.TrimSpace(s[:len(s)-1])
	}

	deg, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}
	return sign * deg, nil
}

// GeodeticPoint is a geodetic position: latitude/longitude in degrees,
// altitude in km above the ellipsoid.
type GeodeticPoint struct {
	LatDeg, LonDeg, AltKm float64
}

// ECEFToGeodetic converts ECEF coordinates (km) to geodetic coordinates using
// the iterative Bowring method. Converges in a few iterations for Earth orbits.
func ECEFToGeodetic(pos [3]float64) GeodeticPoint {
	x, y, z := pos[0], pos[1], pos[2]
	lon := math.Atan2(y, x)
	p := math.Sqrt(x*x + y*y)

	lat := math.Atan2(z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*N*sinLat, p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - N
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * 180.0 / math.Pi,
		LonDeg: lon * 180.0 / math.Pi,
		AltKm:  alt,
	}
}
