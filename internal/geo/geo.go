// Package geo computes great-circle distances between coordinates.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for distance calculations.
const EarthRadiusKm = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"x"`
	Lon float64 `json:"y"`
}

// Paris is the default reference point for partner proximity scoring.
var Paris = Point{Lat: 48.85, Lon: 2.35}

// Distance returns the haversine distance between a and b in kilometers.
// Callers must pass coordinates within valid lat/lon ranges.
func Distance(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Clamp so rounding never pushes asin out of its domain.
	if h > 1 {
		h = 1
	}
	return EarthRadiusKm * 2 * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
