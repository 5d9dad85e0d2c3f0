// Package geo holds the great-circle math shared by discovery and ranking.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371000.0

// ValidCoordinates reports whether lat/lon lie within WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a slightly past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RoundToGrid snaps a coordinate to the nearest multiple of step degrees.
func RoundToGrid(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	rounded := math.Round(value/step) * step
	// Normalize -0 and float noise so keys format identically.
	return math.Round(rounded*1e6) / 1e6
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
