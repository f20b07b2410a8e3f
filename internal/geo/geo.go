package geo

import (
	"math"

	"github.com/julianbeese/immo_search/internal/domain"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points using the
// Haversine formula. NaN inputs yield NaN.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*
			math.Sin(dLambda/2)*math.Sin(dLambda/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// ValidCoordinates reports whether lat/lon are finite and in range
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// WithinRadius reports whether (lat, lon) lies within radiusKm of origin.
// A NaN distance is never within radius.
func WithinRadius(origin domain.Location, lat, lon, radiusKm float64) bool {
	d := DistanceKm(origin.Lat, origin.Lon, lat, lon)
	// NaN compares false, so this also excludes it
	return d <= radiusKm
}
