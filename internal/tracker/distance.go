package tracker

import "math"

// DistanceFunc computes the distance in meters between two positions. The
// rest of the system treats it as an opaque collaborator.
type DistanceFunc func(a, b Position) float64

// earthRadiusMeters is the mean Earth radius used by Haversine.
const earthRadiusMeters = 6371000

// Haversine is the default DistanceFunc: great-circle distance in meters.
func Haversine(a, b Position) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
