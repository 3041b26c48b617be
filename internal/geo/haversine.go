package geo

import (
	"math"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

// earthRadiusMeters is the mean earth radius used for great-circle distance.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle (haversine) distance in meters between
// two points given in decimal degrees. Pure and deterministic.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// WithinFence reports whether the claimed point lies strictly inside the
// fence radius. The boundary is exclusive: a claim exactly on the radius is
// rejected.
func WithinFence(lat, lon float64, fence model.GeoFence) bool {
	return Distance(lat, lon, fence.Latitude, fence.Longitude) < fence.Radius
}
