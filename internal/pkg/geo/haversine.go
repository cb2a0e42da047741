// Package geo holds the great-circle helpers used by the store finder.
package geo

import "math"

const EarthRadiusKm = 6371.0

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine distance between a and b in kilometres,
// rounded to two decimals.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return Round2(EarthRadiusKm * c)
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
