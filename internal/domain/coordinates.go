package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	earthRadiusMeters = 6371008.8
	MetersPerMile     = 1609.344
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// IsZero reports whether no coordinates were supplied.
func (c Coordinates) IsZero() bool { return c.Lat == 0 && c.Lon == 0 }

// Key is the stable cache/matrix key for a coordinate pair (6 decimals, ~0.1m).
func (c Coordinates) Key() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon) }

func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// GreatCircleMeters returns the haversine distance between a and b.
func GreatCircleMeters(a, b Coordinates) float64 {
	if a.Key() == b.Key() {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// A postal address with resolved coordinates.
type Location struct {
	Address string
	Coordinates
}

// NormalizeAddress collapses whitespace so equal addresses produce equal cache keys.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
