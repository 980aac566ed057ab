package geo

import (
	"math"

	"github.com/KaramelBytes/sigloom-cli/internal/utils"
	"github.com/paulmach/orb"
)

// World is the valid lon/lat extent.
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// DefaultCenter is used when a row carries no usable coordinates (Johannesburg).
var DefaultCenter = orb.Point{28.0473, -26.2041}

const (
	rowJitterStep  = 0.0004
	randomJitterHW = 0.0001
)

// Source yields uniform values in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// IsValid reports whether lat/lon form a usable location. The pair (0,0) is
// treated as "unset" rather than a real position.
func IsValid(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	if lat == 0 && lon == 0 {
		return false
	}
	return World.Contains(orb.Point{lon, lat})
}

// ParseValid parses raw lat/lon strings and validates the pair. Decimal
// commas are accepted, so "-26,1" reads as -26.1.
func ParseValid(latRaw, lonRaw string) (orb.Point, bool) {
	lat, ok := utils.ParseNumber(latRaw)
	if !ok {
		return orb.Point{}, false
	}
	lon, ok := utils.ParseNumber(lonRaw)
	if !ok {
		return orb.Point{}, false
	}
	if !IsValid(lat, lon) {
		return orb.Point{}, false
	}
	return orb.Point{lon, lat}, true
}

// Fallback synthesizes a coordinate around center for the given row ordinal.
// The per-row term is never zero and always larger than the random term, so
// the result never equals center. The result is always valid.
func Fallback(center orb.Point, row int, rng Source) orb.Point {
	if !IsValid(center.Lat(), center.Lon()) {
		center = DefaultCenter
	}
	if row < 0 {
		row = -row
	}
	dLat := (float64(row%50) - 24.5) * rowJitterStep
	dLon := (float64((row/50)%50) - 24.5) * rowJitterStep
	if rng != nil {
		dLat += (rng.Float64()*2 - 1) * randomJitterHW
		dLon += (rng.Float64()*2 - 1) * randomJitterHW
	}
	return clamp(orb.Point{center.Lon() + dLon, center.Lat() + dLat})
}

func clamp(p orb.Point) orb.Point {
	lon := math.Max(World.Min.Lon(), math.Min(World.Max.Lon(), p.Lon()))
	lat := math.Max(World.Min.Lat(), math.Min(World.Max.Lat(), p.Lat()))
	if lat == 0 && lon == 0 {
		lat = rowJitterStep
	}
	return orb.Point{lon, lat}
}

// Bounds returns the extent of the given points. Empty input yields the zero bound.
func Bounds(points []orb.Point) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	return orb.MultiPoint(points).Bound()
}
