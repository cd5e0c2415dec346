package domain

import (
	"fmt"
	"math"
)

// Region is the visible map area reported by the viewport.
type Region struct {
	Center         Coordinate
	LatitudeDelta  float64
	LongitudeDelta float64
}

// NewRegion creates a region centered on (lat, lon).
func NewRegion(lat, lon, latDelta, lonDelta float64) Region {
	return Region{
		Center:         Coordinate{Lat: lat, Lon: lon},
		LatitudeDelta:  latDelta,
		LongitudeDelta: lonDelta,
	}
}

// Validate checks the region center and spans.
func (r Region) Validate() error {
	if err := r.Center.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRegion, err)
	}
	if math.IsNaN(r.LatitudeDelta) || math.IsInf(r.LatitudeDelta, 0) || r.LatitudeDelta < 0 {
		return &ValidationError{
			Field:      "latitudeDelta",
			Value:      r.LatitudeDelta,
			Constraint: ">= 0, finite",
			Message:    "latitude delta must be a finite, non-negative number",
		}
	}
	if math.IsNaN(r.LongitudeDelta) || math.IsInf(r.LongitudeDelta, 0) || r.LongitudeDelta < 0 {
		return &ValidationError{
			Field:      "longitudeDelta",
			Value:      r.LongitudeDelta,
			Constraint: ">= 0, finite",
			Message:    "longitude delta must be a finite, non-negative number",
		}
	}
	return nil
}

// BoundingBox returns center ± delta/2. Latitudes are clamped and
// longitudes wrapped; a longitude span of 360 or more covers the world.
func (r Region) BoundingBox() BoundingBox {
	halfLat := r.LatitudeDelta / 2
	south := clampLatitude(r.Center.Lat - halfLat)
	north := clampLatitude(r.Center.Lat + halfLat)

	if r.LongitudeDelta >= 360 {
		return BoundingBox{West: -180, South: south, East: 180, North: north}
	}

	halfLon := r.LongitudeDelta / 2
	return BoundingBox{
		West:  NormalizeLongitude(r.Center.Lon - halfLon),
		South: south,
		East:  NormalizeLongitude(r.Center.Lon + halfLon),
		North: north,
	}
}

// Zoom returns round(log2(360 / LongitudeDelta)) clamped to
// [0, MaxSupportedZoom].
func (r Region) Zoom() int {
	if r.LongitudeDelta <= 0 || math.IsNaN(r.LongitudeDelta) {
		return MaxSupportedZoom
	}
	z := int(math.Round(math.Log2(360 / r.LongitudeDelta)))
	if z < 0 {
		return 0
	}
	if z > MaxSupportedZoom {
		return MaxSupportedZoom
	}
	return z
}

// String returns a string representation of the region.
func (r Region) String() string {
	return fmt.Sprintf("center=%s delta=(%f, %f)", r.Center, r.LatitudeDelta, r.LongitudeDelta)
}
