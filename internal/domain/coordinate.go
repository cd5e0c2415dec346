// Package domain contains the core business entities and value objects.
package domain

import (
	"fmt"
	"math"
)

// MaxSupportedZoom is the deepest zoom level a region can map to.
const MaxSupportedZoom = 24

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate creates a coordinate from latitude and longitude.
func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: lat, Lon: lon}
}

// Validate checks that the coordinate is a finite WGS84 position.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      c.Lon,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      c.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	return nil
}

// String returns a string representation of the coordinate.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%f, %f)", c.Lat, c.Lon)
}

// BoundingBox is a geographic rectangle. West > East means the box
// crosses the antimeridian.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// WorldBounds covers every valid coordinate.
var WorldBounds = BoundingBox{West: -180, South: -90, East: 180, North: 90}

// CrossesAntimeridian reports whether the box wraps around longitude 180.
func (b BoundingBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Contains checks if a coordinate is within the box.
func (b BoundingBox) Contains(c Coordinate) bool {
	if c.Lat < b.South || c.Lat > b.North {
		return false
	}
	if b.CrossesAntimeridian() {
		return c.Lon >= b.West || c.Lon <= b.East
	}
	return c.Lon >= b.West && c.Lon <= b.East
}

// IsValid checks that the box has finite, ordered latitudes.
func (b BoundingBox) IsValid() bool {
	for _, v := range []float64{b.West, b.South, b.East, b.North} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.South <= b.North
}

// Center returns the center coordinate of the box.
func (b BoundingBox) Center() Coordinate {
	east := b.East
	if b.CrossesAntimeridian() {
		east += 360
	}
	return Coordinate{
		Lat: (b.South + b.North) / 2,
		Lon: NormalizeLongitude((b.West + east) / 2),
	}
}

// NormalizeLongitude wraps a longitude into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	return math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
}

func clampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}
