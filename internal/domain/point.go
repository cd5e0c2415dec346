package domain

import "sync/atomic"

// PointID is the identity handle of a Point.
type PointID uint64

var lastPointID atomic.Uint64

// NextPointID allocates a process-unique point identity.
func NextPointID() PointID {
	return PointID(lastPointID.Add(1))
}

// Point is a caller-supplied marker. Two points are the same point iff
// their IDs are equal; coordinates and payload are not part of identity.
type Point struct {
	ID         PointID
	Coordinate Coordinate
	Payload    any
}

// NewPoint creates a point with a fresh identity.
func NewPoint(c Coordinate, payload any) Point {
	return Point{ID: NextPointID(), Coordinate: c, Payload: payload}
}

// PointRecord is a point as read from a source, before identity is
// assigned. Key is unique within a dataset; Fingerprint changes whenever
// the record's content changes.
type PointRecord struct {
	Key         string
	Coordinate  Coordinate
	Properties  map[string]any
	Fingerprint string
}
