package domain

// Feature is one entry of a clustering query result. It is either a
// PointFeature or a ClusterFeature.
type Feature interface {
	// Position is where the feature is drawn.
	Position() Coordinate
	// Count is the number of input points the feature stands for.
	Count() int
	isFeature()
}

// PointFeature is a single point that was not grouped at the queried zoom.
type PointFeature struct {
	Point Point
}

// Position returns the point's coordinate.
func (f PointFeature) Position() Coordinate { return f.Point.Coordinate }

// Count is always 1.
func (f PointFeature) Count() int { return 1 }

func (PointFeature) isFeature() {}

// ClusterID identifies a cluster within one index.
type ClusterID uint64

// ClusterFeature is a group of nearby points.
type ClusterFeature struct {
	ID         ClusterID
	Generation uint64     // index generation that produced the cluster
	Center     Coordinate // count-weighted centroid of the members
	PointCount int        // leaf points, counted recursively
}

// Position returns the cluster centroid.
func (f ClusterFeature) Position() Coordinate { return f.Center }

// Count returns the number of leaf points.
func (f ClusterFeature) Count() int { return f.PointCount }

func (ClusterFeature) isFeature() {}

// CountPoints sums the leaf counts of a result set.
func CountPoints(features []Feature) int {
	n := 0
	for _, f := range features {
		n += f.Count()
	}
	return n
}
