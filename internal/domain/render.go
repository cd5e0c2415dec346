package domain

// RenderItem is one marker handed to the rendering sink. Exactly one of
// Point and Cluster is set.
type RenderItem struct {
	Key     string // unique within a render pass, regenerated every pass
	Point   *Point
	Cluster *ClusterMarker
}

// IsCluster reports whether the item is a cluster marker.
func (i RenderItem) IsCluster() bool {
	return i.Cluster != nil
}

// Position returns where the item is drawn.
func (i RenderItem) Position() Coordinate {
	if i.Cluster != nil {
		return i.Cluster.Coordinate
	}
	if i.Point != nil {
		return i.Point.Coordinate
	}
	return Coordinate{}
}

// ClusterMarker describes a rendered cluster.
type ClusterMarker struct {
	ClusterID     ClusterID
	Generation    uint64
	Coordinate    Coordinate
	PointCount    int
	ExpansionZoom int    // zoom at which the cluster splits
	Content       any    // output of the caller's cluster render function
	OnClick       func() // invokes the caller's cluster-click callback
}

// Click invokes the marker's click handler, if any.
func (m *ClusterMarker) Click() {
	if m != nil && m.OnClick != nil {
		m.OnClick()
	}
}
