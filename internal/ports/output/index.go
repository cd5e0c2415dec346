package output

import "github.com/jobrunner/clustermap/internal/domain"

// SpatialIndex is an immutable clustering index over a point snapshot.
type SpatialIndex interface {
	// Query returns the features inside bbox at the given zoom.
	Query(bbox domain.BoundingBox, zoom int) []domain.Feature

	// Children returns the direct children of a cluster.
	Children(id domain.ClusterID) ([]domain.Feature, error)

	// Leaves returns a page of the points below a cluster.
	Leaves(id domain.ClusterID, limit, offset int) ([]domain.Point, error)

	// ExpansionZoom returns the zoom at which a cluster splits up.
	ExpansionZoom(id domain.ClusterID) (int, error)

	// Size returns the number of indexed points.
	Size() int

	// Skipped returns the number of points dropped for invalid coordinates.
	Skipped() int
}

// IndexBuilder constructs spatial indices.
type IndexBuilder interface {
	Build(points []domain.Point, opts domain.ClusterOptions) (SpatialIndex, error)
}

// RenderSink is the map surface that displays markers.
type RenderSink interface {
	// Render replaces the displayed markers with items.
	Render(items []domain.RenderItem)
}
