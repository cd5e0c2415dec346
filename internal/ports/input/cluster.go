// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/clustermap/internal/domain"
)

// ClusterService owns the current clustering index and the point set it
// was built from.
type ClusterService interface {
	// IsPointSetChanged reports whether points differ, by identity and
	// ignoring order, from the set the current index was built from.
	IsPointSetChanged(points []domain.Point) bool

	// CreateIndex builds a new index from points and replaces the current one.
	CreateIndex(opts domain.ClusterOptions, points []domain.Point) error

	// GetVisibleItems returns the features visible in region.
	GetVisibleItems(region domain.Region) []domain.Feature

	// VisibleItems returns the features visible in region together with
	// the generation of the index that produced them.
	VisibleItems(region domain.Region) ([]domain.Feature, uint64)

	// ExpandCluster returns the features one zoom level below a cluster.
	ExpandCluster(c domain.ClusterFeature) ([]domain.Feature, error)

	// ClusterLeaves returns a page of the points aggregated by a cluster.
	ClusterLeaves(c domain.ClusterFeature, limit, offset int) ([]domain.Point, error)

	// ExpansionZoom returns the zoom at which a cluster splits up.
	ExpansionZoom(c domain.ClusterFeature) (int, error)

	// Generation returns the generation of the current index, 0 before
	// the first build.
	Generation() uint64
}

// Viewport receives the lifecycle events of a map view.
type Viewport interface {
	// Mount hands over the initial point set and builds the index.
	Mount(points []domain.Point) error

	// MapReady signals that the map surface can display markers.
	MapReady()

	// SetPoints replaces the point set.
	SetPoints(points []domain.Point)

	// RegionChangeComplete reports the region after a pan or zoom ended.
	RegionChangeComplete(region domain.Region)

	// Items returns the most recent render pass.
	Items() []domain.RenderItem

	// ClickCluster activates the cluster marker with the given key.
	ClickCluster(key string) error
}

// DatasetRegistry defines the primary port for dataset management.
type DatasetRegistry interface {
	// ListDatasets returns all loaded datasets.
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)

	// GetDataset returns a specific dataset by ID.
	GetDataset(ctx context.Context, id string) (*domain.Dataset, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy        bool              // Overall health status
	Ready          bool              // Ready to accept requests
	DatasetsLoaded int               // Number of loaded datasets
	DatasetsReady  int               // Number of ready datasets
	IndexedPoints  int               // Points in the current index
	Components     map[string]string // Component statuses
}
