package application

import (
	"context"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *DatasetRegistry
	clusters *ClusterService
}

// NewHealthService creates a new health service.
func NewHealthService(registry *DatasetRegistry, clusters *ClusterService) *HealthService {
	return &HealthService{
		registry: registry,
		clusters: clusters,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true once a cluster index has been built.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.clusters.State() == StateReady
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	datasets, _ := s.registry.ListDatasets(ctx)

	ready := 0
	failed := 0
	for _, ds := range datasets {
		switch ds.Status {
		case domain.StatusReady:
			ready++
		case domain.StatusError:
			failed++
		}
	}

	components := map[string]string{
		"index":  string(s.clusters.State()),
		"source": "ok",
	}
	if failed > 0 {
		components["source"] = "degraded"
	}

	return input.HealthDetails{
		Healthy:        s.IsHealthy(ctx),
		Ready:          s.IsReady(ctx),
		DatasetsLoaded: len(datasets),
		DatasetsReady:  ready,
		IndexedPoints:  s.clusters.IndexedPoints(),
		Components:     components,
	}
}

// DatasetHealth contains health info for a single dataset.
type DatasetHealth struct {
	ID     string
	Status domain.DatasetStatus
	Points int
	Ready  bool
}

// GetDatasetHealth returns health info for all datasets.
func (s *HealthService) GetDatasetHealth(ctx context.Context) []DatasetHealth {
	datasets, _ := s.registry.ListDatasets(ctx)

	health := make([]DatasetHealth, len(datasets))
	for i, ds := range datasets {
		health[i] = DatasetHealth{
			ID:     ds.ID,
			Status: ds.Status,
			Points: ds.PointCount,
			Ready:  ds.IsReady(),
		}
	}
	return health
}
