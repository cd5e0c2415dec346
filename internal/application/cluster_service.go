package application

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// ClusterState is the lifecycle state of a ClusterService.
type ClusterState string

const (
	StateUninitialized ClusterState = "uninitialized"
	StateReady         ClusterState = "ready"
)

// ClusterService owns the current clustering index and the point set it
// was built from. It is the only component that replaces the index.
type ClusterService struct {
	mu      sync.RWMutex
	builder output.IndexBuilder
	metrics output.MetricsCollector
	logger  *slog.Logger

	index      output.SpatialIndex
	opts       domain.ClusterOptions
	recorded   map[domain.PointID]int
	recordedN  int
	generation uint64
	builtAt    time.Time
}

// NewClusterService creates a new cluster service.
func NewClusterService(builder output.IndexBuilder, metrics output.MetricsCollector, logger *slog.Logger) *ClusterService {
	return &ClusterService{
		builder: builder,
		metrics: metrics,
		logger:  logger,
	}
}

// IsPointSetChanged reports whether points differ from the recorded set.
// Membership is compared by point identity; order is ignored.
func (s *ClusterService) IsPointSetChanged(points []domain.Point) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil {
		return true
	}
	if len(points) != s.recordedN {
		return true
	}

	seen := make(map[domain.PointID]int, len(points))
	for _, p := range points {
		seen[p.ID]++
		if seen[p.ID] > s.recorded[p.ID] {
			return true
		}
	}
	return false
}

// CreateIndex builds a fresh index and makes it current. On error the
// previous index stays in place.
func (s *ClusterService) CreateIndex(opts domain.ClusterOptions, points []domain.Point) error {
	start := time.Now()

	idx, err := s.builder.Build(points, opts)
	if err != nil {
		s.metrics.IncIndexBuilds(false)
		s.logger.Error("failed to build cluster index", "points", len(points), "error", err)
		return err
	}

	recorded := make(map[domain.PointID]int, len(points))
	for _, p := range points {
		recorded[p.ID]++
	}

	s.mu.Lock()
	s.index = idx
	s.opts = opts.WithDefaults()
	s.recorded = recorded
	s.recordedN = len(points)
	s.generation++
	s.builtAt = time.Now()
	generation := s.generation
	s.mu.Unlock()

	duration := time.Since(start)
	s.metrics.IncIndexBuilds(true)
	s.metrics.ObserveIndexBuildDuration(duration)
	s.metrics.SetIndexedPoints(idx.Size())

	if skipped := idx.Skipped(); skipped > 0 {
		s.logger.Warn("points with invalid coordinates left out of index", "skipped", skipped)
	}
	s.logger.Info("cluster index built",
		"points", idx.Size(),
		"generation", generation,
		"duration", duration,
	)

	return nil
}

// GetVisibleItems returns the features inside region at the region's zoom.
// Before the first index is built it returns an empty result.
func (s *ClusterService) GetVisibleItems(region domain.Region) []domain.Feature {
	features, _ := s.VisibleItems(region)
	return features
}

// VisibleItems is GetVisibleItems that also returns the generation of the
// index that answered, 0 before the first build.
func (s *ClusterService) VisibleItems(region domain.Region) ([]domain.Feature, uint64) {
	start := time.Now()

	s.mu.RLock()
	idx, generation := s.index, s.generation
	s.mu.RUnlock()

	if idx == nil {
		s.logger.Debug("visible items requested before index was built")
		return []domain.Feature{}, 0
	}

	zoom := region.Zoom()
	features := stamp(idx.Query(region.BoundingBox(), zoom), generation)

	s.metrics.IncClusterQueries()
	s.metrics.ObserveQueryDuration(time.Since(start))
	s.logger.Debug("visible items queried", "zoom", zoom, "items", len(features))

	return features, generation
}

// ExpandCluster returns the children of a cluster.
func (s *ClusterService) ExpandCluster(c domain.ClusterFeature) ([]domain.Feature, error) {
	idx, generation, err := s.indexFor(c)
	if err != nil {
		return nil, err
	}
	children, err := idx.Children(c.ID)
	if err != nil {
		return nil, err
	}
	return stamp(children, generation), nil
}

// ClusterLeaves returns a page of the points aggregated by a cluster.
func (s *ClusterService) ClusterLeaves(c domain.ClusterFeature, limit, offset int) ([]domain.Point, error) {
	idx, _, err := s.indexFor(c)
	if err != nil {
		return nil, err
	}
	return idx.Leaves(c.ID, limit, offset)
}

// ExpansionZoom returns the zoom at which a cluster splits up.
func (s *ClusterService) ExpansionZoom(c domain.ClusterFeature) (int, error) {
	idx, _, err := s.indexFor(c)
	if err != nil {
		return 0, err
	}
	return idx.ExpansionZoom(c.ID)
}

// State returns the lifecycle state.
func (s *ClusterService) State() ClusterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return StateUninitialized
	}
	return StateReady
}

// Generation returns the number of indices built so far.
func (s *ClusterService) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// IndexedPoints returns the number of points in the current index.
func (s *ClusterService) IndexedPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index == nil {
		return 0
	}
	return s.index.Size()
}

// Options returns the options of the current index.
func (s *ClusterService) Options() domain.ClusterOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// BuiltAt returns when the current index was built.
func (s *ClusterService) BuiltAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builtAt
}

func (s *ClusterService) indexFor(c domain.ClusterFeature) (output.SpatialIndex, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil {
		return nil, 0, domain.ErrIndexNotReady
	}
	if c.Generation != s.generation {
		return nil, 0, fmt.Errorf("%w: generation %d, current %d", domain.ErrStaleCluster, c.Generation, s.generation)
	}
	return s.index, s.generation, nil
}

// stamp tags cluster features with the index generation.
func stamp(features []domain.Feature, generation uint64) []domain.Feature {
	for i, f := range features {
		if c, ok := f.(domain.ClusterFeature); ok {
			c.Generation = generation
			features[i] = c
		}
	}
	return features
}
