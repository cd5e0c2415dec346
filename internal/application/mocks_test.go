package application

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockBuilder implements output.IndexBuilder for testing. Its indices
// group every point into one cluster below clusterBelow.
type mockBuilder struct {
	mu           sync.Mutex
	builds       int
	clusterBelow int
	err          error
	onQuery      func()
}

func (m *mockBuilder) Build(points []domain.Point, opts domain.ClusterOptions) (output.SpatialIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds++

	if m.err != nil {
		return nil, m.err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &mockIndex{points: append([]domain.Point(nil), points...), clusterBelow: m.clusterBelow, onQuery: m.onQuery}, nil
}

func (m *mockBuilder) Builds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds
}

// mockIndex implements output.SpatialIndex for testing.
type mockIndex struct {
	points       []domain.Point
	clusterBelow int
	onQuery      func()
}

func (m *mockIndex) inBox(bbox domain.BoundingBox) []domain.Point {
	var in []domain.Point
	for _, p := range m.points {
		if bbox.Contains(p.Coordinate) {
			in = append(in, p)
		}
	}
	return in
}

func (m *mockIndex) Query(bbox domain.BoundingBox, zoom int) []domain.Feature {
	if m.onQuery != nil {
		m.onQuery()
	}
	in := m.inBox(bbox)
	if zoom < m.clusterBelow && len(in) > 1 {
		return []domain.Feature{domain.ClusterFeature{ID: 1, Center: in[0].Coordinate, PointCount: len(in)}}
	}
	features := make([]domain.Feature, 0, len(in))
	for _, p := range in {
		features = append(features, domain.PointFeature{Point: p})
	}
	return features
}

func (m *mockIndex) Children(id domain.ClusterID) ([]domain.Feature, error) {
	if id != 1 {
		return nil, domain.ErrClusterNotFound
	}
	return m.Query(domain.WorldBounds, m.clusterBelow), nil
}

func (m *mockIndex) Leaves(id domain.ClusterID, limit, offset int) ([]domain.Point, error) {
	if id != 1 {
		return nil, domain.ErrClusterNotFound
	}
	end := len(m.points)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return m.points[offset:end], nil
}

func (m *mockIndex) ExpansionZoom(id domain.ClusterID) (int, error) {
	if id != 1 {
		return 0, domain.ErrClusterNotFound
	}
	return m.clusterBelow, nil
}

func (m *mockIndex) Size() int    { return len(m.points) }
func (m *mockIndex) Skipped() int { return 0 }

// mockSink implements output.RenderSink for testing.
type mockSink struct {
	passes [][]domain.RenderItem
}

func (m *mockSink) Render(items []domain.RenderItem) {
	m.passes = append(m.passes, items)
}

func (m *mockSink) last() []domain.RenderItem {
	if len(m.passes) == 0 {
		return nil
	}
	return m.passes[len(m.passes)-1]
}

// mockSource implements output.PointSource for testing.
type mockSource struct {
	mu       sync.Mutex
	objects  []output.StorageObject
	batches  map[string]*output.PointBatch
	listErr  error
	readErr  error
	readKeys []string
}

func (m *mockSource) List(_ context.Context) ([]output.StorageObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]output.StorageObject(nil), m.objects...), nil
}

func (m *mockSource) ReadPoints(_ context.Context, key string) (*output.PointBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readKeys = append(m.readKeys, key)
	if m.readErr != nil {
		return nil, m.readErr
	}
	if b, ok := m.batches[key]; ok {
		return b, nil
	}
	return &output.PointBatch{}, nil
}

func record(key string, lat, lon float64, fingerprint string) domain.PointRecord {
	return domain.PointRecord{
		Key:         key,
		Coordinate:  domain.NewCoordinate(lat, lon),
		Properties:  map[string]any{"id": key},
		Fingerprint: fingerprint,
	}
}
