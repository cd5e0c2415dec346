package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/clustermap/internal/adapters/watcher"
	"github.com/jobrunner/clustermap/internal/config"
	"github.com/jobrunner/clustermap/internal/domain"
)

const parks = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[13.40,52.52]},"properties":{"name":"Tiergarten"}},
{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[2.35,48.85]},"properties":{"name":"Tuileries"}}
]}`

const cafes = `{"type":"FeatureCollection","features":[
{"type":"Feature","id":1,"geometry":{"type":"Point","coordinates":[-0.12,51.50]},"properties":{"name":"Soho"}}
]}`

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage: config.StorageConfig{Type: "local", LocalPath: dir},
		Source:  config.SourceConfig{Type: config.SourceStorage},
		Cluster: domain.DefaultClusterOptions(),
		Viewport: config.ViewportConfig{
			LatitudeDelta:  120,
			LongitudeDelta: 360,
			ClusterLabel:   "%d",
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "parks.geojson"), []byte(parks), 0o600))

	app, err := New(context.Background(), testConfig(dir), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return app, dir
}

func TestNewWiresLocalSource(t *testing.T) {
	app, _ := newTestApp(t)

	assert.NotNil(t, app.Local)
	assert.NotNil(t, app.Metrics)
	assert.Nil(t, app.TLSServer)
	assert.Nil(t, app.Watcher, "watching is disabled in the test config")

	require.NoError(t, app.Load(context.Background()))
	assert.Equal(t, 2, app.Clusters.IndexedPoints())
	assert.True(t, app.HealthService.IsReady(context.Background()))
}

func TestFileEventsUpdateViewport(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.Load(ctx))
	app.Viewport.MapReady()
	generation := app.Clusters.Generation()

	path := filepath.Join(dir, "cafes.geojson")
	require.NoError(t, os.WriteFile(path, []byte(cafes), 0o600))
	require.NoError(t, app.handleFileEvent(ctx, watcher.Event{Path: path, Operation: watcher.OpCreate}))

	assert.Equal(t, 3, app.Clusters.IndexedPoints())
	assert.Greater(t, app.Clusters.Generation(), generation)
	pass, items := app.Sink.Latest()
	assert.Equal(t, uint64(2), pass)
	assert.Equal(t, 3, countItemPoints(items))

	require.NoError(t, app.handleFileEvent(ctx, watcher.Event{Path: path, Operation: watcher.OpDelete}))
	assert.Equal(t, 2, app.Clusters.IndexedPoints())
	assert.False(t, app.Registry.IsLoaded("cafes"))
}

func TestUnknownStorageType(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.Type = "ftp"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestSQLiteSourceMissingFile(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Source = config.SourceConfig{
		Type:       config.SourceSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "missing.db"),
		Tables:     []string{"places"},
	}

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var storageErr *domain.StorageError
	assert.ErrorAs(t, err, &storageErr)
}

func countItemPoints(items []domain.RenderItem) int {
	n := 0
	for _, item := range items {
		if item.Cluster != nil {
			n += item.Cluster.PointCount
		} else {
			n++
		}
	}
	return n
}
