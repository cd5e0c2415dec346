package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/clustermap/internal/domain"
)

func loadFresh(t *testing.T, path string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	return Load(path)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadFresh(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Source.Type != SourceStorage || cfg.Storage.Type != "local" {
		t.Errorf("source/storage = %s/%s", cfg.Source.Type, cfg.Storage.Type)
	}
	if cfg.Cluster != domain.DefaultClusterOptions() {
		t.Errorf("Cluster = %+v, want defaults", cfg.Cluster)
	}
	if cfg.Viewport.Region().LongitudeDelta != 360 {
		t.Errorf("viewport region = %+v", cfg.Viewport.Region())
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Watch.Debounce = %v", cfg.Watch.Debounce)
	}
	if !cfg.WatchesLocalFiles() {
		t.Error("local storage should be watched by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CLUSTERMAP_SERVER_PORT", "9090")
	t.Setenv("CLUSTERMAP_CLUSTER_RADIUS", "60")
	t.Setenv("CLUSTERMAP_CLUSTER_MAX_ZOOM", "18")
	t.Setenv("CLUSTERMAP_SYNC_INTERVAL", "5m")

	cfg, err := loadFresh(t, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Cluster.Radius != 60 || cfg.Cluster.MaxZoom != 18 {
		t.Errorf("Cluster = %+v", cfg.Cluster)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %v", cfg.Sync.Interval)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clustermap.yaml")
	content := `
source:
  type: sqlite
  sqlite_path: /data/points.db
  tables: [cafes, parks]
  properties_column: props
cluster:
  radius: 80
  min_points: 3
viewport:
  latitude: 52.5
  longitude: 13.4
  latitude_delta: 0.5
  longitude_delta: 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFresh(t, path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Type != SourceSQLite || len(cfg.Source.Tables) != 2 {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Source.IDColumn != "id" {
		t.Errorf("IDColumn = %q, want default id", cfg.Source.IDColumn)
	}
	if cfg.Cluster.Radius != 80 || cfg.Cluster.MinPoints != 3 || cfg.Cluster.MaxZoom != 16 {
		t.Errorf("Cluster = %+v", cfg.Cluster)
	}
	if cfg.Viewport.Region().Center != domain.NewCoordinate(52.5, 13.4) {
		t.Errorf("viewport center = %v", cfg.Viewport.Region().Center)
	}
	if cfg.WatchesLocalFiles() {
		t.Error("database sources are not watched")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Storage:  StorageConfig{Type: "local", LocalPath: "./data"},
			Source:   SourceConfig{Type: SourceStorage},
			Cluster:  domain.DefaultClusterOptions(),
			Viewport: ViewportConfig{LatitudeDelta: 10, LongitudeDelta: 10},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"tls without domains", func(c *Config) { c.TLS.Enabled = true }, "tls.domains"},
		{"tls without email", func(c *Config) { c.TLS.Enabled = true; c.TLS.Domains = []string{"a.example"} }, "tls.email"},
		{"bad cluster", func(c *Config) { c.Cluster.MinPoints = 1 }, "minPoints"},
		{"negative sync", func(c *Config) { c.Sync.Interval = -time.Second }, "sync.interval"},
		{"unknown source", func(c *Config) { c.Source.Type = "csv" }, "source.type"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, "storage.type"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "storage.s3.bucket"},
		{"azure without account", func(c *Config) {
			c.Storage.Type = "azure"
			c.Storage.Azure.Container = "points"
		}, "storage.azure.account_name"},
		{"http without url", func(c *Config) { c.Storage.Type = "http" }, "storage.http.base_url"},
		{"sqlite without path", func(c *Config) { c.Source.Type = SourceSQLite }, "source.sqlite_path"},
		{"postgres without tables", func(c *Config) {
			c.Source.Type = SourcePostgres
			c.Source.PostgresURL = "postgres://localhost/points"
		}, "source.tables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() error = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestInvalidViewportRegion(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 8080},
		Storage:  StorageConfig{Type: "local", LocalPath: "./data"},
		Source:   SourceConfig{Type: SourceStorage},
		Cluster:  domain.DefaultClusterOptions(),
		Viewport: ViewportConfig{Latitude: 120, LatitudeDelta: 1, LongitudeDelta: 1},
	}

	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidRegion) {
		t.Errorf("Validate() error = %v, want ErrInvalidRegion", err)
	}
}

func TestServerAddress(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := cfg.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q", got)
	}
}
