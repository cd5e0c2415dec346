// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/clustermap/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig          `mapstructure:"server"`
	Storage  StorageConfig         `mapstructure:"storage"`
	Source   SourceConfig          `mapstructure:"source"`
	Cluster  domain.ClusterOptions `mapstructure:"cluster"`
	Viewport ViewportConfig        `mapstructure:"viewport"`
	Sync     SyncConfig            `mapstructure:"sync"`
	Watch    WatchConfig           `mapstructure:"watch"`
	TLS      TLSConfig             `mapstructure:"tls"`
	Metrics  MetricsConfig         `mapstructure:"metrics"`
	Logging  LoggingConfig         `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	FrontendEnabled bool          `mapstructure:"frontend_enabled"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// StorageConfig holds object storage configuration for point files.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// Source types.
const (
	SourceStorage  = "storage"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// SourceConfig selects where points are read from: point files in the
// configured storage or SQL tables.
type SourceConfig struct {
	Type             string   `mapstructure:"type"`
	SQLitePath       string   `mapstructure:"sqlite_path"`
	PostgresURL      string   `mapstructure:"postgres_url"`
	MaxConns         int32    `mapstructure:"max_conns"`
	Tables           []string `mapstructure:"tables"`
	IDColumn         string   `mapstructure:"id_column"`
	LatColumn        string   `mapstructure:"lat_column"`
	LonColumn        string   `mapstructure:"lon_column"`
	PropertiesColumn string   `mapstructure:"properties_column"`
}

// ViewportConfig holds the initial map region and marker labelling.
type ViewportConfig struct {
	Latitude       float64 `mapstructure:"latitude"`
	Longitude      float64 `mapstructure:"longitude"`
	LatitudeDelta  float64 `mapstructure:"latitude_delta"`
	LongitudeDelta float64 `mapstructure:"longitude_delta"`
	ClusterLabel   string  `mapstructure:"cluster_label"` // fmt pattern with one %d
}

// Region returns the configured initial region.
func (c ViewportConfig) Region() domain.Region {
	return domain.NewRegion(c.Latitude, c.Longitude, c.LatitudeDelta, c.LongitudeDelta)
}

// SyncConfig holds periodic source sync configuration.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"` // 0 disables
}

// WatchConfig holds file watcher configuration.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool      `mapstructure:"enabled"`
	Domains  []string  `mapstructure:"domains"`
	Email    string    `mapstructure:"email"`
	CacheDir string    `mapstructure:"cache_dir"`
	Staging  bool      `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      DNSConfig `mapstructure:"dns"`
}

// DNSConfig holds Azure DNS settings for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.frontend_enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 2*time.Minute)

	viper.SetDefault("source.type", SourceStorage)
	viper.SetDefault("source.id_column", "id")
	viper.SetDefault("source.lat_column", "lat")
	viper.SetDefault("source.lon_column", "lon")

	defaults := domain.DefaultClusterOptions()
	viper.SetDefault("cluster.radius", defaults.Radius)
	viper.SetDefault("cluster.min_zoom", defaults.MinZoom)
	viper.SetDefault("cluster.max_zoom", defaults.MaxZoom)
	viper.SetDefault("cluster.min_points", defaults.MinPoints)
	viper.SetDefault("cluster.extent", defaults.Extent)
	viper.SetDefault("cluster.node_size", defaults.NodeSize)

	viper.SetDefault("viewport.latitude", 0.0)
	viper.SetDefault("viewport.longitude", 0.0)
	viper.SetDefault("viewport.latitude_delta", 120.0)
	viper.SetDefault("viewport.longitude_delta", 360.0)
	viper.SetDefault("viewport.cluster_label", "%d")

	viper.SetDefault("sync.interval", 0)

	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	viper.SetEnvPrefix("CLUSTERMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/clustermap")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return invalid("tls.domains", "TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return invalid("tls.email", "TLS enabled but no email specified")
		}
	}

	if err := c.Cluster.Validate(); err != nil {
		return err
	}
	if err := c.Viewport.Region().Validate(); err != nil {
		return fmt.Errorf("viewport: %w", err)
	}
	if c.Sync.Interval < 0 {
		return invalid("sync.interval", "must not be negative")
	}

	switch c.Source.Type {
	case SourceStorage:
		return c.Storage.validate()
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			return invalid("source.sqlite_path", "SQLite path is required")
		}
	case SourcePostgres:
		if c.Source.PostgresURL == "" {
			return invalid("source.postgres_url", "PostgreSQL URL is required")
		}
	default:
		return invalid("source.type", "unknown source type: %s", c.Source.Type)
	}

	if len(c.Source.Tables) == 0 {
		return invalid("source.tables", "at least one table is required")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Type {
	case "local":
		if s.LocalPath == "" {
			return invalid("storage.local_path", "local storage path is required")
		}
	case "s3":
		if s.S3.Bucket == "" {
			return invalid("storage.s3.bucket", "S3 bucket is required")
		}
		if s.S3.Region == "" {
			return invalid("storage.s3.region", "S3 region is required")
		}
	case "azure":
		if s.Azure.Container == "" {
			return invalid("storage.azure.container", "azure container is required")
		}
		if s.Azure.AccountName == "" && s.Azure.ConnectionString == "" {
			return invalid("storage.azure.account_name", "azure account name or connection string is required")
		}
	case "http":
		if s.HTTP.BaseURL == "" {
			return invalid("storage.http.base_url", "HTTP base URL is required")
		}
	default:
		return invalid("storage.type", "unknown storage type: %s", s.Type)
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return &domain.ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WatchesLocalFiles reports whether points come from a local directory
// that should be watched for changes.
func (c *Config) WatchesLocalFiles() bool {
	return c.Watch.Enabled && c.Source.Type == SourceStorage && c.Storage.Type == "local"
}
