// Package main provides the entry point for the clustermap service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	httpAdapter "github.com/jobrunner/clustermap/internal/adapters/http"
	"github.com/jobrunner/clustermap/internal/app"
	"github.com/jobrunner/clustermap/internal/config"
	"github.com/jobrunner/clustermap/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clustermap",
	Short: "clustermap - map marker clustering service",
	Long: `clustermap groups nearby map markers into clusters for the visible
region of a map and serves them over HTTP.

Features:
  - Hierarchical point clustering per zoom level
  - Viewport lifecycle (mount, map ready, region changes, cluster clicks)
  - GeoJSON point files (plain or zstd) from local, AWS S3, Azure or HTTP storage
  - Point tables in SQLite or PostgreSQL
  - Hot-reload of point files
  - TLS with automatic certificate management
  - Prometheus metrics`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("clustermap %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Cluster the configured points for one region and print GeoJSON",
	RunE:  runQuery,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().String("storage-type", "local", "storage type (local, s3, azure, http)")
	rootCmd.PersistentFlags().String("storage-path", "./data", "local storage path")
	rootCmd.PersistentFlags().String("source", "storage", "point source (storage, sqlite, postgres)")
	rootCmd.PersistentFlags().Float64("radius", domain.DefaultRadius, "cluster radius in pixels")
	rootCmd.PersistentFlags().Int("max-zoom", domain.DefaultMaxZoom, "highest zoom level with clusters")

	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().Bool("tls", false, "enable TLS")
	rootCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	rootCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")
	rootCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
	rootCmd.Flags().Duration("sync-interval", 0, "periodic source sync interval (0 disables)")

	queryCmd.Flags().Float64("lat", 0, "region center latitude")
	queryCmd.Flags().Float64("lon", 0, "region center longitude")
	queryCmd.Flags().Float64("lat-delta", 120, "region latitude span")
	queryCmd.Flags().Float64("lon-delta", 360, "region longitude span")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("storage.type", rootCmd.PersistentFlags().Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", rootCmd.PersistentFlags().Lookup("storage-path"))
	_ = viper.BindPFlag("source.type", rootCmd.PersistentFlags().Lookup("source"))
	_ = viper.BindPFlag("cluster.radius", rootCmd.PersistentFlags().Lookup("radius"))
	_ = viper.BindPFlag("cluster.max_zoom", rootCmd.PersistentFlags().Lookup("max-zoom"))
	_ = viper.BindPFlag("server.host", rootCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", rootCmd.Flags().Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", rootCmd.Flags().Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", rootCmd.Flags().Lookup("tls-email"))
	_ = viper.BindPFlag("server.cors.allowed_origins", rootCmd.Flags().Lookup("cors"))
	_ = viper.BindPFlag("sync.interval", rootCmd.Flags().Lookup("sync-interval"))

	rootCmd.AddCommand(versionCmd, queryCmd)
}

func initConfig() {
	// a missing .env file is the normal case
	_ = godotenv.Load()

	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting clustermap",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"source", cfg.Source.Type,
		"storage_type", cfg.Storage.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		serverErr <- application.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

// runQuery loads the configured points once, builds the index and prints
// the features visible in the requested region.
func runQuery(cmd *cobra.Command, _ []string) error {
	viper.Set("metrics.enabled", false)
	viper.Set("watch.enabled", false)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(config.LoggingConfig{Level: "error", Format: cfg.Logging.Format})

	flags := cmd.Flags()
	lat, _ := flags.GetFloat64("lat")
	lon, _ := flags.GetFloat64("lon")
	latDelta, _ := flags.GetFloat64("lat-delta")
	lonDelta, _ := flags.GetFloat64("lon-delta")
	region := domain.NewRegion(lat, lon, latDelta, lonDelta)
	if err := region.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	if err := application.Load(ctx); err != nil {
		return err
	}
	if application.Registry.DatasetCount() == 0 {
		return errors.New("no datasets found")
	}

	features := application.Clusters.GetVisibleItems(region)
	fc := httpAdapter.FeaturesToGeoJSON(features, application.Clusters.ExpansionZoom)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
