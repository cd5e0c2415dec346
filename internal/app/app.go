// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	httpAdapter "github.com/jobrunner/clustermap/internal/adapters/http"
	"github.com/jobrunner/clustermap/internal/adapters/metrics"
	"github.com/jobrunner/clustermap/internal/adapters/pointdb"
	"github.com/jobrunner/clustermap/internal/adapters/pointfile"
	"github.com/jobrunner/clustermap/internal/adapters/spatialindex"
	"github.com/jobrunner/clustermap/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/clustermap/internal/adapters/tls"
	"github.com/jobrunner/clustermap/internal/adapters/watcher"
	"github.com/jobrunner/clustermap/internal/application"
	"github.com/jobrunner/clustermap/internal/config"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Source        output.PointSource
	Local         *storage.LocalStorage // set for local point files
	Registry      *application.DatasetRegistry
	Clusters      *application.ClusterService
	Viewport      *application.ViewportController
	Sink          *httpAdapter.Sink
	HealthService *application.HealthService
	SyncService   *application.SyncService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector

	closeSource func()
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("clustermap")
		metricsCollector = app.Metrics
	}

	if err := app.initSource(ctx, metricsCollector); err != nil {
		return nil, fmt.Errorf("initializing point source: %w", err)
	}

	app.Registry = application.NewDatasetRegistry(app.Source, metricsCollector, logger)
	app.Clusters = application.NewClusterService(spatialindex.NewBuilder(), metricsCollector, logger)

	app.Sink = httpAdapter.NewSink()
	label := cfg.Viewport.ClusterLabel
	app.Viewport = application.NewViewportController(app.Clusters, app.Sink, application.ViewportConfig{
		Options:       cfg.Cluster,
		Region:        cfg.Viewport.Region(),
		RenderCluster: func(count int) any { return fmt.Sprintf(label, count) },
		OnMapReady: func() {
			logger.Info("map reported ready")
		},
		OnClusterClick: func() {
			logger.Debug("cluster clicked")
		},
	}, metricsCollector, logger)

	app.Registry.OnChange(app.Viewport.SetPoints)

	app.HealthService = application.NewHealthService(app.Registry, app.Clusters)
	app.SyncService = application.NewSyncService(app.Registry, cfg.Sync.Interval, logger)

	services := httpAdapter.Services{
		Clusters: app.Clusters,
		Viewport: app.Viewport,
		Registry: app.Registry,
		Health:   app.HealthService,
		Sync:     app.SyncService,
		Sink:     app.Sink,
	}
	if app.Metrics != nil {
		services.Metrics = app.Metrics
		services.MetricsPath = cfg.Metrics.Path
	}
	app.HTTPServer = httpAdapter.NewServer(cfg.Server, services, logger)

	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(cfg.TLS, app.HTTPServer.Router(), logger)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	if cfg.WatchesLocalFiles() && app.Local != nil {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Storage.LocalPath},
				Debounce: cfg.Watch.Debounce,
				Match:    storage.IsPointFile,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Load reads every dataset and mounts the viewport on the resulting point
// set. It is safe to serve requests before Load returns.
func (a *App) Load(ctx context.Context) error {
	if err := a.Registry.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load datasets", "error", err)
	}
	return a.Viewport.Mount(a.Registry.Points())
}

// Start loads the datasets, starts the background services and serves
// HTTP until the server stops.
func (a *App) Start(ctx context.Context) error {
	if err := a.Load(ctx); err != nil {
		return fmt.Errorf("mounting viewport: %w", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	a.SyncService.Start(ctx)

	var err error
	if a.TLSServer != nil {
		if err = a.TLSServer.ManageCertificates(ctx); err != nil {
			return err
		}
		err = a.TLSServer.ListenAndServe(a.Config.Server.Address())
	} else {
		err = a.HTTPServer.Start()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	a.SyncService.Stop()

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTPS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	if a.closeSource != nil {
		a.closeSource()
	}
	return nil
}

// handleFileEvent reloads or unloads the dataset behind a changed file.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	key, err := a.Local.KeyFor(event.Path)
	if err != nil {
		return err
	}
	a.Logger.Info("file event", "key", key, "operation", event.Operation.String())

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Registry.LoadDataset(ctx, key)

	case watcher.OpDelete:
		id := application.DeriveDatasetID(key)
		if err := a.Registry.UnloadDataset(ctx, id); err != nil {
			a.Logger.Warn("failed to unload deleted dataset", "id", id, "error", err)
		}
	}
	return nil
}

// initSource opens the configured point source.
func (a *App) initSource(ctx context.Context, m output.MetricsCollector) error {
	src := a.Config.Source
	tables := pointdb.TableConfig{
		Tables:     src.Tables,
		IDColumn:   src.IDColumn,
		LatColumn:  src.LatColumn,
		LonColumn:  src.LonColumn,
		PropColumn: src.PropertiesColumn,
	}

	switch src.Type {
	case config.SourceSQLite:
		db, err := pointdb.OpenSQLite(ctx, src.SQLitePath, tables)
		if err != nil {
			return err
		}
		a.Source = db
		a.closeSource = func() { _ = db.Close() }
		return nil

	case config.SourcePostgres:
		db, err := pointdb.OpenPostgres(ctx, pointdb.PostgresConfig{
			URL:      src.PostgresURL,
			MaxConns: src.MaxConns,
		}, tables)
		if err != nil {
			return err
		}
		a.Source = db
		a.closeSource = db.Close
		return nil
	}

	store, err := initStorage(ctx, a.Config.Storage)
	if err != nil {
		return err
	}
	if local, ok := store.(*storage.LocalStorage); ok {
		a.Local = local
	}
	a.Source = pointfile.NewSource(storage.NewInstrumented(store, m))
	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
