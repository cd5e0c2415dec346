// Package application contains the application services.
package application

import (
	"context"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// PointsListener receives the full point set after it changed.
type PointsListener func(points []domain.Point)

// DatasetRegistry manages loaded point datasets. Records that did not
// change between loads keep their point identity, so reloading unchanged
// data does not look like a point set change downstream.
type DatasetRegistry struct {
	mu        sync.RWMutex
	datasets  map[string]*datasetEntry
	source    output.PointSource
	metrics   output.MetricsCollector
	logger    *slog.Logger
	listeners []PointsListener
}

type datasetEntry struct {
	Dataset *domain.Dataset
	Points  []domain.Point
	byKey   map[string]knownPoint
}

type knownPoint struct {
	fingerprint string
	point       domain.Point
}

// NewDatasetRegistry creates a new dataset registry.
func NewDatasetRegistry(
	source output.PointSource,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *DatasetRegistry {
	return &DatasetRegistry{
		datasets: make(map[string]*datasetEntry),
		source:   source,
		metrics:  metrics,
		logger:   logger,
	}
}

// OnChange registers a listener for point set changes.
func (r *DatasetRegistry) OnChange(l PointsListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// LoadAll loads every dataset the source offers.
func (r *DatasetRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all datasets from source")

	objects, err := r.source.List(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		if err := r.load(ctx, obj); err != nil {
			r.logger.Error("failed to load dataset", "key", obj.Key, "error", err)
		}
	}

	r.updateMetrics()
	r.notify()
	return nil
}

// LoadDataset loads or reloads the dataset stored under key.
func (r *DatasetRegistry) LoadDataset(ctx context.Context, key string) error {
	err := r.load(ctx, output.StorageObject{Key: key, LastModified: time.Now().Unix()})
	r.updateMetrics()
	if err != nil {
		return err
	}
	r.notify()
	return nil
}

// UnloadDataset removes a dataset and its points.
func (r *DatasetRegistry) UnloadDataset(_ context.Context, id string) error {
	r.logger.Info("unloading dataset", "id", id)

	r.mu.Lock()
	_, ok := r.datasets[id]
	delete(r.datasets, id)
	r.mu.Unlock()

	if !ok {
		return domain.ErrDatasetNotFound
	}

	r.updateMetrics()
	r.notify()
	return nil
}

// load reads a dataset and swaps it in, reusing the identities of
// unchanged records.
func (r *DatasetRegistry) load(ctx context.Context, obj output.StorageObject) error {
	id := DeriveDatasetID(obj.Key)
	r.logger.Info("loading dataset", "id", id, "key", obj.Key)

	r.mu.Lock()
	prev := r.datasets[id]
	if prev == nil {
		r.datasets[id] = &datasetEntry{
			Dataset: &domain.Dataset{ID: id, Name: id, Key: obj.Key, Status: domain.StatusLoading},
		}
	}
	var known map[string]knownPoint
	if prev != nil {
		known = prev.byKey
	}
	r.mu.Unlock()

	batch, err := r.source.ReadPoints(ctx, obj.Key)
	if err != nil {
		r.mu.Lock()
		if entry, ok := r.datasets[id]; ok {
			entry.Dataset.Status = domain.StatusError
			entry.Dataset.Err = err.Error()
		}
		r.mu.Unlock()
		return &domain.SourceError{DatasetID: id, Err: err}
	}

	points := make([]domain.Point, 0, len(batch.Records))
	byKey := make(map[string]knownPoint, len(batch.Records))
	reused := 0
	for _, rec := range batch.Records {
		if k, ok := known[rec.Key]; ok && k.fingerprint == rec.Fingerprint {
			points = append(points, k.point)
			byKey[rec.Key] = k
			reused++
			continue
		}
		p := domain.NewPoint(rec.Coordinate, rec.Properties)
		points = append(points, p)
		byKey[rec.Key] = knownPoint{fingerprint: rec.Fingerprint, point: p}
	}

	ds := &domain.Dataset{
		ID:         id,
		Name:       id,
		Key:        obj.Key,
		Format:     datasetFormat(obj.Key),
		Size:       obj.Size,
		ETag:       obj.ETag,
		PointCount: len(points),
		Skipped:    batch.Skipped,
		Status:     domain.StatusReady,
		LoadedAt:   time.Now(),
	}
	if obj.LastModified > 0 {
		ds.LastModified = time.Unix(obj.LastModified, 0)
	}

	r.mu.Lock()
	r.datasets[id] = &datasetEntry{Dataset: ds, Points: points, byKey: byKey}
	r.mu.Unlock()

	r.logger.Info("dataset loaded",
		"id", id,
		"points", len(points),
		"reused", reused,
		"skipped", batch.Skipped,
	)
	return nil
}

// Points returns the points of all ready datasets, ordered by dataset ID
// and then by record order.
func (r *DatasetRegistry) Points() []domain.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.datasets))
	total := 0
	for id, entry := range r.datasets {
		ids = append(ids, id)
		total += len(entry.Points)
	}
	sort.Strings(ids)

	points := make([]domain.Point, 0, total)
	for _, id := range ids {
		points = append(points, r.datasets[id].Points...)
	}
	return points
}

// ListDatasets returns all registered datasets ordered by ID.
func (r *DatasetRegistry) ListDatasets(_ context.Context) ([]domain.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	datasets := make([]domain.Dataset, 0, len(r.datasets))
	for _, entry := range r.datasets {
		datasets = append(datasets, *entry.Dataset)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].ID < datasets[j].ID })

	return datasets, nil
}

// GetDataset returns a specific dataset by ID.
func (r *DatasetRegistry) GetDataset(_ context.Context, id string) (*domain.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.datasets[id]
	if !ok {
		return nil, domain.ErrDatasetNotFound
	}
	ds := *entry.Dataset
	return &ds, nil
}

// IsLoaded returns true if a dataset with the given ID is registered.
func (r *DatasetRegistry) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.datasets[id]
	return ok
}

// DatasetCount returns the number of registered datasets.
func (r *DatasetRegistry) DatasetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Updated int
	Removed int
}

// Changed reports whether the sync touched any dataset.
func (s SyncStats) Changed() bool {
	return s.Added+s.Updated+s.Removed > 0
}

// Sync reconciles the registry with the source: new datasets are loaded,
// changed ones reloaded and missing ones removed.
func (r *DatasetRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing datasets from source")

	objects, err := r.source.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]output.StorageObject, len(objects))
	for _, obj := range objects {
		remote[DeriveDatasetID(obj.Key)] = obj
	}

	stats := SyncStats{}
	for id, obj := range remote {
		loaded, changed := r.compare(id, obj)
		if loaded && !changed {
			r.logger.Debug("dataset unchanged, skipping", "id", id)
			continue
		}
		if err := r.load(ctx, obj); err != nil {
			r.logger.Error("failed to load dataset", "key", obj.Key, "error", err)
			continue
		}
		if loaded {
			stats.Updated++
		} else {
			stats.Added++
		}
	}

	for _, id := range r.findDatasetsToRemove(remote) {
		r.logger.Info("removing dataset not in source", "id", id)
		r.mu.Lock()
		delete(r.datasets, id)
		r.mu.Unlock()
		stats.Removed++
	}

	r.updateMetrics()
	if stats.Changed() {
		r.notify()
	}

	r.logger.Info("sync completed",
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"total", r.DatasetCount(),
	)
	return stats, nil
}

// compare reports whether id is loaded and whether obj differs from it.
func (r *DatasetRegistry) compare(id string, obj output.StorageObject) (loaded, changed bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.datasets[id]
	if !ok {
		return false, true
	}
	ds := entry.Dataset
	if ds.Status != domain.StatusReady {
		return true, true
	}
	if obj.ETag != "" || ds.ETag != "" {
		return true, obj.ETag != ds.ETag
	}
	var modified int64
	if !ds.LastModified.IsZero() {
		modified = ds.LastModified.Unix()
	}
	return true, obj.Size != ds.Size || obj.LastModified != modified
}

func (r *DatasetRegistry) findDatasetsToRemove(remote map[string]output.StorageObject) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var toRemove []string
	for id := range r.datasets {
		if _, exists := remote[id]; !exists {
			toRemove = append(toRemove, id)
		}
	}
	return toRemove
}

func (r *DatasetRegistry) notify() {
	r.mu.RLock()
	listeners := append([]PointsListener(nil), r.listeners...)
	r.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	points := r.Points()
	for _, l := range listeners {
		l(points)
	}
}

func (r *DatasetRegistry) updateMetrics() {
	r.metrics.SetDatasetsLoaded(r.DatasetCount())
}

// DeriveDatasetID extracts a dataset ID from an object key, dropping the
// directory and every known extension.
func DeriveDatasetID(key string) string {
	base := path.Base(strings.ReplaceAll(key, "\\", "/"))
	for _, ext := range []string{".zst", ".geojson", ".json"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

func datasetFormat(key string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.HasSuffix(lower, ".zst"):
		return "geojson+zstd"
	case strings.HasSuffix(lower, ".geojson"), strings.HasSuffix(lower, ".json"):
		return "geojson"
	default:
		return "table"
	}
}
