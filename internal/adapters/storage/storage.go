// Package storage provides object storage adapters for point files.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jobrunner/clustermap/internal/domain"
	"github.com/jobrunner/clustermap/internal/ports/output"
)

// PointExtensions lists the file suffixes recognized as point files.
var PointExtensions = []string{".geojson", ".json", ".geojson.zst", ".json.zst"}

// IsPointFile reports whether name carries a point file extension.
func IsPointFile(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range PointExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Instrumented wraps an ObjectStorage and records operation metrics.
type Instrumented struct {
	next    output.ObjectStorage
	metrics output.MetricsCollector
}

// NewInstrumented wraps next with metrics.
func NewInstrumented(next output.ObjectStorage, metrics output.MetricsCollector) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

// List implements output.ObjectStorage.
func (s *Instrumented) List(ctx context.Context) ([]output.StorageObject, error) {
	start := time.Now()
	objects, err := s.next.List(ctx)
	s.observe("list", start, err)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: wrapUnavailable(err)}
	}
	return objects, nil
}

// GetReader implements output.ObjectStorage.
func (s *Instrumented) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.next.GetReader(ctx, key)
	s.observe("read", start, err)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return rc, nil
}

// Exists implements output.ObjectStorage.
func (s *Instrumented) Exists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := s.next.Exists(ctx, key)
	s.observe("exists", start, err)
	return ok, err
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	s.metrics.IncStorageOperations(op, err == nil)
	s.metrics.ObserveStorageDuration(op, time.Since(start))
}

// wrapUnavailable marks a listing failure as storage unavailability while
// keeping the original cause reachable.
func wrapUnavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
