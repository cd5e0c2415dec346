package output

import (
	"context"
	"io"

	"github.com/jobrunner/clustermap/internal/domain"
)

// PointSource provides point datasets.
type PointSource interface {
	// List returns the datasets the source currently offers.
	List(ctx context.Context) ([]StorageObject, error)

	// ReadPoints reads all point records of a dataset.
	ReadPoints(ctx context.Context, key string) (*PointBatch, error)
}

// PointDecoder turns an encoded point file into records.
type PointDecoder interface {
	// Decode reads records from r. key prefixes record keys.
	Decode(key string, r io.Reader) (*PointBatch, error)

	// Supports reports whether the decoder handles the given object key.
	Supports(key string) bool
}

// PointBatch is the result of reading one dataset.
type PointBatch struct {
	Records []domain.PointRecord
	Skipped int // records without a usable point geometry
}
