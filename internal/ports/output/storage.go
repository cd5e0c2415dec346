// Package output defines the secondary/driven ports of the application.
package output

import (
	"context"
	"io"
)

// ObjectStorage lists and opens point files in a storage backend.
type ObjectStorage interface {
	// List returns every point file below the configured root or prefix.
	List(ctx context.Context) ([]StorageObject, error)

	// GetReader opens the object stored under key. The caller closes it.
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject is one dataset offered by a source: a point file or a
// database table. Size, LastModified and ETag detect changes between syncs.
type StorageObject struct {
	Key          string // slash separated key, or table name
	Size         int64
	LastModified int64 // unix seconds
	ETag         string
}

// StorageType names a storage backend in configuration.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeAzure StorageType = "azure"
	StorageTypeHTTP  StorageType = "http"
	StorageTypeLocal StorageType = "local"
)
