package domain

import "time"

// Dataset is a loaded point source object (a file or a table).
type Dataset struct {
	ID           string    // Unique identifier (derived from the key)
	Name         string    // Display name
	Key          string    // Storage key or table name
	Format       string    // Point format (geojson, sqlite, postgres)
	Size         int64     // Object size in bytes
	ETag         string    // Storage ETag
	LastModified time.Time // Storage modification time
	PointCount   int       // Points loaded
	Skipped      int       // Records without a usable point geometry
	Status       DatasetStatus
	LoadedAt     time.Time
	Err          string // Last load error
}

// IsReady returns true if the dataset contributed points.
func (d *Dataset) IsReady() bool {
	return d.Status == StatusReady
}

// DatasetStatus represents the status of a dataset.
type DatasetStatus string

const (
	StatusLoading DatasetStatus = "loading"
	StatusReady   DatasetStatus = "ready"
	StatusError   DatasetStatus = "error"
)
