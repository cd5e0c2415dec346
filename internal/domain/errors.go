package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrConflict     = errors.New("conflict")
)

// Specific errors.
var (
	ErrInvalidCoordinate  = fmt.Errorf("coordinate: %w", ErrInvalidInput)
	ErrInvalidRegion      = fmt.Errorf("region: %w", ErrInvalidInput)
	ErrInvalidOptions     = fmt.Errorf("cluster options: %w", ErrInvalidInput)
	ErrClusterNotFound    = fmt.Errorf("cluster: %w", ErrNotFound)
	ErrDatasetNotFound    = fmt.Errorf("dataset: %w", ErrNotFound)
	ErrRenderKeyNotFound  = fmt.Errorf("render key: %w", ErrNotFound)
	ErrStaleCluster       = fmt.Errorf("cluster belongs to a replaced index: %w", ErrConflict)
	ErrNotMounted         = fmt.Errorf("viewport not mounted: %w", ErrUnavailable)
	ErrAlreadyMounted     = fmt.Errorf("viewport already mounted: %w", ErrConflict)
	ErrIndexNotReady      = fmt.Errorf("index not built: %w", ErrUnavailable)
	ErrIndexBuildFailed   = fmt.Errorf("index build: %w", ErrInternal)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrUnsupportedFormat  = fmt.Errorf("point format: %w", ErrUnsupported)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// SourceError represents an error while reading points from a dataset.
type SourceError struct {
	DatasetID string // Dataset identifier
	Record    string // Record key (optional)
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("source error in dataset %s, record %s: %v",
			e.DatasetID, e.Record, e.Err)
	}
	return fmt.Sprintf("source error in dataset %s: %v", e.DatasetID, e.Err)
}

// Unwrap returns the underlying error.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// IndexError represents an error while building a clustering index.
type IndexError struct {
	Points int   // Number of input points
	Err    error // Underlying error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("index error for %d points: %v", e.Points, e.Err)
}

// Unwrap returns the underlying error.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidOptions
}
