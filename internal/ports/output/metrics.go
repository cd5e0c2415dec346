package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncIndexBuilds increments the index build counter.
	IncIndexBuilds(success bool)

	// ObserveIndexBuildDuration records index build duration.
	ObserveIndexBuildDuration(duration time.Duration)

	// SetIndexedPoints sets the number of points in the current index.
	SetIndexedPoints(count int)

	// IncClusterQueries increments the viewport query counter.
	IncClusterQueries()

	// ObserveQueryDuration records viewport query duration.
	ObserveQueryDuration(duration time.Duration)

	// ObserveRenderPass records a render pass and its item count.
	ObserveRenderPass(items int)

	// SetDatasetsLoaded sets the number of loaded datasets.
	SetDatasetsLoaded(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncIndexBuilds implements MetricsCollector.
func (n *NoOpMetrics) IncIndexBuilds(_ bool) {}

// ObserveIndexBuildDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveIndexBuildDuration(_ time.Duration) {}

// SetIndexedPoints implements MetricsCollector.
func (n *NoOpMetrics) SetIndexedPoints(_ int) {}

// IncClusterQueries implements MetricsCollector.
func (n *NoOpMetrics) IncClusterQueries() {}

// ObserveQueryDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveQueryDuration(_ time.Duration) {}

// ObserveRenderPass implements MetricsCollector.
func (n *NoOpMetrics) ObserveRenderPass(_ int) {}

// SetDatasetsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetDatasetsLoaded(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
