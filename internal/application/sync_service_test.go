package application

import (
	"context"
	"testing"
	"time"

	"github.com/jobrunner/clustermap/internal/ports/output"
)

func TestSyncService_RateLimiting(t *testing.T) {
	registry := newTestRegistry(&mockSource{})
	service := NewSyncService(registry, time.Hour, testLogger())
	ctx := context.Background()

	result, err := service.TriggerSync(ctx)
	if err != nil {
		t.Errorf("first sync should succeed, got error: %v", err)
	}
	if result.DatasetsAdded != 0 {
		t.Errorf("expected 0 datasets added with empty source, got %d", result.DatasetsAdded)
	}

	_, err = service.TriggerSync(ctx)
	if err != ErrRateLimited {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestSyncService_StartStop(t *testing.T) {
	registry := newTestRegistry(&mockSource{})
	service := NewSyncService(registry, 100*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	service.Stop()
}

func TestSyncService_DisabledInterval(t *testing.T) {
	registry := newTestRegistry(&mockSource{})
	service := NewSyncService(registry, 0, testLogger())

	service.Start(context.Background())
	service.Stop()
}

func TestSyncService_Interval(t *testing.T) {
	interval := 2 * time.Hour
	service := NewSyncService(newTestRegistry(&mockSource{}), interval, testLogger())

	if service.Interval() != interval {
		t.Errorf("expected interval %v, got %v", interval, service.Interval())
	}
}

func TestSyncService_SyncAddsNewDatasets(t *testing.T) {
	source := &mockSource{
		objects: []output.StorageObject{
			{Key: "test1.geojson"},
			{Key: "test2.geojson"},
		},
	}
	service := NewSyncService(newTestRegistry(source), time.Hour, testLogger())

	result, err := service.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.DatasetsAdded != 2 {
		t.Errorf("DatasetsAdded = %d, want 2", result.DatasetsAdded)
	}
	if result.DatasetsTotal != 2 {
		t.Errorf("DatasetsTotal = %d, want 2", result.DatasetsTotal)
	}
	if result.SyncedAt.IsZero() {
		t.Error("SyncedAt should be set")
	}
}

func TestSyncService_PeriodicSync(t *testing.T) {
	source := &mockSource{objects: []output.StorageObject{{Key: "a.geojson"}}}
	registry := newTestRegistry(source)
	service := NewSyncService(registry, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for !registry.IsLoaded("a") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	service.Stop()

	if !registry.IsLoaded("a") {
		t.Error("periodic sync should have loaded dataset a")
	}
}

func TestSyncService_LastResultAndDoubleStop(t *testing.T) {
	source := &mockSource{objects: []output.StorageObject{{Key: "a.geojson"}}}
	service := NewSyncService(newTestRegistry(source), time.Hour, testLogger())

	if !service.LastResult().SyncedAt.IsZero() {
		t.Error("no sync has run yet")
	}
	if _, err := service.TriggerSync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if got := service.LastResult().DatasetsAdded; got != 1 {
		t.Errorf("LastResult().DatasetsAdded = %d, want 1", got)
	}

	service.Stop()
	service.Stop()
}
