package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// syncCooldown is the minimum time between two API-triggered syncs.
const syncCooldown = 30 * time.Second

// SyncResult contains the result of a sync operation.
type SyncResult struct {
	DatasetsAdded   int       `json:"datasets_added"`
	DatasetsUpdated int       `json:"datasets_updated"`
	DatasetsRemoved int       `json:"datasets_removed"`
	DatasetsTotal   int       `json:"datasets_total"`
	SyncedAt        time.Time `json:"synced_at"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService reconciles the registry with the point source, on a
// schedule and on demand.
type SyncService struct {
	registry *DatasetRegistry
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	running sync.Mutex // one sync at a time

	mu          sync.Mutex
	lastTrigger time.Time
	nextSync    time.Time
	last        SyncResult
}

// NewSyncService creates a new sync service.
func NewSyncService(registry *DatasetRegistry, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		registry: registry,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the periodic sync scheduler. A zero interval disables it.
func (s *SyncService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("periodic sync disabled")
		return
	}
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *SyncService) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.schedule()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stop:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			if _, err := s.run(ctx, "schedule"); err != nil {
				s.logger.Error("scheduled sync failed", "error", err)
			}
			s.schedule()
		}
	}
}

// Stop halts the scheduler and waits for a running sync to finish.
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping sync service")
		close(s.stop)
	})
	s.wg.Wait()
}

// TriggerSync runs a sync now. It returns ErrRateLimited when called
// again within the cooldown.
func (s *SyncService) TriggerSync(ctx context.Context) (SyncResult, error) {
	s.mu.Lock()
	if !s.lastTrigger.IsZero() && time.Since(s.lastTrigger) < syncCooldown {
		s.mu.Unlock()
		return SyncResult{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()
	s.mu.Unlock()

	return s.run(ctx, "api")
}

// LastResult returns the outcome of the most recent successful sync.
func (s *SyncService) LastResult() SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}

func (s *SyncService) run(ctx context.Context, trigger string) (SyncResult, error) {
	s.running.Lock()
	defer s.running.Unlock()

	stats, err := s.registry.Sync(ctx)
	if err != nil {
		return SyncResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = SyncResult{
		DatasetsAdded:   stats.Added,
		DatasetsUpdated: stats.Updated,
		DatasetsRemoved: stats.Removed,
		DatasetsTotal:   s.registry.DatasetCount(),
		SyncedAt:        time.Now(),
		NextScheduledAt: s.nextSync,
	}
	s.logger.Debug("sync finished",
		"trigger", trigger,
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
	)
	return s.last, nil
}

func (s *SyncService) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSync = time.Now().Add(s.interval)
}
