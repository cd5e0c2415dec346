package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"sync"
	"time"

	"github.com/jobrunner/clustermap/internal/domain"
)

// Sink is the render sink served over HTTP. It keeps the latest render
// pass; clients fetch it after each viewport event.
type Sink struct {
	mu        sync.RWMutex
	pass      uint64
	items     []domain.RenderItem
	updatedAt time.Time
}

// NewSink creates an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Render implements output.RenderSink.
func (s *Sink) Render(items []domain.RenderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pass++
	s.items = items
	s.updatedAt = time.Now()
}

// Latest returns the most recent pass number and its items. Pass 0 means
// nothing has been rendered yet.
func (s *Sink) Latest() (uint64, []domain.RenderItem) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pass, s.items
}

// UpdatedAt returns when the last pass was rendered.
func (s *Sink) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}
