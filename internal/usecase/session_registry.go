package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/entity"
)

type flowEntry struct {
	mu   sync.Mutex
	flow *LessonFlow
}

// SessionRegistry keeps the live lesson flows keyed by handle. Each flow is
// guarded by its own mutex so requests for one learner may interleave safely.
type SessionRegistry struct {
	mu    sync.RWMutex
	flows map[string]*flowEntry
	ttl   time.Duration
	clock func() time.Time
}

// NewSessionRegistry creates a registry evicting flows idle longer than ttl.
func NewSessionRegistry(ttl time.Duration, clock func() time.Time) *SessionRegistry {
	if clock == nil {
		clock = time.Now
	}
	return &SessionRegistry{flows: make(map[string]*flowEntry), ttl: ttl, clock: clock}
}

// NewHandle returns a fresh session handle.
func (r *SessionRegistry) NewHandle() string { return uuid.NewString() }

// Put stores flow under its id.
func (r *SessionRegistry) Put(flow *LessonFlow) {
	r.mu.Lock()
	r.flows[flow.ID()] = &flowEntry{flow: flow}
	r.mu.Unlock()
}

// With runs fn while holding the flow's lock. Flows owned by another user are
// reported as missing.
func (r *SessionRegistry) With(handle, userID string, fn func(*LessonFlow) error) error {
	r.mu.RLock()
	entry, ok := r.flows[handle]
	r.mu.RUnlock()
	if !ok {
		return entity.ErrSessionNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.flow.UserID() != userID {
		return entity.ErrSessionNotFound
	}
	return fn(entry.flow)
}

// Remove drops the flow if userID owns it.
func (r *SessionRegistry) Remove(handle, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.flows[handle]
	if !ok || entry.flow.UserID() != userID {
		return entity.ErrSessionNotFound
	}
	delete(r.flows, handle)
	return nil
}

// Len reports how many flows are live.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.flows)
}

// Sweep evicts idle flows and returns how many were dropped.
func (r *SessionRegistry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.clock().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for handle, entry := range r.flows {
		if !entry.mu.TryLock() {
			continue
		}
		idle := entry.flow.LastTouched().Before(cutoff)
		entry.mu.Unlock()
		if idle {
			delete(r.flows, handle)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 && logger != nil {
				logger.WithField("evicted", n).Debug("evicted idle lesson sessions")
			}
		}
	}
}
