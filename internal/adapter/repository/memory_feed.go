package repository

import (
	"context"
	"sync"

	"github.com/eslsoft/salita/internal/repository"
)

type feedSubscriber struct {
	userID string
	fn     func(repository.ProgressEvent)
	done   chan struct{}
}

// MemoryFeed fans progress events out to in-process subscribers. Callbacks run
// synchronously on the publishing goroutine.
type MemoryFeed struct {
	mu     sync.RWMutex
	seq    int
	subs   map[int]feedSubscriber
	closed bool
}

// NewMemoryFeed creates an empty in-process feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]feedSubscriber)}
}

func (f *MemoryFeed) Publish(ctx context.Context, event repository.ProgressEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.dispatch(event)
	return nil
}

func (f *MemoryFeed) dispatch(event repository.ProgressEvent) {
	f.mu.RLock()
	targets := make([]func(repository.ProgressEvent), 0, len(f.subs))
	for _, s := range f.subs {
		if s.userID == event.UserID {
			targets = append(targets, s.fn)
		}
	}
	f.mu.RUnlock()
	for _, fn := range targets {
		fn(event)
	}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, userID string, fn func(repository.ProgressEvent)) (func(), error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, context.Canceled
	}
	f.seq++
	id := f.seq
	done := make(chan struct{})
	f.subs[id] = feedSubscriber{userID: userID, fn: fn, done: done}
	f.mu.Unlock()

	unsubscribe := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub.done)
		}
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-done:
		}
	}()
	return unsubscribe, nil
}

// Subscribers reports how many subscriptions are active.
func (f *MemoryFeed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *MemoryFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for id, sub := range f.subs {
		delete(f.subs, id)
		close(sub.done)
	}
	return nil
}
