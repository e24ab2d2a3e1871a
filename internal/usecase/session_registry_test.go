package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eslsoft/salita/internal/entity"
)

func TestSessionRegistrySweepsIdleFlows(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	reg := NewSessionRegistry(time.Hour, clock.Now)

	idle := newTestFlow(t, clock)
	reg.Put(idle)
	clock.now = clock.now.Add(50 * time.Minute)
	lesson := newTestLesson("waray", 1, 8, 2)
	dialect := newTestDialect("waray", 2)
	active := NewLessonFlow(reg.NewHandle(), "u1", &lesson, &dialect, ProgressSnapshot{}, FlowDeps{
		Engine: newSeededEngine(1),
		Clock:  clock.Now,
	})
	reg.Put(active)

	clock.now = clock.now.Add(20 * time.Minute)
	if n := reg.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if err := reg.With(idle.ID(), "u1", func(*LessonFlow) error { return nil }); !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("expected idle flow evicted, got %v", err)
	}
	if err := reg.With(active.ID(), "u1", func(*LessonFlow) error { return nil }); err != nil {
		t.Fatalf("expected active flow kept, got %v", err)
	}
}

func TestSessionRegistryChecksOwner(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	reg := NewSessionRegistry(0, clock.Now)
	flow := newTestFlow(t, clock)
	reg.Put(flow)

	called := false
	err := reg.With(flow.ID(), "intruder", func(*LessonFlow) error { called = true; return nil })
	if !errors.Is(err, entity.ErrSessionNotFound) || called {
		t.Fatalf("expected ErrSessionNotFound without running fn, got %v", err)
	}
	if err := reg.Remove(flow.ID(), "intruder"); !errors.Is(err, entity.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if reg.Sweep() != 0 || reg.Len() != 1 {
		t.Fatal("a registry without ttl never evicts")
	}
}

func TestSessionRegistryRunStopsWithContext(t *testing.T) {
	reg := NewSessionRegistry(time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, time.Millisecond, nil) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
