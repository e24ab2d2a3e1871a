package repository

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/eslsoft/salita/internal/repository"
)

func TestMemoryFeedDeliversToUser(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()

	var got []repository.ProgressEvent
	unsubscribe, err := feed.Subscribe(ctx, "u1", func(e repository.ProgressEvent) { got = append(got, e) })
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}

	_ = feed.Publish(ctx, repository.ProgressEvent{UserID: "u1", DialectID: "waray", LessonID: "war-01"})
	_ = feed.Publish(ctx, repository.ProgressEvent{UserID: "u2", DialectID: "waray"})
	if len(got) != 1 || got[0].LessonID != "war-01" {
		t.Fatalf("expected one event for u1, got %+v", got)
	}

	unsubscribe()
	unsubscribe()
	_ = feed.Publish(ctx, repository.ProgressEvent{UserID: "u1", Reset: true})
	if len(got) != 1 {
		t.Fatalf("expected no delivery after unsubscribe, got %d events", len(got))
	}
	if feed.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", feed.Subscribers())
	}
}

func TestMemoryFeedClose(t *testing.T) {
	feed := NewMemoryFeed()
	if _, err := feed.Subscribe(context.Background(), "u1", func(repository.ProgressEvent) {}); err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if _, err := feed.Subscribe(context.Background(), "u1", func(repository.ProgressEvent) {}); err == nil {
		t.Fatal("expected Subscribe to fail after Close")
	}
}

func waitForGoroutines(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > want {
		if time.Now().After(deadline) {
			t.Fatalf("expected at most %d goroutines, have %d", want, runtime.NumGoroutine())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryFeedUnsubscribeStopsWatcher(t *testing.T) {
	feed := NewMemoryFeed()
	base := runtime.NumGoroutine()

	var unsubscribes []func()
	for i := 0; i < 20; i++ {
		unsubscribe, err := feed.Subscribe(context.Background(), "u1", func(repository.ProgressEvent) {})
		if err != nil {
			t.Fatalf("Subscribe returned error: %v", err)
		}
		unsubscribes = append(unsubscribes, unsubscribe)
	}
	if runtime.NumGoroutine() < base+20 {
		t.Fatalf("expected a watcher per subscription, have %d goroutines from %d", runtime.NumGoroutine(), base)
	}

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	waitForGoroutines(t, base)

	for i := 0; i < 20; i++ {
		if _, err := feed.Subscribe(context.Background(), "u1", func(repository.ProgressEvent) {}); err != nil {
			t.Fatalf("Subscribe returned error: %v", err)
		}
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	waitForGoroutines(t, base)
}
