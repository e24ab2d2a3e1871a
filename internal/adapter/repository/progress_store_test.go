package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

func newSQLiteTestStore(t *testing.T) repository.ProgressStore {
	t.Helper()
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	if err := MigrateSQLite(context.Background(), db); err != nil {
		t.Fatalf("MigrateSQLite returned error: %v", err)
	}
	return NewSQLiteProgressStore(db)
}

func storeFactories() map[string]func(t *testing.T) repository.ProgressStore {
	return map[string]func(t *testing.T) repository.ProgressStore{
		"memory": func(*testing.T) repository.ProgressStore { return NewMemoryProgressStore() },
		"sqlite": newSQLiteTestStore,
	}
}

func TestMarkLessonCompletedIsIdempotent(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			first, err := store.MarkLessonCompleted(ctx, "u1", "hiligaynon", "hil-01", 3)
			if err != nil {
				t.Fatalf("MarkLessonCompleted returned error: %v", err)
			}
			if first.LessonsCompleted != 1 || first.Progress != 33 {
				t.Fatalf("expected 1 lesson at 33%%, got %d at %d%%", first.LessonsCompleted, first.Progress)
			}
			again, err := store.MarkLessonCompleted(ctx, "u1", "hiligaynon", "hil-01", 3)
			if err != nil {
				t.Fatalf("second MarkLessonCompleted returned error: %v", err)
			}
			if again.LessonsCompleted != 1 || len(again.CompletedLessonIDs) != 1 {
				t.Fatalf("expected count to stay at 1, got %d %v", again.LessonsCompleted, again.CompletedLessonIDs)
			}

			second, err := store.MarkLessonCompleted(ctx, "u1", "hiligaynon", "hil-02", 3)
			if err != nil {
				t.Fatalf("MarkLessonCompleted returned error: %v", err)
			}
			if second.LessonsCompleted != 2 || second.Progress != 67 {
				t.Fatalf("expected 2 lessons at 67%%, got %d at %d%%", second.LessonsCompleted, second.Progress)
			}

			stored, err := store.GetProgress(ctx, "u1", "hiligaynon")
			if err != nil {
				t.Fatalf("GetProgress returned error: %v", err)
			}
			if stored.LessonsCompleted != len(stored.CompletedLessonIDs) {
				t.Fatalf("count %d does not match ids %v", stored.LessonsCompleted, stored.CompletedLessonIDs)
			}
			ids, err := store.GetCompletedLessonIDs(ctx, "u1", "hiligaynon")
			if err != nil || len(ids) != 2 {
				t.Fatalf("expected 2 completed ids, got %v (%v)", ids, err)
			}
		})
	}
}

func TestMarkLessonCompletedValidates(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			if _, err := store.MarkLessonCompleted(ctx, "", "waray", "war-01", 2); !errors.Is(err, entity.ErrInvalidUserID) {
				t.Errorf("expected ErrInvalidUserID, got %v", err)
			}
			if _, err := store.MarkLessonCompleted(ctx, "u1", "waray", "war-01", 0); !errors.Is(err, entity.ErrInvalidTotalLessons) {
				t.Errorf("expected ErrInvalidTotalLessons, got %v", err)
			}
			if _, err := store.GetProgress(ctx, "u1", "waray"); !errors.Is(err, entity.ErrProgressNotFound) {
				t.Errorf("expected ErrProgressNotFound, got %v", err)
			}
		})
	}
}

func TestAwardAchievementOncePerUser(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			earned := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
			award := entity.Achievement{
				UserID: "u1", ID: "first_steps", Title: "First Steps", Points: 10,
				Category: entity.CategoryBeginner, Type: entity.AchievementLesson, EarnedAt: earned,
			}

			inserted, err := store.AwardAchievement(ctx, &award)
			if err != nil || !inserted {
				t.Fatalf("expected first award inserted, got %v (%v)", inserted, err)
			}
			inserted, err = store.AwardAchievement(ctx, &award)
			if err != nil || inserted {
				t.Fatalf("expected duplicate award ignored, got %v (%v)", inserted, err)
			}
			other := award
			other.UserID = "u2"
			if inserted, _ := store.AwardAchievement(ctx, &other); !inserted {
				t.Fatal("another user must be able to earn the same achievement")
			}

			list, err := store.ListAchievements(ctx, "u1")
			if err != nil {
				t.Fatalf("ListAchievements returned error: %v", err)
			}
			if len(list) != 1 || list[0].Category != entity.CategoryBeginner || !list[0].EarnedAt.Equal(earned) {
				t.Fatalf("expected one stored achievement, got %+v", list)
			}
			ids, _ := store.GetEarnedAchievementIDs(ctx, "u1")
			if len(ids) != 1 || ids[0] != "first_steps" {
				t.Fatalf("expected [first_steps], got %v", ids)
			}
		})
	}
}

func TestResetProgressKeepsOtherDialects(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			for _, d := range []string{"bikol", "ilocano"} {
				if _, err := store.MarkLessonCompleted(ctx, "u1", d, d+"-01", 2); err != nil {
					t.Fatalf("MarkLessonCompleted returned error: %v", err)
				}
			}
			if err := store.ResetProgress(ctx, "u1", "bikol"); err != nil {
				t.Fatalf("ResetProgress returned error: %v", err)
			}
			list, err := store.ListProgress(ctx, "u1")
			if err != nil {
				t.Fatalf("ListProgress returned error: %v", err)
			}
			if len(list) != 1 || list[0].DialectID != "ilocano" || list[0].Progress != 50 {
				t.Fatalf("expected only ilocano at 50%%, got %+v", list)
			}
			ids, _ := store.GetCompletedLessonIDs(ctx, "u1", "bikol")
			if len(ids) != 0 {
				t.Fatalf("expected bikol completions removed, got %v", ids)
			}
		})
	}
}

func TestMarkLessonCompletedConcurrent(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			var wg sync.WaitGroup
			errs := make(chan error, 10)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := store.MarkLessonCompleted(ctx, "u1", "waray", fmt.Sprintf("war-%02d", i%5+1), 5)
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("concurrent MarkLessonCompleted returned error: %v", err)
				}
			}
			p, err := store.GetProgress(ctx, "u1", "waray")
			if err != nil {
				t.Fatalf("GetProgress returned error: %v", err)
			}
			if p.LessonsCompleted != 5 || p.Progress != 100 {
				t.Fatalf("expected 5 lessons at 100%%, got %d at %d%%", p.LessonsCompleted, p.Progress)
			}
		})
	}
}
