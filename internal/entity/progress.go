package entity

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// UserProgress is the persisted completion record for one user in one dialect.
type UserProgress struct {
	UserID             string    `json:"user_id"`
	DialectID          string    `json:"dialect_id"`
	LessonsCompleted   int       `json:"lessons_completed"`
	CompletedLessonIDs []string  `json:"completed_lesson_ids"`
	Progress           int       `json:"progress"`
	LastStudiedAt      time.Time `json:"last_studied_at"`
}

// Complete adds lessonID to the completed set and recomputes the derived fields.
// It reports whether the set changed; completing a lesson twice is a no-op apart
// from the last-studied timestamp.
func (p *UserProgress) Complete(lessonID string, totalLessons int, now time.Time) bool {
	added := !lo.Contains(p.CompletedLessonIDs, lessonID)
	if added {
		p.CompletedLessonIDs = append(p.CompletedLessonIDs, lessonID)
	}
	p.LastStudiedAt = now
	p.Recompute(totalLessons)
	return added
}

// Recompute restores the count and percentage invariants from the completed set.
func (p *UserProgress) Recompute(totalLessons int) {
	p.CompletedLessonIDs = lo.Uniq(p.CompletedLessonIDs)
	p.LessonsCompleted = len(p.CompletedLessonIDs)
	p.Progress = ProgressPercent(p.LessonsCompleted, totalLessons)
}

// ProgressPercent is round(completed/total*100) clamped to [0,100].
func ProgressPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return min(max(RoundPercent(completed, total), 0), 100)
}

// RoundPercent rounds part/whole*100 half away from zero.
func RoundPercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
