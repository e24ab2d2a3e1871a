package usecase

import (
	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
)

// IsLessonLocked applies the sequential unlock rule: lesson 1 is always open,
// lesson n opens once lesson n-1 of the same dialect is in completedIDs. A
// lesson whose predecessor is missing from dialectLessons stays locked.
func IsLessonLocked(lesson *entity.Lesson, dialectLessons []entity.Lesson, completedIDs []string) bool {
	if lesson == nil {
		return true
	}
	if lesson.Number == 1 {
		return false
	}
	if lesson.Number < 1 {
		return true
	}
	prev, ok := lo.Find(dialectLessons, func(l entity.Lesson) bool {
		return l.Number == lesson.Number-1 && sameDialect(l, *lesson)
	})
	if !ok {
		return true
	}
	return !lo.Contains(completedIDs, prev.ID)
}

func sameDialect(a, b entity.Lesson) bool {
	return a.DialectID == "" || b.DialectID == "" || a.DialectID == b.DialectID
}

// LessonStatus describes a lesson as seen by one learner.
type LessonStatus struct {
	Lesson    LessonSummary `json:"lesson"`
	Locked    bool          `json:"locked"`
	Completed bool          `json:"completed"`
}

// lessonStatuses evaluates the unlock rule for every lesson of a dialect.
func lessonStatuses(lessons []entity.Lesson, completedIDs []string) []LessonStatus {
	return lo.Map(lessons, func(l entity.Lesson, _ int) LessonStatus {
		return LessonStatus{
			Lesson:    summarize(&l),
			Locked:    IsLessonLocked(&l, lessons, completedIDs),
			Completed: lo.Contains(completedIDs, l.ID),
		}
	})
}
