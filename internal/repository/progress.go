package repository

import (
	"context"

	"github.com/eslsoft/salita/internal/entity"
)

// ProgressStore persists per-user completion state and earned achievements.
//
// Implementations must serialize writes to the same (user, dialect) record and
// treat both MarkLessonCompleted and AwardAchievement as idempotent.
type ProgressStore interface {
	GetCompletedLessonIDs(ctx context.Context, userID, dialectID string) ([]string, error)
	// MarkLessonCompleted records lessonID as completed and returns the updated record.
	MarkLessonCompleted(ctx context.Context, userID, dialectID, lessonID string, totalLessons int) (*entity.UserProgress, error)
	// GetProgress returns entity.ErrProgressNotFound when the user never completed a lesson in the dialect.
	GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error)
	ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error)
	ResetProgress(ctx context.Context, userID, dialectID string) error

	GetEarnedAchievementIDs(ctx context.Context, userID string) ([]string, error)
	// AwardAchievement inserts the record unless (user, id) exists and reports whether it inserted.
	AwardAchievement(ctx context.Context, achievement *entity.Achievement) (bool, error)
	ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error)
}
