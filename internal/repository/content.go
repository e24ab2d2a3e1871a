package repository

import (
	"context"

	"github.com/eslsoft/salita/internal/entity"
)

// ContentRepository serves read-only dialect, lesson and achievement reference data.
type ContentRepository interface {
	ListDialects(ctx context.Context) ([]entity.Dialect, error)
	GetDialect(ctx context.Context, dialectID string) (*entity.Dialect, error)
	GetLesson(ctx context.Context, dialectID string, number int) (*entity.Lesson, error)
	GetLessonByID(ctx context.Context, lessonID string) (*entity.Lesson, error)
	// GetLessonsForDialect returns lessons ordered ascending by number.
	GetLessonsForDialect(ctx context.Context, dialectID string) ([]entity.Lesson, error)
	AchievementDefinitions(ctx context.Context) ([]entity.AchievementDefinition, error)
}
