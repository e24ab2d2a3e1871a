package repository

import (
	"context"

	"github.com/eslsoft/salita/internal/content"
	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

type contentRepository struct {
	catalog *content.Catalog
}

// NewContentRepository serves reference data from a loaded catalog.
func NewContentRepository(catalog *content.Catalog) repository.ContentRepository {
	return &contentRepository{catalog: catalog}
}

func (r *contentRepository) ListDialects(ctx context.Context) ([]entity.Dialect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.catalog.Dialects(), nil
}

func (r *contentRepository) GetDialect(ctx context.Context, dialectID string) (*entity.Dialect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := r.catalog.Dialect(entity.NormalizeDialectID(dialectID))
	if !ok {
		return nil, entity.ErrDialectNotFound
	}
	return &d, nil
}

func (r *contentRepository) GetLesson(ctx context.Context, dialectID string, number int) (*entity.Lesson, error) {
	if _, err := r.GetDialect(ctx, dialectID); err != nil {
		return nil, err
	}
	l, ok := r.catalog.Lesson(entity.NormalizeDialectID(dialectID), number)
	if !ok {
		return nil, entity.ErrLessonNotFound
	}
	return &l, nil
}

func (r *contentRepository) GetLessonByID(ctx context.Context, lessonID string) (*entity.Lesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, ok := r.catalog.LessonByID(lessonID)
	if !ok {
		return nil, entity.ErrLessonNotFound
	}
	return &l, nil
}

func (r *contentRepository) GetLessonsForDialect(ctx context.Context, dialectID string) ([]entity.Lesson, error) {
	if _, err := r.GetDialect(ctx, dialectID); err != nil {
		return nil, err
	}
	return r.catalog.Lessons(entity.NormalizeDialectID(dialectID)), nil
}

func (r *contentRepository) AchievementDefinitions(ctx context.Context) ([]entity.AchievementDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.catalog.Achievements(), nil
}
