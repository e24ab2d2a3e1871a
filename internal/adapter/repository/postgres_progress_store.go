package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

type postgresProgressStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// NewPostgresProgressStore constructs a pgx-backed store.
func NewPostgresProgressStore(pool *pgxpool.Pool) repository.ProgressStore {
	return &postgresProgressStore{pool: pool, clock: time.Now}
}

func (s *postgresProgressStore) GetCompletedLessonIDs(ctx context.Context, userID, dialectID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lesson_id FROM completed_lessons
		WHERE user_id = $1 AND dialect_id = $2
		ORDER BY completed_at, lesson_id`, userID, dialectID)
	if err != nil {
		return nil, fmt.Errorf("get completed lessons: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("get completed lessons: %w", err)
	}
	return ids, nil
}

// MarkLessonCompleted locks the progress row so concurrent completions for the
// same user and dialect serialize.
func (s *postgresProgressStore) MarkLessonCompleted(ctx context.Context, userID, dialectID, lessonID string, totalLessons int) (*entity.UserProgress, error) {
	if err := validateCompletion(userID, dialectID, lessonID, totalLessons); err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	var progress *entity.UserProgress
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_progress (user_id, dialect_id, last_studied_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, dialect_id) DO NOTHING`, userID, dialectID, now); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			SELECT 1 FROM user_progress WHERE user_id = $1 AND dialect_id = $2 FOR UPDATE`, userID, dialectID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO completed_lessons (user_id, dialect_id, lesson_id, completed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, dialect_id, lesson_id) DO NOTHING`, userID, dialectID, lessonID, now); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT lesson_id FROM completed_lessons
			WHERE user_id = $1 AND dialect_id = $2
			ORDER BY completed_at, lesson_id`, userID, dialectID)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		progress = &entity.UserProgress{
			UserID:             userID,
			DialectID:          dialectID,
			CompletedLessonIDs: ids,
			LastStudiedAt:      now,
		}
		progress.Recompute(totalLessons)
		_, err = tx.Exec(ctx, `
			UPDATE user_progress
			SET lessons_completed = $3, progress = $4, last_studied_at = $5
			WHERE user_id = $1 AND dialect_id = $2`,
			userID, dialectID, progress.LessonsCompleted, progress.Progress, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", translatePgError(err))
	}
	return progress, nil
}

func (s *postgresProgressStore) GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error) {
	p := &entity.UserProgress{UserID: userID, DialectID: dialectID}
	err := s.pool.QueryRow(ctx, `
		SELECT lessons_completed, progress, last_studied_at
		FROM user_progress WHERE user_id = $1 AND dialect_id = $2`, userID, dialectID).
		Scan(&p.LessonsCompleted, &p.Progress, &p.LastStudiedAt)
	if err != nil {
		return nil, translatePgError(err)
	}
	ids, err := s.GetCompletedLessonIDs(ctx, userID, dialectID)
	if err != nil {
		return nil, err
	}
	p.CompletedLessonIDs = ids
	return p, nil
}

func (s *postgresProgressStore) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.dialect_id, p.lessons_completed, p.progress, p.last_studied_at,
		       COALESCE(array_agg(c.lesson_id ORDER BY c.completed_at, c.lesson_id) FILTER (WHERE c.lesson_id IS NOT NULL), '{}')
		FROM user_progress p
		LEFT JOIN completed_lessons c ON c.user_id = p.user_id AND c.dialect_id = p.dialect_id
		WHERE p.user_id = $1
		GROUP BY p.dialect_id, p.lessons_completed, p.progress, p.last_studied_at
		ORDER BY p.dialect_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.UserProgress, error) {
		p := entity.UserProgress{UserID: userID}
		err := row.Scan(&p.DialectID, &p.LessonsCompleted, &p.Progress, &p.LastStudiedAt, &p.CompletedLessonIDs)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return list, nil
}

func (s *postgresProgressStore) ResetProgress(ctx context.Context, userID, dialectID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_progress WHERE user_id = $1 AND dialect_id = $2`, userID, dialectID); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

func (s *postgresProgressStore) GetEarnedAchievementIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get earned achievements: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("get earned achievements: %w", err)
	}
	return ids, nil
}

// AwardAchievement relies on the (user_id, achievement_id) key; a concurrent
// duplicate insert reports false instead of failing.
func (s *postgresProgressStore) AwardAchievement(ctx context.Context, a *entity.Achievement) (bool, error) {
	if a == nil || a.UserID == "" || a.ID == "" {
		return false, entity.ErrInvalidUserID
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, title, description, icon, points, category, type, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		a.UserID, a.ID, a.Title, a.Description, a.Icon, a.Points, string(a.Category), string(a.Type), a.EarnedAt.UTC())
	if err != nil {
		if errors.Is(translatePgError(err), entity.ErrDuplicateAchievement) {
			return false, nil
		}
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *postgresProgressStore) ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT achievement_id, title, description, icon, points, category, type, earned_at
		FROM user_achievements WHERE user_id = $1
		ORDER BY earned_at, achievement_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Achievement, error) {
		a := entity.Achievement{UserID: userID}
		var category, typ string
		if err := row.Scan(&a.ID, &a.Title, &a.Description, &a.Icon, &a.Points, &category, &typ, &a.EarnedAt); err != nil {
			return a, err
		}
		a.Category = entity.AchievementCategory(category)
		a.Type = entity.AchievementType(typ)
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return list, nil
}

func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return entity.ErrDuplicateAchievement
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrProgressNotFound
	}
	return err
}
