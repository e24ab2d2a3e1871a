package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

type sqliteProgressStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteProgressStore constructs a store over a go-sqlite3 database. The
// handle must be limited to one open connection, which serializes writers.
func NewSQLiteProgressStore(db *sql.DB) repository.ProgressStore {
	return &sqliteProgressStore{db: db, clock: time.Now}
}

type sqlQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *sqliteProgressStore) GetCompletedLessonIDs(ctx context.Context, userID, dialectID string) ([]string, error) {
	ids, err := completedIDs(ctx, s.db, userID, dialectID)
	if err != nil {
		return nil, fmt.Errorf("get completed lessons: %w", err)
	}
	return ids, nil
}

func completedIDs(ctx context.Context, q sqlQuerier, userID, dialectID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT lesson_id FROM completed_lessons
		WHERE user_id = ? AND dialect_id = ?
		ORDER BY completed_at, lesson_id`, userID, dialectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteProgressStore) MarkLessonCompleted(ctx context.Context, userID, dialectID, lessonID string, totalLessons int) (*entity.UserProgress, error) {
	if err := validateCompletion(userID, dialectID, lessonID, totalLessons); err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, dialect_id, last_studied_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, dialect_id) DO NOTHING`, userID, dialectID, now); err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completed_lessons (user_id, dialect_id, lesson_id, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, dialect_id, lesson_id) DO NOTHING`, userID, dialectID, lessonID, now); err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	ids, err := completedIDs(ctx, tx, userID, dialectID)
	if err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}

	progress := &entity.UserProgress{
		UserID:             userID,
		DialectID:          dialectID,
		CompletedLessonIDs: ids,
		LastStudiedAt:      now,
	}
	progress.Recompute(totalLessons)
	if _, err := tx.ExecContext(ctx, `
		UPDATE user_progress
		SET lessons_completed = ?, progress = ?, last_studied_at = ?
		WHERE user_id = ? AND dialect_id = ?`,
		progress.LessonsCompleted, progress.Progress, now, userID, dialectID); err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("mark lesson completed: %w", err)
	}
	return progress, nil
}

func (s *sqliteProgressStore) GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error) {
	p := &entity.UserProgress{UserID: userID, DialectID: dialectID}
	err := s.db.QueryRowContext(ctx, `
		SELECT lessons_completed, progress, last_studied_at
		FROM user_progress WHERE user_id = ? AND dialect_id = ?`, userID, dialectID).
		Scan(&p.LessonsCompleted, &p.Progress, &p.LastStudiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if p.CompletedLessonIDs, err = s.GetCompletedLessonIDs(ctx, userID, dialectID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *sqliteProgressStore) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dialect_id, lessons_completed, progress, last_studied_at
		FROM user_progress WHERE user_id = ?
		ORDER BY dialect_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	list := []entity.UserProgress{}
	for rows.Next() {
		p := entity.UserProgress{UserID: userID}
		if err := rows.Scan(&p.DialectID, &p.LessonsCompleted, &p.Progress, &p.LastStudiedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list progress: %w", err)
		}
		list = append(list, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	for i := range list {
		if list[i].CompletedLessonIDs, err = s.GetCompletedLessonIDs(ctx, userID, list[i].DialectID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *sqliteProgressStore) ResetProgress(ctx context.Context, userID, dialectID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_progress WHERE user_id = ? AND dialect_id = ?`, userID, dialectID); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	return nil
}

func (s *sqliteProgressStore) GetEarnedAchievementIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT achievement_id FROM user_achievements WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("get earned achievements: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("get earned achievements: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *sqliteProgressStore) AwardAchievement(ctx context.Context, a *entity.Achievement) (bool, error) {
	if a == nil || a.UserID == "" || a.ID == "" {
		return false, entity.ErrInvalidUserID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, title, description, icon, points, category, type, earned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, achievement_id) DO NOTHING`,
		a.UserID, a.ID, a.Title, a.Description, a.Icon, a.Points, string(a.Category), string(a.Type), a.EarnedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	return n == 1, nil
}

func (s *sqliteProgressStore) ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id, title, description, icon, points, category, type, earned_at
		FROM user_achievements WHERE user_id = ?
		ORDER BY earned_at, achievement_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()
	list := []entity.Achievement{}
	for rows.Next() {
		a := entity.Achievement{UserID: userID}
		var category, typ string
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Icon, &a.Points, &category, &typ, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("list achievements: %w", err)
		}
		a.Category = entity.AchievementCategory(category)
		a.Type = entity.AchievementType(typ)
		list = append(list, a)
	}
	return list, rows.Err()
}
