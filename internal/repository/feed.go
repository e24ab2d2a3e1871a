package repository

import (
	"context"
	"time"

	"github.com/eslsoft/salita/internal/entity"
)

// ProgressEvent announces a persisted change to a user's progress.
type ProgressEvent struct {
	UserID       string               `json:"user_id"`
	DialectID    string               `json:"dialect_id"`
	LessonID     string               `json:"lesson_id,omitempty"`
	Progress     *entity.UserProgress `json:"progress,omitempty"`
	Achievements []entity.Achievement `json:"achievements,omitempty"`
	Reset        bool                 `json:"reset,omitempty"`
	At           time.Time            `json:"at"`
}

// ProgressFeed delivers progress events to subscribers of a user.
type ProgressFeed interface {
	Publish(ctx context.Context, event ProgressEvent) error
	// Subscribe registers fn for events of userID until unsubscribe is called or ctx ends.
	Subscribe(ctx context.Context, userID string, fn func(ProgressEvent)) (unsubscribe func(), err error)
	Close() error
}
