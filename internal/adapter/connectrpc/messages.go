package connectrpc

import (
	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
	"github.com/eslsoft/salita/internal/usecase"
)

type Empty struct{}

type ListDialectsResponse struct {
	Dialects []entity.Dialect `json:"dialects"`
}

type DialectRequest struct {
	DialectID string `json:"dialect_id"`
}

type ListLessonsResponse struct {
	Lessons []usecase.LessonStatus `json:"lessons"`
}

type StartLessonRequest struct {
	DialectID    string `json:"dialect_id"`
	LessonNumber int    `json:"lesson_number"`
}

type SessionRequest struct {
	Handle string `json:"handle"`
}

type SelectAnswerRequest struct {
	Handle     string `json:"handle"`
	QuestionID string `json:"question_id"`
	Option     int    `json:"option"`
}

type GoToQuestionRequest struct {
	Handle string `json:"handle"`
	Index  int    `json:"index"`
}

type ListProgressResponse struct {
	Progress []entity.UserProgress `json:"progress"`
}

type ListAchievementsResponse struct {
	Achievements []entity.Achievement `json:"achievements"`
	TotalPoints  int                  `json:"total_points"`
}

type WatchProgressRequest struct{}

type ProgressEvent = repository.ProgressEvent
