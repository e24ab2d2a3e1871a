package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

const saveFailedNotice = "Your progress could not be saved. Please try again."

// LearningUsecase is the host-facing API: it admits learners into lessons,
// drives their lesson flows and persists completions.
type LearningUsecase interface {
	ListDialects(ctx context.Context) ([]entity.Dialect, error)
	ListLessons(ctx context.Context, userID, dialectID string) ([]LessonStatus, error)
	StartLesson(ctx context.Context, userID, dialectID string, number int) (*LessonView, error)
	GetSession(ctx context.Context, userID, handle string) (*LessonView, error)
	Advance(ctx context.Context, userID, handle string) (*LessonView, error)
	Retake(ctx context.Context, userID, handle string) (*LessonView, error)
	SelectAnswer(ctx context.Context, userID, handle, questionID string, option int) (*LessonView, error)
	GoToQuestion(ctx context.Context, userID, handle string, index int) (*LessonView, error)
	SubmitQuiz(ctx context.Context, userID, handle string) (*entity.QuizOutcome, error)
	CompleteLesson(ctx context.Context, userID, handle string) (*CompletionReceipt, error)
	CloseSession(ctx context.Context, userID, handle string) error
	GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error)
	ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error)
	ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error)
	ResetProgress(ctx context.Context, userID, dialectID string) error
	WatchProgress(ctx context.Context, userID string, fn func(repository.ProgressEvent)) (func(), error)
}

// LessonSummary is a lesson without its quiz bank.
type LessonSummary struct {
	ID           string                  `json:"id"`
	DialectID    string                  `json:"dialect_id"`
	Number       int                     `json:"number"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	Content      string                  `json:"content,omitempty"`
	Vocabulary   []entity.VocabularyItem `json:"vocabulary,omitempty"`
	CulturalNote string                  `json:"cultural_note,omitempty"`
	Objectives   []string                `json:"objectives,omitempty"`
}

// QuestionView is a quiz question as shown to the learner. The correct option
// and explanation stay hidden until results.
type QuestionView struct {
	ID          string              `json:"id"`
	Prompt      string              `json:"prompt"`
	Options     []string            `json:"options"`
	Points      int                 `json:"points"`
	Difficulty  entity.Difficulty   `json:"difficulty"`
	Type        entity.QuestionType `json:"type"`
	Selected    *int                `json:"selected,omitempty"`
	Correct     *int                `json:"correct,omitempty"`
	Explanation string              `json:"explanation,omitempty"`
}

// LessonView is a snapshot of a lesson flow.
type LessonView struct {
	Handle            string              `json:"handle"`
	Step              Step                `json:"step"`
	Dialect           entity.Dialect      `json:"dialect"`
	Lesson            LessonSummary       `json:"lesson"`
	Attempt           int                 `json:"attempt"`
	RemainingAttempts int                 `json:"remaining_attempts"`
	Questions         []QuestionView      `json:"questions,omitempty"`
	CurrentQuestion   int                 `json:"current_question"`
	SelectedAnswer    *int                `json:"selected_answer,omitempty"`
	Answered          int                 `json:"answered"`
	Outcome           *entity.QuizOutcome `json:"outcome,omitempty"`
	Completed         bool                `json:"completed"`
}

// CompletionReceipt reports what CompleteLesson persisted. When Saved is false
// the flow keeps its results so the host can retry.
type CompletionReceipt struct {
	Progress   *entity.UserProgress `json:"progress,omitempty"`
	Outcome    *entity.QuizOutcome  `json:"outcome"`
	Awarded    []entity.Achievement `json:"awarded"`
	Saved      bool                 `json:"saved"`
	Notice     string               `json:"notice,omitempty"`
	NextLesson *LessonSummary       `json:"next_lesson,omitempty"`
}

// NewLearningUsecase wires the learning flow with its collaborators.
func NewLearningUsecase(
	content repository.ContentRepository,
	store repository.ProgressStore,
	feed repository.ProgressFeed,
	engine *QuizEngine,
	evaluator *AchievementEvaluator,
	sessions *SessionRegistry,
	logger logrus.FieldLogger,
) LearningUsecase {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &learningUsecase{
		content:   content,
		store:     store,
		feed:      feed,
		engine:    engine,
		evaluator: evaluator,
		sessions:  sessions,
		logger:    logger,
		clock:     time.Now,
	}
}

type learningUsecase struct {
	content   repository.ContentRepository
	store     repository.ProgressStore
	feed      repository.ProgressFeed
	engine    *QuizEngine
	evaluator *AchievementEvaluator
	sessions  *SessionRegistry
	logger    logrus.FieldLogger
	clock     func() time.Time
}

func (u *learningUsecase) now() time.Time { return u.clock() }

func (u *learningUsecase) ListDialects(ctx context.Context) ([]entity.Dialect, error) {
	return u.content.ListDialects(ctx)
}

func (u *learningUsecase) ListLessons(ctx context.Context, userID, dialectID string) ([]LessonStatus, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	dialectID = entity.NormalizeDialectID(dialectID)
	lessons, err := u.content.GetLessonsForDialect(ctx, dialectID)
	if err != nil {
		return nil, err
	}
	return lessonStatuses(lessons, u.completedIDs(ctx, userID, dialectID)), nil
}

func (u *learningUsecase) StartLesson(ctx context.Context, userID, dialectID string, number int) (*LessonView, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	dialectID = entity.NormalizeDialectID(dialectID)
	dialect, err := u.content.GetDialect(ctx, dialectID)
	if err != nil {
		return nil, err
	}
	lesson, err := u.content.GetLesson(ctx, dialectID, number)
	if err != nil {
		return nil, err
	}
	lessons, err := u.content.GetLessonsForDialect(ctx, dialectID)
	if err != nil {
		return nil, err
	}
	if IsLessonLocked(lesson, lessons, u.completedIDs(ctx, userID, dialectID)) {
		return nil, entity.ErrLessonLocked
	}
	if len(u.engine.Pool(lesson)) == 0 {
		return nil, fmt.Errorf("lesson %q: %w", lesson.ID, entity.ErrEmptyQuiz)
	}

	flow := NewLessonFlow(u.sessions.NewHandle(), userID, lesson, dialect, u.snapshot(ctx, userID), FlowDeps{
		Engine:    u.engine,
		Evaluator: u.evaluator,
		Clock:     u.now,
	})
	u.sessions.Put(flow)
	u.logger.WithFields(logrus.Fields{
		"user":    userID,
		"lesson":  lesson.ID,
		"session": flow.ID(),
	}).Debug("lesson started")
	return viewOf(flow), nil
}

func (u *learningUsecase) GetSession(ctx context.Context, userID, handle string) (*LessonView, error) {
	return u.viewAfter(userID, handle, func(*LessonFlow) error { return nil })
}

func (u *learningUsecase) Advance(ctx context.Context, userID, handle string) (*LessonView, error) {
	return u.viewAfter(userID, handle, func(f *LessonFlow) error {
		if f.Step() == StepQuiz {
			f.SetHistory(u.snapshot(ctx, userID))
		}
		return f.Advance()
	})
}

func (u *learningUsecase) Retake(ctx context.Context, userID, handle string) (*LessonView, error) {
	return u.viewAfter(userID, handle, func(f *LessonFlow) error { return f.Retake() })
}

func (u *learningUsecase) SelectAnswer(ctx context.Context, userID, handle, questionID string, option int) (*LessonView, error) {
	return u.viewAfter(userID, handle, func(f *LessonFlow) error { return f.SelectAnswer(questionID, option) })
}

func (u *learningUsecase) GoToQuestion(ctx context.Context, userID, handle string, index int) (*LessonView, error) {
	return u.viewAfter(userID, handle, func(f *LessonFlow) error { return f.GoToQuestion(index) })
}

func (u *learningUsecase) SubmitQuiz(ctx context.Context, userID, handle string) (*entity.QuizOutcome, error) {
	var outcome *entity.QuizOutcome
	err := u.sessions.With(handle, userID, func(f *LessonFlow) error {
		if f.Step() == StepQuiz {
			f.SetHistory(u.snapshot(ctx, userID))
		}
		var err error
		outcome, err = f.Submit()
		return err
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (u *learningUsecase) CompleteLesson(ctx context.Context, userID, handle string) (*CompletionReceipt, error) {
	var receipt *CompletionReceipt
	err := u.sessions.With(handle, userID, func(f *LessonFlow) error {
		if f.Step() != StepResults || f.Outcome() == nil {
			return entity.ErrInvalidTransition
		}
		receipt = u.complete(ctx, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (u *learningUsecase) complete(ctx context.Context, f *LessonFlow) *CompletionReceipt {
	lesson, dialect, outcome := f.Lesson(), f.Dialect(), f.Outcome()
	log := u.logger.WithFields(logrus.Fields{"user": f.UserID(), "lesson": lesson.ID})
	receipt := &CompletionReceipt{Outcome: outcome, Awarded: []entity.Achievement{}}

	progress, err := u.store.MarkLessonCompleted(ctx, f.UserID(), dialect.ID, lesson.ID, dialect.TotalLessons)
	if err != nil {
		log.WithError(err).Warn("failed to persist lesson completion")
		receipt.Notice = saveFailedNotice
		return receipt
	}
	receipt.Progress = progress

	for _, a := range outcome.PotentialAchievements {
		award := a
		inserted, err := u.store.AwardAchievement(ctx, &award)
		if err != nil {
			log.WithError(err).WithField("achievement", a.ID).Warn("failed to persist achievement")
			receipt.Notice = saveFailedNotice
			return receipt
		}
		if inserted {
			receipt.Awarded = append(receipt.Awarded, award)
		}
	}

	receipt.Saved = true
	f.MarkCompleted()
	if next, err := u.content.GetLesson(ctx, dialect.ID, lesson.Number+1); err == nil {
		summary := summarize(next)
		receipt.NextLesson = &summary
	}

	event := repository.ProgressEvent{
		UserID:       f.UserID(),
		DialectID:    dialect.ID,
		LessonID:     lesson.ID,
		Progress:     progress,
		Achievements: receipt.Awarded,
		At:           u.now(),
	}
	if err := u.feed.Publish(ctx, event); err != nil {
		log.WithError(err).Warn("failed to publish progress event")
	}
	log.WithFields(logrus.Fields{
		"score":    outcome.Score,
		"total":    outcome.TotalPossible,
		"progress": progress.Progress,
		"awarded":  len(receipt.Awarded),
	}).Info("lesson completed")
	return receipt
}

func (u *learningUsecase) CloseSession(ctx context.Context, userID, handle string) error {
	return u.sessions.Remove(handle, userID)
}

func (u *learningUsecase) GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	dialectID = entity.NormalizeDialectID(dialectID)
	if _, err := u.content.GetDialect(ctx, dialectID); err != nil {
		return nil, err
	}
	progress, err := u.store.GetProgress(ctx, userID, dialectID)
	if errors.Is(err, entity.ErrProgressNotFound) {
		return &entity.UserProgress{UserID: userID, DialectID: dialectID, CompletedLessonIDs: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return progress, nil
}

func (u *learningUsecase) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return u.store.ListProgress(ctx, userID)
}

func (u *learningUsecase) ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return u.store.ListAchievements(ctx, userID)
}

func (u *learningUsecase) ResetProgress(ctx context.Context, userID, dialectID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	dialectID = entity.NormalizeDialectID(dialectID)
	if _, err := u.content.GetDialect(ctx, dialectID); err != nil {
		return err
	}
	if err := u.store.ResetProgress(ctx, userID, dialectID); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	event := repository.ProgressEvent{UserID: userID, DialectID: dialectID, Reset: true, At: u.now()}
	if err := u.feed.Publish(ctx, event); err != nil {
		u.logger.WithError(err).WithField("user", userID).Warn("failed to publish progress reset")
	}
	return nil
}

func (u *learningUsecase) WatchProgress(ctx context.Context, userID string, fn func(repository.ProgressEvent)) (func(), error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return u.feed.Subscribe(ctx, userID, fn)
}

func (u *learningUsecase) viewAfter(userID, handle string, fn func(*LessonFlow) error) (*LessonView, error) {
	var view *LessonView
	err := u.sessions.With(handle, userID, func(f *LessonFlow) error {
		if err := fn(f); err != nil {
			return err
		}
		view = viewOf(f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// completedIDs loads the completed set, treating a store failure as nothing
// completed so later lessons stay locked.
func (u *learningUsecase) completedIDs(ctx context.Context, userID, dialectID string) []string {
	ids, err := u.store.GetCompletedLessonIDs(ctx, userID, dialectID)
	if err != nil {
		u.logger.WithError(err).WithField("user", userID).Warn("failed to load completed lessons")
		return nil
	}
	return ids
}

func (u *learningUsecase) snapshot(ctx context.Context, userID string) ProgressSnapshot {
	progress, err := u.store.ListProgress(ctx, userID)
	if err != nil {
		u.logger.WithError(err).WithField("user", userID).Warn("failed to load progress history")
	}
	earned, err := u.store.GetEarnedAchievementIDs(ctx, userID)
	if err != nil {
		u.logger.WithError(err).WithField("user", userID).Warn("failed to load earned achievements")
	}
	return NewProgressSnapshot(progress, earned)
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return entity.ErrInvalidUserID
	}
	return nil
}

func summarize(l *entity.Lesson) LessonSummary {
	return LessonSummary{
		ID:           l.ID,
		DialectID:    l.DialectID,
		Number:       l.Number,
		Title:        l.Title,
		Description:  l.Description,
		Content:      l.Content,
		Vocabulary:   l.Vocabulary,
		CulturalNote: l.CulturalNote,
		Objectives:   l.Objectives,
	}
}

func viewOf(f *LessonFlow) *LessonView {
	view := &LessonView{
		Handle:            f.ID(),
		Step:              f.Step(),
		Dialect:           *f.Dialect(),
		Lesson:            summarize(f.Lesson()),
		Attempt:           f.Attempts(),
		RemainingAttempts: f.RemainingAttempts(),
		CurrentQuestion:   f.CurrentQuestion(),
		SelectedAnswer:    f.SelectedAnswer(),
		Outcome:           f.Outcome(),
		Completed:         f.Completed(),
	}
	session := f.Session()
	if session == nil {
		return view
	}
	view.Answered = session.Answered()
	reveal := f.Step() == StepResults
	view.Questions = lo.Map(session.Questions, func(q entity.QuizQuestion, _ int) QuestionView {
		qv := QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    append([]string(nil), q.Options...),
			Points:     q.Points,
			Difficulty: q.Difficulty,
			Type:       q.Type,
		}
		if answer, ok := session.Answers[q.ID]; ok {
			selected := answer.Option
			qv.Selected = &selected
		}
		if reveal {
			correct := q.Correct
			qv.Correct = &correct
			qv.Explanation = q.Explanation
		}
		return qv
	})
	return view
}
