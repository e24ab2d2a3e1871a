package usecase

import (
	"time"

	"github.com/eslsoft/salita/internal/entity"
)

// Step is a stage of the lesson progression.
type Step string

const (
	StepObjectives Step = "objectives"
	StepVocabulary Step = "vocabulary"
	StepContent    Step = "content"
	StepQuiz       Step = "quiz"
	StepResults    Step = "results"
)

var stepOrder = []Step{StepObjectives, StepVocabulary, StepContent, StepQuiz, StepResults}

func (s Step) next() Step {
	for i, step := range stepOrder {
		if step == s && i+1 < len(stepOrder) {
			return stepOrder[i+1]
		}
	}
	return s
}

// LessonFlow walks one learner through one lesson:
// objectives → vocabulary → content → quiz → results, with retakes looping
// results → quiz. It computes state only; persisting the outcome is the host's job.
//
// A LessonFlow is not safe for concurrent use.
type LessonFlow struct {
	id        string
	userID    string
	lesson    *entity.Lesson
	dialect   *entity.Dialect
	engine    *QuizEngine
	evaluator *AchievementEvaluator
	clock     func() time.Time

	step      Step
	attempts  int
	session   *entity.QuizSession
	current   int
	selected  *int
	submitted bool
	outcome   *entity.QuizOutcome
	history   ProgressSnapshot
	completed bool
	touched   time.Time
}

// FlowDeps are the collaborators a LessonFlow computes with.
type FlowDeps struct {
	Engine    *QuizEngine
	Evaluator *AchievementEvaluator
	Clock     func() time.Time
}

// NewLessonFlow starts a flow in the objectives step.
func NewLessonFlow(id, userID string, lesson *entity.Lesson, dialect *entity.Dialect, history ProgressSnapshot, deps FlowDeps) *LessonFlow {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &LessonFlow{
		id:        id,
		userID:    userID,
		lesson:    lesson,
		dialect:   dialect,
		engine:    deps.Engine,
		evaluator: deps.Evaluator,
		clock:     clock,
		step:      StepObjectives,
		history:   history,
		touched:   clock(),
	}
}

func (f *LessonFlow) ID() string                   { return f.id }
func (f *LessonFlow) UserID() string               { return f.userID }
func (f *LessonFlow) Lesson() *entity.Lesson       { return f.lesson }
func (f *LessonFlow) Dialect() *entity.Dialect     { return f.dialect }
func (f *LessonFlow) Step() Step                   { return f.step }
func (f *LessonFlow) Attempts() int                { return f.attempts }
func (f *LessonFlow) Session() *entity.QuizSession { return f.session }
func (f *LessonFlow) Outcome() *entity.QuizOutcome { return f.outcome }
func (f *LessonFlow) CurrentQuestion() int         { return f.current }
func (f *LessonFlow) SelectedAnswer() *int         { return f.selected }
func (f *LessonFlow) Submitted() bool              { return f.submitted }
func (f *LessonFlow) Completed() bool              { return f.completed }
func (f *LessonFlow) LastTouched() time.Time       { return f.touched }

// SetHistory replaces the progress snapshot used for achievement evaluation.
func (f *LessonFlow) SetHistory(history ProgressSnapshot) { f.history = history }

// RemainingAttempts is how many more quiz attempts this visit allows.
func (f *LessonFlow) RemainingAttempts() int {
	return max(f.engine.Config().MaxAttempts-f.attempts, 0)
}

// Advance moves to the next step. Entering quiz builds a session; entering
// results grades it and evaluates achievements. Advancing from results does nothing.
func (f *LessonFlow) Advance() error {
	f.touch()
	switch f.step {
	case StepResults:
		return nil
	case StepContent:
		return f.enterQuiz()
	case StepQuiz:
		f.enterResults()
		return nil
	default:
		f.step = f.step.next()
		return nil
	}
}

// Submit finishes the quiz. Calling it again from results returns the same outcome.
func (f *LessonFlow) Submit() (*entity.QuizOutcome, error) {
	f.touch()
	switch f.step {
	case StepQuiz:
		f.enterResults()
		return f.outcome, nil
	case StepResults:
		return f.outcome, nil
	default:
		return nil, entity.ErrInvalidTransition
	}
}

// Retake starts a new attempt from results with a freshly shuffled session.
func (f *LessonFlow) Retake() error {
	f.touch()
	if f.step != StepResults {
		return entity.ErrInvalidTransition
	}
	if f.attempts >= f.engine.Config().MaxAttempts {
		return entity.ErrAttemptLimitReached
	}
	return f.enterQuiz()
}

// SelectAnswer records an answer for a question of the running quiz and moves
// the question pointer to it.
func (f *LessonFlow) SelectAnswer(questionID string, option int) error {
	f.touch()
	if f.step != StepQuiz || f.session == nil {
		return entity.ErrInvalidTransition
	}
	if err := SelectAnswer(f.session, questionID, option, f.clock()); err != nil {
		return err
	}
	for i, q := range f.session.Questions {
		if q.ID == questionID {
			f.current = i
		}
	}
	f.selected = &option
	return nil
}

// GoToQuestion moves the question pointer within the running quiz.
func (f *LessonFlow) GoToQuestion(index int) error {
	f.touch()
	if f.step != StepQuiz || f.session == nil {
		return entity.ErrInvalidTransition
	}
	if index < 0 || index >= len(f.session.Questions) {
		return entity.ErrQuestionNotFound
	}
	f.current = index
	f.selected = nil
	if answer, ok := f.session.Answers[f.session.Questions[index].ID]; ok {
		option := answer.Option
		f.selected = &option
	}
	return nil
}

// NextQuestion moves the pointer forward, stopping at the last question.
func (f *LessonFlow) NextQuestion() error {
	if f.session == nil {
		return entity.ErrInvalidTransition
	}
	return f.GoToQuestion(min(f.current+1, len(f.session.Questions)-1))
}

// PreviousQuestion moves the pointer back, stopping at the first question.
func (f *LessonFlow) PreviousQuestion() error {
	return f.GoToQuestion(max(f.current-1, 0))
}

// MarkCompleted records that the host persisted this attempt.
func (f *LessonFlow) MarkCompleted() {
	f.touch()
	f.completed = true
}

func (f *LessonFlow) enterQuiz() error {
	session, err := f.engine.BuildSession(f.lesson, f.attempts+1, f.clock())
	if err != nil {
		return err
	}
	f.attempts++
	f.session = session
	f.current = 0
	f.selected = nil
	f.submitted = false
	f.outcome = nil
	f.completed = false
	f.step = StepQuiz
	return nil
}

func (f *LessonFlow) enterResults() {
	now := f.clock()
	outcome := Grade(f.session, now)
	if f.evaluator != nil {
		outcome.PotentialAchievements, outcome.NewAchievements = f.evaluator.Evaluate(EvaluationInput{
			UserID:      f.userID,
			Lesson:      f.lesson,
			Dialect:     f.dialect,
			Outcome:     outcome,
			CompletedAt: now,
			History:     f.history,
		})
	}
	f.outcome = outcome
	f.submitted = true
	f.step = StepResults
}

func (f *LessonFlow) touch() {
	f.touched = f.clock()
}
