package usecase

import (
	"errors"
	"testing"
	"time"

	"github.com/eslsoft/salita/internal/entity"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func newTestFlow(t *testing.T, clock *stepClock) *LessonFlow {
	t.Helper()
	lesson := newTestLesson("hiligaynon", 1, 8, 2)
	dialect := newTestDialect("hiligaynon", 10)
	return NewLessonFlow("flow-1", "u1", &lesson, &dialect, ProgressSnapshot{}, FlowDeps{
		Engine:    newSeededEngine(11),
		Evaluator: newTestEvaluator(t, standardDefinitions()),
		Clock:     clock.Now,
	})
}

func advanceTo(t *testing.T, f *LessonFlow, step Step) {
	t.Helper()
	for f.Step() != step {
		if err := f.Advance(); err != nil {
			t.Fatalf("Advance from %s returned error: %v", f.Step(), err)
		}
	}
}

func TestLessonFlowWalksSteps(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	f := newTestFlow(t, clock)

	want := []Step{StepObjectives, StepVocabulary, StepContent, StepQuiz, StepResults, StepResults}
	for i, step := range want {
		if f.Step() != step {
			t.Fatalf("transition %d: expected %s, got %s", i, step, f.Step())
		}
		if step == StepQuiz && (f.Session() == nil || f.Attempts() != 1) {
			t.Fatalf("entering quiz must build the first session, attempts=%d", f.Attempts())
		}
		if err := f.Advance(); err != nil {
			t.Fatalf("Advance returned error: %v", err)
		}
	}
	if f.Outcome() == nil || !f.Submitted() {
		t.Fatal("entering results must grade the quiz")
	}
}

func TestLessonFlowSubmitOnlyFromQuiz(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	f := newTestFlow(t, clock)

	if _, err := f.Submit(); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before the quiz, got %v", err)
	}
	if err := f.Retake(); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for retake before results, got %v", err)
	}
	if err := f.SelectAnswer("any", 0); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for answers before the quiz, got %v", err)
	}

	advanceTo(t, f, StepQuiz)
	session := f.Session()
	if err := answerAll(session, true, clock.now); err != nil {
		t.Fatalf("answerAll returned error: %v", err)
	}
	clock.now = clock.now.Add(4 * time.Minute)
	first, err := f.Submit()
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	clock.now = clock.now.Add(time.Hour)
	second, err := f.Submit()
	if err != nil {
		t.Fatalf("second Submit returned error: %v", err)
	}
	if first != second {
		t.Fatal("submitting twice must return the same outcome")
	}
	if first.Elapsed != 4*time.Minute || !first.Perfect() {
		t.Fatalf("unexpected outcome: score %d/%d elapsed %v", first.Score, first.TotalPossible, first.Elapsed)
	}
	want := []string{"first_steps", "perfect_scholar", "speed_demon"}
	if got := achievementIDs(first.NewAchievements); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLessonFlowRetakeLimit(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	f := newTestFlow(t, clock)
	advanceTo(t, f, StepResults)

	for attempt := 2; attempt <= 3; attempt++ {
		previous := f.Session()
		if err := f.Retake(); err != nil {
			t.Fatalf("retake for attempt %d returned error: %v", attempt, err)
		}
		if f.Step() != StepQuiz || f.Attempts() != attempt {
			t.Fatalf("expected quiz attempt %d, got %s attempt %d", attempt, f.Step(), f.Attempts())
		}
		if f.Session() == previous || f.Session().Answered() != 0 {
			t.Fatal("retake must build a fresh session without answers")
		}
		if f.Submitted() || f.Outcome() != nil || f.SelectedAnswer() != nil || f.CurrentQuestion() != 0 {
			t.Fatal("retake must reset the quiz state")
		}
		if _, err := f.Submit(); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}

	if f.RemainingAttempts() != 0 {
		t.Fatalf("expected no remaining attempts, got %d", f.RemainingAttempts())
	}
	outcome := f.Outcome()
	if err := f.Retake(); !errors.Is(err, entity.ErrAttemptLimitReached) {
		t.Fatalf("expected ErrAttemptLimitReached on the fourth attempt, got %v", err)
	}
	if f.Step() != StepResults || f.Outcome() != outcome || f.Attempts() != 3 {
		t.Fatal("a rejected retake must leave the flow untouched")
	}
}

func TestLessonFlowQuestionPointer(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)}
	f := newTestFlow(t, clock)
	advanceTo(t, f, StepQuiz)
	questions := f.Session().Questions

	if err := f.PreviousQuestion(); err != nil || f.CurrentQuestion() != 0 {
		t.Fatalf("expected pointer to stay at 0, got %d (%v)", f.CurrentQuestion(), err)
	}
	if err := f.SelectAnswer(questions[2].ID, 1); err != nil {
		t.Fatalf("SelectAnswer returned error: %v", err)
	}
	if f.CurrentQuestion() != 2 || f.SelectedAnswer() == nil || *f.SelectedAnswer() != 1 {
		t.Fatalf("expected pointer at answered question, got %d", f.CurrentQuestion())
	}
	if err := f.NextQuestion(); err != nil || f.CurrentQuestion() != 3 || f.SelectedAnswer() != nil {
		t.Fatalf("expected unanswered question 3, got %d (%v)", f.CurrentQuestion(), err)
	}
	if err := f.PreviousQuestion(); err != nil || f.SelectedAnswer() == nil || *f.SelectedAnswer() != 1 {
		t.Fatal("moving back must restore the recorded selection")
	}
	for i := 0; i < len(questions)+2; i++ {
		if err := f.NextQuestion(); err != nil {
			t.Fatalf("NextQuestion returned error: %v", err)
		}
	}
	if f.CurrentQuestion() != len(questions)-1 {
		t.Fatalf("expected pointer to stop at the last question, got %d", f.CurrentQuestion())
	}
	if err := f.GoToQuestion(len(questions)); !errors.Is(err, entity.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}
