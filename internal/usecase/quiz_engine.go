package usecase

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
)

// QuizConfig tunes quiz session construction.
type QuizConfig struct {
	// SessionSize caps the number of questions drawn per attempt.
	SessionSize int
	// MinBankSize is the authored bank size below which vocabulary questions are synthesized.
	MinBankSize int
	// MaxVocabulary bounds how many vocabulary items become synthesized questions.
	MaxVocabulary int
	// Distractors is the number of wrong options a synthesized question aims for.
	Distractors int
	// SynthesizedPoints is the point value of a synthesized question.
	SynthesizedPoints int
	// ShuffleOptions reorders each question's options per session.
	ShuffleOptions bool
	// MaxAttempts is the per-visit attempt cap. The engine does not enforce it;
	// LessonFlow rejects a retake once MaxAttempts attempts were made, and any
	// other host must reject the fourth attempt the same way.
	MaxAttempts int
}

// DefaultQuizConfig returns the standard session shape: 6 questions, synthesized
// vocabulary recall below 5 authored questions, at most 3 attempts.
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		SessionSize:       6,
		MinBankSize:       5,
		MaxVocabulary:     8,
		Distractors:       3,
		SynthesizedPoints: 10,
		ShuffleOptions:    true,
		MaxAttempts:       3,
	}
}

func (c QuizConfig) withDefaults() QuizConfig {
	def := DefaultQuizConfig()
	if c.SessionSize <= 0 {
		c.SessionSize = def.SessionSize
	}
	if c.MinBankSize < 0 {
		c.MinBankSize = def.MinBankSize
	}
	if c.MaxVocabulary <= 0 {
		c.MaxVocabulary = def.MaxVocabulary
	}
	if c.Distractors <= 0 {
		c.Distractors = def.Distractors
	}
	if c.SynthesizedPoints <= 0 {
		c.SynthesizedPoints = def.SynthesizedPoints
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	return c
}

// QuizEngine builds randomized quiz sessions and grades them.
type QuizEngine struct {
	cfg QuizConfig

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewQuizEngine creates an engine drawing randomness from rng.
func NewQuizEngine(cfg QuizConfig, rng *rand.Rand) *QuizEngine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &QuizEngine{cfg: cfg.withDefaults(), rng: rng}
}

// Config returns the effective configuration.
func (e *QuizEngine) Config() QuizConfig { return e.cfg }

// Pool returns the valid authored questions of lesson, topped up with
// synthesized vocabulary questions when the authored bank is thin.
func (e *QuizEngine) Pool(lesson *entity.Lesson) []entity.QuizQuestion {
	pool := lo.Filter(lesson.Quiz, func(q entity.QuizQuestion, _ int) bool {
		return q.Validate() == nil
	})
	if len(pool) < e.cfg.MinBankSize {
		pool = append(pool, e.Synthesize(lesson)...)
	}
	return pool
}

// Synthesize builds "what does X mean" questions from the lesson vocabulary.
// The correct option is the item's translation and the distractors are the
// first differing translations of other items; items without any distractor
// are skipped.
func (e *QuizEngine) Synthesize(lesson *entity.Lesson) []entity.QuizQuestion {
	vocab := lesson.Vocabulary
	if len(vocab) > e.cfg.MaxVocabulary {
		vocab = vocab[:e.cfg.MaxVocabulary]
	}

	questions := make([]entity.QuizQuestion, 0, len(vocab))
	for i, item := range vocab {
		options := []string{item.Translation}
		for j, other := range lesson.Vocabulary {
			if len(options) > e.cfg.Distractors {
				break
			}
			if j == i || lo.Contains(options, other.Translation) {
				continue
			}
			options = append(options, other.Translation)
		}
		if len(options) < 2 {
			continue
		}
		questions = append(questions, entity.QuizQuestion{
			ID:          fmt.Sprintf("%s-vocab-%d", lesson.ID, i+1),
			Prompt:      fmt.Sprintf("What does %q mean?", item.Word),
			Options:     options,
			Correct:     0,
			Points:      e.cfg.SynthesizedPoints,
			Explanation: fmt.Sprintf("%q means %q.", item.Word, item.Translation),
			Difficulty:  entity.DifficultyEasy,
			Type:        entity.QuestionTranslation,
		})
	}
	return questions
}

// BuildSession draws a fresh, independently shuffled session for one attempt.
func (e *QuizEngine) BuildSession(lesson *entity.Lesson, attempt int, now time.Time) (*entity.QuizSession, error) {
	pool := e.Pool(lesson)
	if len(pool) == 0 {
		return nil, entity.ErrEmptyQuiz
	}

	questions := make([]entity.QuizQuestion, len(pool))
	for i, q := range pool {
		questions[i] = q.Clone()
	}

	e.mu.Lock()
	e.rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if len(questions) > e.cfg.SessionSize {
		questions = questions[:e.cfg.SessionSize]
	}
	if e.cfg.ShuffleOptions {
		for i := range questions {
			shuffleOptions(e.rng, &questions[i])
		}
	}
	e.mu.Unlock()

	total := 0
	for _, q := range questions {
		total += q.Points
	}
	return &entity.QuizSession{
		ID:            uuid.NewString(),
		LessonID:      lesson.ID,
		Attempt:       attempt,
		Questions:     questions,
		StartedAt:     now,
		Answers:       make(map[string]entity.Answer, len(questions)),
		TotalPossible: total,
	}, nil
}

// shuffleOptions permutes q.Options in place and moves q.Correct along with
// the correct option text.
func shuffleOptions(rng *rand.Rand, q *entity.QuizQuestion) {
	perm := rng.Perm(len(q.Options))
	shuffled := make([]string, len(q.Options))
	correct := q.Correct
	for to, from := range perm {
		shuffled[to] = q.Options[from]
		if from == q.Correct {
			correct = to
		}
	}
	q.Options = shuffled
	q.Correct = correct
}

// SelectAnswer records option for questionID with the time elapsed since the
// session started. A later answer for the same question replaces the earlier one.
func SelectAnswer(session *entity.QuizSession, questionID string, option int, now time.Time) error {
	q, ok := session.Question(questionID)
	if !ok {
		return entity.ErrQuestionNotFound
	}
	if option < 0 || option >= len(q.Options) {
		return entity.ErrInvalidOption
	}
	if session.Answers == nil {
		session.Answers = make(map[string]entity.Answer)
	}
	session.Answers[questionID] = entity.Answer{Option: option, Elapsed: now.Sub(session.StartedAt)}
	return nil
}

// Grade scores the session as of now. It only reads the session, so grading
// unchanged input twice yields the same outcome.
func Grade(session *entity.QuizSession, now time.Time) *entity.QuizOutcome {
	outcome := &entity.QuizOutcome{
		TotalPossible: session.TotalPossible,
		Results:       make([]entity.QuizResult, 0, len(session.Questions)),
		Elapsed:       now.Sub(session.StartedAt),
		SubmittedAt:   now,
	}
	for _, q := range session.Questions {
		result := entity.QuizResult{QuestionID: q.ID, CorrectOption: q.Correct}
		if answer, ok := session.Answers[q.ID]; ok {
			selected := answer.Option
			result.Selected = &selected
			result.TimeSpent = answer.Elapsed
			if selected == q.Correct {
				result.Correct = true
				result.PointsAwarded = q.Points
			}
		}
		outcome.Score += result.PointsAwarded
		outcome.Results = append(outcome.Results, result)
	}
	return outcome
}
