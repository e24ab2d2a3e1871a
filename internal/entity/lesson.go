package entity

import "fmt"

// Difficulty tags a quiz question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType tags how a question is presented.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionTranslation    QuestionType = "translation"
	QuestionListening      QuestionType = "listening"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTranslation, QuestionListening:
		return true
	}
	return false
}

// Lesson is one unit of instruction within a dialect.
type Lesson struct {
	ID           string           `json:"id" yaml:"id"`
	DialectID    string           `json:"dialect_id" yaml:"-"`
	Number       int              `json:"number" yaml:"number"`
	Title        string           `json:"title" yaml:"title"`
	Description  string           `json:"description" yaml:"description"`
	Content      string           `json:"content" yaml:"content"`
	Vocabulary   []VocabularyItem `json:"vocabulary" yaml:"vocabulary"`
	Quiz         []QuizQuestion   `json:"quiz" yaml:"quiz"`
	CulturalNote string           `json:"cultural_note,omitempty" yaml:"cultural_note"`
	Objectives   []string         `json:"objectives" yaml:"objectives"`
}

// VocabularyItem is a single word drilled by a lesson.
type VocabularyItem struct {
	Word          string `json:"word" yaml:"word"`
	Translation   string `json:"translation" yaml:"translation"`
	Pronunciation string `json:"pronunciation,omitempty" yaml:"pronunciation"`
	Category      string `json:"category,omitempty" yaml:"category"`
}

// QuizQuestion is an authored or synthesized multiple-option question.
type QuizQuestion struct {
	ID          string       `json:"id" yaml:"id"`
	Prompt      string       `json:"prompt" yaml:"prompt"`
	Options     []string     `json:"options" yaml:"options"`
	Correct     int          `json:"correct" yaml:"correct"`
	Points      int          `json:"points" yaml:"points"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation"`
	Difficulty  Difficulty   `json:"difficulty" yaml:"difficulty"`
	Type        QuestionType `json:"type" yaml:"type"`
}

// Validate checks the structural rules every question must satisfy.
func (q *QuizQuestion) Validate() error {
	switch {
	case q.ID == "":
		return fmt.Errorf("%w: question without id", ErrInvalidContent)
	case len(q.Options) < 2:
		return fmt.Errorf("%w: question %q needs at least 2 options", ErrInvalidContent, q.ID)
	case q.Correct < 0 || q.Correct >= len(q.Options):
		return fmt.Errorf("%w: question %q correct index %d out of range", ErrInvalidContent, q.ID, q.Correct)
	case q.Points <= 0:
		return fmt.Errorf("%w: question %q points must be positive", ErrInvalidContent, q.ID)
	case !q.Difficulty.Valid():
		return fmt.Errorf("%w: question %q difficulty %q", ErrInvalidContent, q.ID, q.Difficulty)
	case !q.Type.Valid():
		return fmt.Errorf("%w: question %q type %q", ErrInvalidContent, q.ID, q.Type)
	}
	return nil
}

// CorrectText returns the text of the correct option.
func (q *QuizQuestion) CorrectText() string {
	if q.Correct < 0 || q.Correct >= len(q.Options) {
		return ""
	}
	return q.Options[q.Correct]
}

// Clone returns a deep copy so shuffling never touches shared content.
func (q QuizQuestion) Clone() QuizQuestion {
	q.Options = append([]string(nil), q.Options...)
	return q
}
