package content

import (
	"errors"
	"io"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/entity"
)

const testDialect = `
dialect:
  id: bikol
  name: Bikol
  total_lessons: 3
lessons:
  - id: bik-02
    number: 2
    title: Numbers
    vocabulary:
      - word: "Saro"
        translation: "One"
  - id: bik-01
    number: 1
    title: Greetings
    quiz:
      - id: q1
        prompt: pick
        options: ["a", "b"]
        correct: 1
        points: 10
      - id: q2
        prompt: broken
        options: ["a", "b"]
        correct: 5
        points: 10
`

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestLoadEmbeddedContent(t *testing.T) {
	cat, err := Default(WithStrict(true), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	dialects, lessons, questions, achievements := cat.Stats()
	if dialects != 4 || lessons != 8 || questions == 0 || achievements == 0 {
		t.Fatalf("unexpected stats: %d dialects, %d lessons, %d questions, %d achievements",
			dialects, lessons, questions, achievements)
	}
	if got := cat.Unreachable(); len(got) != 2 || got[0] != "dedicated_learner" || got[1] != "knowledge_seeker" {
		t.Fatalf("expected the 10 and 25 lesson milestones unreachable with 8 lessons, got %v", got)
	}
	for _, d := range cat.Dialects() {
		for i, l := range cat.Lessons(d.ID) {
			if l.Number != i+1 || l.DialectID != d.ID {
				t.Errorf("%s: lesson %s has number %d dialect %q", d.ID, l.ID, l.Number, l.DialectID)
			}
		}
	}
}

func TestLoadSortsAndSkipsMalformedQuestions(t *testing.T) {
	fsys := fstest.MapFS{"dialects/bikol.yaml": {Data: []byte(testDialect)}}
	cat, err := Load(fsys, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	first, ok := cat.Lesson("bikol", 1)
	if !ok || first.ID != "bik-01" {
		t.Fatalf("expected bik-01 as lesson 1, got %+v", first)
	}
	if len(first.Quiz) != 1 || first.Quiz[0].ID != "q1" {
		t.Fatalf("expected only the valid question, got %+v", first.Quiz)
	}
	if first.Quiz[0].Difficulty != entity.DifficultyEasy || first.Quiz[0].Type != entity.QuestionMultipleChoice {
		t.Errorf("expected defaults for difficulty and type, got %+v", first.Quiz[0])
	}
	d, _ := cat.Dialect("BIKOL")
	if d.TotalLessons != 3 {
		t.Errorf("expected declared total 3, got %d", d.TotalLessons)
	}
	if len(cat.Achievements()) != 0 {
		t.Errorf("expected no achievements without achievements.yaml")
	}
}

func TestLoadStrictRejectsMalformedQuestion(t *testing.T) {
	fsys := fstest.MapFS{"dialects/bikol.yaml": {Data: []byte(testDialect)}}
	_, err := Load(fsys, WithStrict(true), WithLogger(quietLogger()))
	if !errors.Is(err, entity.ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestLoadRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{
			name:  "unknown key",
			files: fstest.MapFS{"dialects/waray.yaml": {Data: []byte("dialect:\n  id: waray\n  name: Waray\n  colour: red\nlessons: []\n")}},
		},
		{
			name:  "file name mismatch",
			files: fstest.MapFS{"dialects/waray.yaml": {Data: []byte(testDialect)}},
		},
		{
			name: "gap in lesson numbers",
			files: fstest.MapFS{"dialects/bikol.yaml": {Data: []byte(
				"dialect:\n  id: bikol\n  name: Bikol\nlessons:\n  - id: a\n    number: 1\n    title: A\n  - id: b\n    number: 3\n    title: B\n")}},
		},
		{
			name: "total below shipped lessons",
			files: fstest.MapFS{"dialects/bikol.yaml": {Data: []byte(
				"dialect:\n  id: bikol\n  name: Bikol\n  total_lessons: 1\nlessons:\n  - id: a\n    number: 1\n    title: A\n  - id: b\n    number: 2\n    title: B\n")}},
		},
		{
			name: "duplicate achievement",
			files: fstest.MapFS{
				"dialects/bikol.yaml": {Data: []byte(testDialect)},
				"achievements.yaml": {Data: []byte(
					"achievements:\n  - {id: x, type: quiz, category: beginner}\n  - {id: x, type: quiz, category: beginner}\n")},
			},
		},
		{
			name: "unknown condition type",
			files: fstest.MapFS{
				"dialects/bikol.yaml": {Data: []byte(testDialect)},
				"achievements.yaml": {Data: []byte(
					"achievements:\n  - {id: x, type: quiz, category: beginner, condition: {type: streakDays}}\n")},
			},
		},
		{
			name:  "no dialects",
			files: fstest.MapFS{"dialects/README.md": {Data: []byte("nothing")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.files, WithLogger(quietLogger())); !errors.Is(err, entity.ErrInvalidContent) {
				t.Fatalf("expected ErrInvalidContent, got %v", err)
			}
		})
	}
}

func TestLoadNormalizesScopedCondition(t *testing.T) {
	fsys := fstest.MapFS{
		"dialects/bikol.yaml": {Data: []byte(testDialect)},
		"achievements.yaml": {Data: []byte(
			"achievements:\n  - {id: bikol_master, type: milestone, category: master, condition: {type: dialectComplete, dialect: \" Bikol \"}}\n")},
	}
	cat, err := Load(fsys, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := cat.Achievements()[0].Condition.DialectID; got != "bikol" {
		t.Fatalf("expected normalized dialect, got %q", got)
	}
}
