package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

func newTestLesson(dialectID string, number, vocab, authored int) entity.Lesson {
	id := fmt.Sprintf("%s-%02d", dialectID, number)
	lesson := entity.Lesson{
		ID:          id,
		DialectID:   dialectID,
		Number:      number,
		Title:       fmt.Sprintf("Lesson %d", number),
		Description: "test lesson",
		Content:     "body",
		Objectives:  []string{"learn"},
	}
	for i := 1; i <= vocab; i++ {
		lesson.Vocabulary = append(lesson.Vocabulary, entity.VocabularyItem{
			Word:        fmt.Sprintf("word%d", i),
			Translation: fmt.Sprintf("meaning%d", i),
		})
	}
	for i := 0; i < authored; i++ {
		lesson.Quiz = append(lesson.Quiz, entity.QuizQuestion{
			ID:         fmt.Sprintf("%s-q%d", id, i+1),
			Prompt:     fmt.Sprintf("question %d", i+1),
			Options:    []string{"a", "b", "c", "d"},
			Correct:    i % 4,
			Points:     10 + 5*i,
			Difficulty: entity.DifficultyEasy,
			Type:       entity.QuestionMultipleChoice,
		})
	}
	return lesson
}

func newTestDialect(id string, total int) entity.Dialect {
	return entity.Dialect{ID: id, Name: id, TotalLessons: total}
}

func newSeededEngine(seed int64) *QuizEngine {
	return NewQuizEngine(DefaultQuizConfig(), rand.New(rand.NewSource(seed)))
}

// answerAll answers every question, correctly when correct is true.
func answerAll(session *entity.QuizSession, correct bool, at time.Time) error {
	for _, q := range session.Questions {
		option := q.Correct
		if !correct {
			option = (q.Correct + 1) % len(q.Options)
		}
		if err := SelectAnswer(session, q.ID, option, at); err != nil {
			return err
		}
	}
	return nil
}

func achievementIDs(list []entity.Achievement) []string {
	ids := lo.Map(list, func(a entity.Achievement, _ int) string { return a.ID })
	sort.Strings(ids)
	return ids
}

var errStoreDown = errors.New("store unavailable")

type fakeProgressStore struct {
	mu           sync.Mutex
	progress     map[string]*entity.UserProgress
	achievements map[string]entity.Achievement
	failMark     bool
	failAward    bool
	failRead     bool
	clock        func() time.Time
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{
		progress:     make(map[string]*entity.UserProgress),
		achievements: make(map[string]entity.Achievement),
		clock:        time.Now,
	}
}

func progressKey(userID, dialectID string) string { return userID + "/" + dialectID }

func (s *fakeProgressStore) GetCompletedLessonIDs(ctx context.Context, userID, dialectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead {
		return nil, errStoreDown
	}
	if p, ok := s.progress[progressKey(userID, dialectID)]; ok {
		return append([]string(nil), p.CompletedLessonIDs...), nil
	}
	return nil, nil
}

func (s *fakeProgressStore) MarkLessonCompleted(ctx context.Context, userID, dialectID, lessonID string, totalLessons int) (*entity.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark {
		return nil, errStoreDown
	}
	key := progressKey(userID, dialectID)
	p, ok := s.progress[key]
	if !ok {
		p = &entity.UserProgress{UserID: userID, DialectID: dialectID}
		s.progress[key] = p
	}
	p.Complete(lessonID, totalLessons, s.clock())
	copy := *p
	copy.CompletedLessonIDs = append([]string(nil), p.CompletedLessonIDs...)
	return &copy, nil
}

func (s *fakeProgressStore) GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey(userID, dialectID)]
	if !ok {
		return nil, entity.ErrProgressNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *fakeProgressStore) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead {
		return nil, errStoreDown
	}
	var out []entity.UserProgress
	for _, p := range s.progress {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakeProgressStore) ResetProgress(ctx context.Context, userID, dialectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, progressKey(userID, dialectID))
	return nil
}

func (s *fakeProgressStore) GetEarnedAchievementIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRead {
		return nil, errStoreDown
	}
	var ids []string
	for _, a := range s.achievements {
		if a.UserID == userID {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (s *fakeProgressStore) AwardAchievement(ctx context.Context, a *entity.Achievement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAward {
		return false, errStoreDown
	}
	key := progressKey(a.UserID, a.ID)
	if _, ok := s.achievements[key]; ok {
		return false, nil
	}
	s.achievements[key] = *a
	return true, nil
}

func (s *fakeProgressStore) ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Achievement
	for _, a := range s.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

var _ repository.ProgressStore = (*fakeProgressStore)(nil)

type fakeContent struct {
	dialects []entity.Dialect
	lessons  map[string][]entity.Lesson
	defs     []entity.AchievementDefinition
}

func newFakeContent(dialects []entity.Dialect, lessons ...entity.Lesson) *fakeContent {
	c := &fakeContent{dialects: dialects, lessons: make(map[string][]entity.Lesson)}
	for _, l := range lessons {
		c.lessons[l.DialectID] = append(c.lessons[l.DialectID], l)
	}
	return c
}

func (c *fakeContent) ListDialects(ctx context.Context) ([]entity.Dialect, error) {
	return c.dialects, nil
}

func (c *fakeContent) GetDialect(ctx context.Context, dialectID string) (*entity.Dialect, error) {
	d, ok := lo.Find(c.dialects, func(d entity.Dialect) bool { return d.ID == dialectID })
	if !ok {
		return nil, entity.ErrDialectNotFound
	}
	return &d, nil
}

func (c *fakeContent) GetLesson(ctx context.Context, dialectID string, number int) (*entity.Lesson, error) {
	l, ok := lo.Find(c.lessons[dialectID], func(l entity.Lesson) bool { return l.Number == number })
	if !ok {
		return nil, entity.ErrLessonNotFound
	}
	return &l, nil
}

func (c *fakeContent) GetLessonByID(ctx context.Context, lessonID string) (*entity.Lesson, error) {
	for _, lessons := range c.lessons {
		if l, ok := lo.Find(lessons, func(l entity.Lesson) bool { return l.ID == lessonID }); ok {
			return &l, nil
		}
	}
	return nil, entity.ErrLessonNotFound
}

func (c *fakeContent) GetLessonsForDialect(ctx context.Context, dialectID string) ([]entity.Lesson, error) {
	if _, err := c.GetDialect(ctx, dialectID); err != nil {
		return nil, err
	}
	return c.lessons[dialectID], nil
}

func (c *fakeContent) AchievementDefinitions(ctx context.Context) ([]entity.AchievementDefinition, error) {
	return c.defs, nil
}

type fakeFeed struct {
	mu     sync.Mutex
	events []repository.ProgressEvent
}

func (f *fakeFeed) Publish(ctx context.Context, event repository.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, userID string, fn func(repository.ProgressEvent)) (func(), error) {
	return func() {}, nil
}

func (f *fakeFeed) Close() error { return nil }

// standardDefinitions mirrors the shipped badge set without the yaml file.
func standardDefinitions() []entity.AchievementDefinition {
	def := func(id string, typ entity.AchievementType, cond *entity.AchievementCondition) entity.AchievementDefinition {
		return entity.AchievementDefinition{
			ID: id, Title: id, Points: 10, Type: typ, Category: entity.CategoryBeginner, Condition: cond,
		}
	}
	return []entity.AchievementDefinition{
		def("first_steps", entity.AchievementLesson, nil),
		def("speed_demon", entity.AchievementQuiz, nil),
		def("perfect_scholar", entity.AchievementQuiz, nil),
		def("learning_streak", entity.AchievementStreak, nil),
		def("dedicated_learner", entity.AchievementMilestone, nil),
		def("dialect_master", entity.AchievementMilestone, nil),
		def("polyglot", entity.AchievementSpecial, nil),
	}
}
