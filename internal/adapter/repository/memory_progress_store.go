package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
)

type progressKey struct{ userID, dialectID string }

type achievementKey struct{ userID, achievementID string }

type memoryProgressStore struct {
	mu           sync.Mutex
	progress     map[progressKey]*entity.UserProgress
	achievements map[achievementKey]entity.Achievement
	clock        func() time.Time
}

// NewMemoryProgressStore keeps progress in process memory. Everything is lost on restart.
func NewMemoryProgressStore() repository.ProgressStore {
	return &memoryProgressStore{
		progress:     make(map[progressKey]*entity.UserProgress),
		achievements: make(map[achievementKey]entity.Achievement),
		clock:        time.Now,
	}
}

func (s *memoryProgressStore) GetCompletedLessonIDs(ctx context.Context, userID, dialectID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{userID, dialectID}]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, p.CompletedLessonIDs...), nil
}

func (s *memoryProgressStore) MarkLessonCompleted(ctx context.Context, userID, dialectID, lessonID string, totalLessons int) (*entity.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateCompletion(userID, dialectID, lessonID, totalLessons); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := progressKey{userID, dialectID}
	p, ok := s.progress[key]
	if !ok {
		p = &entity.UserProgress{UserID: userID, DialectID: dialectID, CompletedLessonIDs: []string{}}
		s.progress[key] = p
	}
	p.Complete(lessonID, totalLessons, s.clock().UTC())
	return cloneProgress(p), nil
}

func (s *memoryProgressStore) GetProgress(ctx context.Context, userID, dialectID string) (*entity.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[progressKey{userID, dialectID}]
	if !ok {
		return nil, entity.ErrProgressNotFound
	}
	return cloneProgress(p), nil
}

func (s *memoryProgressStore) ListProgress(ctx context.Context, userID string) ([]entity.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.UserProgress, 0)
	for key, p := range s.progress {
		if key.userID == userID {
			out = append(out, *cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DialectID < out[j].DialectID })
	return out, nil
}

func (s *memoryProgressStore) ResetProgress(ctx context.Context, userID, dialectID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, progressKey{userID, dialectID})
	return nil
}

func (s *memoryProgressStore) GetEarnedAchievementIDs(ctx context.Context, userID string) ([]string, error) {
	list, err := s.ListAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(list, func(a entity.Achievement, _ int) string { return a.ID }), nil
}

func (s *memoryProgressStore) AwardAchievement(ctx context.Context, a *entity.Achievement) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a == nil || a.UserID == "" || a.ID == "" {
		return false, entity.ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := achievementKey{a.UserID, a.ID}
	if _, ok := s.achievements[key]; ok {
		return false, nil
	}
	s.achievements[key] = *a
	return true, nil
}

func (s *memoryProgressStore) ListAchievements(ctx context.Context, userID string) ([]entity.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Achievement, 0)
	for key, a := range s.achievements {
		if key.userID == userID {
			out = append(out, a)
		}
	}
	sortAchievements(out)
	return out, nil
}

func cloneProgress(p *entity.UserProgress) *entity.UserProgress {
	copy := *p
	copy.CompletedLessonIDs = append([]string{}, p.CompletedLessonIDs...)
	return &copy
}

func validateCompletion(userID, dialectID, lessonID string, totalLessons int) error {
	switch {
	case userID == "":
		return entity.ErrInvalidUserID
	case dialectID == "":
		return entity.ErrDialectNotFound
	case lessonID == "":
		return entity.ErrLessonNotFound
	case totalLessons <= 0:
		return entity.ErrInvalidTotalLessons
	}
	return nil
}

// sortAchievements orders by earn time, then id.
func sortAchievements(list []entity.Achievement) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].EarnedAt.Equal(list[j].EarnedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].EarnedAt.Before(list[j].EarnedAt)
	})
}
