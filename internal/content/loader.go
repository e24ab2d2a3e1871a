package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/eslsoft/salita/internal/entity"
)

const (
	dialectDir       = "dialects"
	achievementsFile = "achievements.yaml"
)

type dialectFile struct {
	Dialect entity.Dialect  `yaml:"dialect"`
	Lessons []entity.Lesson `yaml:"lessons"`
}

type achievementsDoc struct {
	Achievements []entity.AchievementDefinition `yaml:"achievements"`
}

type loader struct {
	strict bool
	logger logrus.FieldLogger
}

// Option tunes content loading.
type Option func(*loader)

// WithStrict makes malformed quiz questions fail the load instead of being skipped.
func WithStrict(strict bool) Option {
	return func(l *loader) { l.strict = strict }
}

// WithLogger sets the logger used to report skipped content.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Load reads dialects/*.yaml and achievements.yaml from fsys and validates them.
func Load(fsys fs.FS, opts ...Option) (*Catalog, error) {
	l := &loader{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := fs.ReadDir(fsys, dialectDir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dialectDir, err)
	}

	cat := &Catalog{
		lessons:    make(map[string][]entity.Lesson),
		lessonByID: make(map[string]entity.Lesson),
	}
	for _, entry := range entries {
		name := entry.Name()
		ext := path.Ext(name)
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if err := l.loadDialect(fsys, path.Join(dialectDir, name), strings.TrimSuffix(name, ext), cat); err != nil {
			return nil, err
		}
	}
	if len(cat.dialects) == 0 {
		return nil, fmt.Errorf("%w: no dialect files under %s", entity.ErrInvalidContent, dialectDir)
	}
	sort.Slice(cat.dialects, func(i, j int) bool { return cat.dialects[i].Name < cat.dialects[j].Name })

	defs, err := l.loadAchievements(fsys)
	if err != nil {
		return nil, err
	}
	cat.achievements = defs
	for _, id := range cat.Unreachable() {
		l.logger.WithField("achievement", id).Warn("achievement threshold exceeds loaded content")
	}
	return cat, nil
}

func (l *loader) loadDialect(fsys fs.FS, file, stem string, cat *Catalog) error {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	var doc dialectFile
	if err := decodeStrict(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", entity.ErrInvalidContent, file, err)
	}

	d := doc.Dialect
	d.ID = entity.NormalizeDialectID(d.ID)
	if d.ID == "" || d.ID != stem {
		return fmt.Errorf("%w: %s declares dialect %q, expected %q", entity.ErrInvalidContent, file, d.ID, stem)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: dialect %q has no name", entity.ErrInvalidContent, d.ID)
	}
	if _, dup := cat.lessons[d.ID]; dup {
		return fmt.Errorf("%w: dialect %q defined twice", entity.ErrInvalidContent, d.ID)
	}

	lessons := doc.Lessons
	sort.SliceStable(lessons, func(i, j int) bool { return lessons[i].Number < lessons[j].Number })
	for i := range lessons {
		lesson := &lessons[i]
		lesson.DialectID = d.ID
		if lesson.Number != i+1 {
			return fmt.Errorf("%w: dialect %q lesson numbers must be dense from 1, found %d at position %d",
				entity.ErrInvalidContent, d.ID, lesson.Number, i+1)
		}
		if err := l.normalizeLesson(lesson); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		if _, dup := cat.lessonByID[lesson.ID]; dup {
			return fmt.Errorf("%w: lesson id %q is not unique", entity.ErrInvalidContent, lesson.ID)
		}
		cat.lessonByID[lesson.ID] = *lesson
	}

	switch {
	case d.TotalLessons == 0:
		d.TotalLessons = len(lessons)
	case d.TotalLessons < len(lessons):
		return fmt.Errorf("%w: dialect %q declares %d lessons but ships %d",
			entity.ErrInvalidContent, d.ID, d.TotalLessons, len(lessons))
	}
	if d.TotalLessons == 0 {
		return fmt.Errorf("%w: dialect %q has no lessons", entity.ErrInvalidContent, d.ID)
	}

	cat.dialects = append(cat.dialects, d)
	cat.lessons[d.ID] = lessons
	return nil
}

func (l *loader) normalizeLesson(lesson *entity.Lesson) error {
	if strings.TrimSpace(lesson.ID) == "" {
		return fmt.Errorf("%w: lesson %d has no id", entity.ErrInvalidContent, lesson.Number)
	}
	if strings.TrimSpace(lesson.Title) == "" {
		return fmt.Errorf("%w: lesson %q has no title", entity.ErrInvalidContent, lesson.ID)
	}
	for i, item := range lesson.Vocabulary {
		if strings.TrimSpace(item.Word) == "" || strings.TrimSpace(item.Translation) == "" {
			return fmt.Errorf("%w: lesson %q vocabulary item %d is incomplete", entity.ErrInvalidContent, lesson.ID, i+1)
		}
	}

	seen := make(map[string]struct{}, len(lesson.Quiz))
	kept := lesson.Quiz[:0]
	for _, q := range lesson.Quiz {
		if q.Difficulty == "" {
			q.Difficulty = entity.DifficultyEasy
		}
		if q.Type == "" {
			q.Type = entity.QuestionMultipleChoice
		}
		err := q.Validate()
		if err == nil {
			if _, dup := seen[q.ID]; dup {
				err = fmt.Errorf("%w: question id %q repeated", entity.ErrInvalidContent, q.ID)
			}
		}
		if err != nil {
			if l.strict {
				return fmt.Errorf("lesson %q: %w", lesson.ID, err)
			}
			l.logger.WithError(err).WithField("lesson", lesson.ID).Warn("skipping malformed quiz question")
			continue
		}
		seen[q.ID] = struct{}{}
		kept = append(kept, q)
	}
	lesson.Quiz = kept
	return nil
}

func (l *loader) loadAchievements(fsys fs.FS) ([]entity.AchievementDefinition, error) {
	data, err := fs.ReadFile(fsys, achievementsFile)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("no achievements.yaml found, achievements disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", achievementsFile, err)
	}
	var doc achievementsDoc
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", entity.ErrInvalidContent, achievementsFile, err)
	}

	seen := make(map[string]struct{}, len(doc.Achievements))
	for i := range doc.Achievements {
		def := &doc.Achievements[i]
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("%w: achievement %q defined more than once", entity.ErrInvalidContent, def.ID)
		}
		seen[def.ID] = struct{}{}
	}
	return doc.Achievements, nil
}

func validateDefinition(def *entity.AchievementDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("%w: achievement without id", entity.ErrInvalidContent)
	}
	switch def.Type {
	case entity.AchievementLesson, entity.AchievementQuiz, entity.AchievementStreak,
		entity.AchievementMilestone, entity.AchievementSpecial:
	default:
		return fmt.Errorf("%w: achievement %q type %q", entity.ErrInvalidContent, def.ID, def.Type)
	}
	switch def.Category {
	case entity.CategoryBeginner, entity.CategoryIntermediate, entity.CategoryAdvanced, entity.CategoryMaster:
	default:
		return fmt.Errorf("%w: achievement %q category %q", entity.ErrInvalidContent, def.ID, def.Category)
	}
	if def.Points < 0 {
		return fmt.Errorf("%w: achievement %q points must not be negative", entity.ErrInvalidContent, def.ID)
	}

	c := def.Condition
	if c == nil {
		return nil
	}
	if c.Threshold < 0 {
		return fmt.Errorf("%w: achievement %q threshold must not be negative", entity.ErrInvalidContent, def.ID)
	}
	c.DialectID = entity.NormalizeDialectID(c.DialectID)
	switch c.Type {
	case entity.ConditionFirstLesson, entity.ConditionQuizTime, entity.ConditionPerfectScore,
		entity.ConditionTotalLessons, entity.ConditionDialectComplete, entity.ConditionDialectsStarted,
		entity.ConditionBeforeHour, entity.ConditionFromHour, entity.ConditionWeekend:
	case entity.ConditionExpression:
		if strings.TrimSpace(c.Expression) == "" {
			return fmt.Errorf("%w: achievement %q expression is empty", entity.ErrInvalidContent, def.ID)
		}
	default:
		return fmt.Errorf("%w: achievement %q condition type %q", entity.ErrInvalidContent, def.ID, c.Type)
	}
	return nil
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
