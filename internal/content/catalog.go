package content

import (
	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
)

// Catalog is the validated, read-only content set.
type Catalog struct {
	dialects     []entity.Dialect
	lessons      map[string][]entity.Lesson
	lessonByID   map[string]entity.Lesson
	achievements []entity.AchievementDefinition
}

// Dialects returns every dialect ordered by name.
func (c *Catalog) Dialects() []entity.Dialect {
	return append([]entity.Dialect(nil), c.dialects...)
}

// Dialect looks up a dialect by id.
func (c *Catalog) Dialect(id string) (entity.Dialect, bool) {
	id = entity.NormalizeDialectID(id)
	return lo.Find(c.dialects, func(d entity.Dialect) bool { return d.ID == id })
}

// Lessons returns the lessons of a dialect ascending by number.
func (c *Catalog) Lessons(dialectID string) []entity.Lesson {
	return append([]entity.Lesson(nil), c.lessons[entity.NormalizeDialectID(dialectID)]...)
}

// Lesson returns the lesson with the given number in a dialect.
func (c *Catalog) Lesson(dialectID string, number int) (entity.Lesson, bool) {
	lessons := c.lessons[entity.NormalizeDialectID(dialectID)]
	// numbers are dense from 1
	if number < 1 || number > len(lessons) {
		return entity.Lesson{}, false
	}
	return lessons[number-1], true
}

// LessonByID returns the lesson with the given id.
func (c *Catalog) LessonByID(id string) (entity.Lesson, bool) {
	l, ok := c.lessonByID[id]
	return l, ok
}

// Achievements returns the canonical achievement definitions.
func (c *Catalog) Achievements() []entity.AchievementDefinition {
	return append([]entity.AchievementDefinition(nil), c.achievements...)
}

// Stats summarizes the catalog for logging.
func (c *Catalog) Stats() (dialects, lessons, questions, achievements int) {
	for _, ls := range c.lessons {
		lessons += len(ls)
		for _, l := range ls {
			questions += len(l.Quiz)
		}
	}
	return len(c.dialects), lessons, questions, len(c.achievements)
}

// Unreachable returns the ids of milestone achievements whose lesson or dialect
// threshold exceeds what the loaded content offers.
func (c *Catalog) Unreachable() []string {
	_, lessons, _, _ := c.Stats()
	var ids []string
	for _, def := range c.achievements {
		if def.Condition == nil {
			continue
		}
		switch def.Condition.Type {
		case entity.ConditionTotalLessons:
			if def.Condition.Threshold > lessons {
				ids = append(ids, def.ID)
			}
		case entity.ConditionDialectsStarted:
			if def.Condition.Threshold > len(c.dialects) {
				ids = append(ids, def.ID)
			}
		}
	}
	return ids
}
