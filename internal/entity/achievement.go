package entity

import "time"

// AchievementCategory groups badges by difficulty tier.
type AchievementCategory string

const (
	CategoryBeginner     AchievementCategory = "beginner"
	CategoryIntermediate AchievementCategory = "intermediate"
	CategoryAdvanced     AchievementCategory = "advanced"
	CategoryMaster       AchievementCategory = "master"
)

// AchievementType describes what kind of activity a badge rewards.
type AchievementType string

const (
	AchievementLesson    AchievementType = "lesson"
	AchievementQuiz      AchievementType = "quiz"
	AchievementStreak    AchievementType = "streak"
	AchievementMilestone AchievementType = "milestone"
	AchievementSpecial   AchievementType = "special"
)

// ConditionType names the rule an achievement definition is evaluated with.
type ConditionType string

const (
	ConditionFirstLesson     ConditionType = "firstLesson"
	ConditionQuizTime        ConditionType = "quizTime"
	ConditionPerfectScore    ConditionType = "perfectScore"
	ConditionTotalLessons    ConditionType = "totalLessons"
	ConditionDialectComplete ConditionType = "dialectComplete"
	ConditionDialectsStarted ConditionType = "dialectsStarted"
	ConditionBeforeHour      ConditionType = "beforeHour"
	ConditionFromHour        ConditionType = "fromHour"
	ConditionWeekend         ConditionType = "weekend"
	ConditionExpression      ConditionType = "expression"
)

// AchievementCondition is the structured unlock rule of a definition.
type AchievementCondition struct {
	Type       ConditionType `json:"type" yaml:"type"`
	Threshold  int           `json:"threshold,omitempty" yaml:"threshold"`
	DialectID  string        `json:"dialect,omitempty" yaml:"dialect"`
	Expression string        `json:"expression,omitempty" yaml:"expression"`
}

// AchievementDefinition is static reference data describing a badge.
type AchievementDefinition struct {
	ID          string                `json:"id" yaml:"id"`
	Title       string                `json:"title" yaml:"title"`
	Description string                `json:"description" yaml:"description"`
	Icon        string                `json:"icon" yaml:"icon"`
	Points      int                   `json:"points" yaml:"points"`
	Type        AchievementType       `json:"type" yaml:"type"`
	Category    AchievementCategory   `json:"category" yaml:"category"`
	Condition   *AchievementCondition `json:"condition,omitempty" yaml:"condition"`
}

// Award materializes the definition as an earned record for userID.
func (d *AchievementDefinition) Award(userID string, at time.Time) Achievement {
	return Achievement{
		UserID:      userID,
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Icon:        d.Icon,
		Points:      d.Points,
		Category:    d.Category,
		Type:        d.Type,
		EarnedAt:    at,
	}
}

// Achievement is a badge earned by a user. One record exists per (user, id).
type Achievement struct {
	UserID      string              `json:"user_id"`
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	Points      int                 `json:"points"`
	Category    AchievementCategory `json:"category"`
	Type        AchievementType     `json:"type"`
	EarnedAt    time.Time           `json:"earned_at"`
}
