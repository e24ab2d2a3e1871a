package usecase

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/samber/lo"

	"github.com/eslsoft/salita/internal/entity"
)

const defaultQuizTimeLimit = 5 * time.Minute

// builtinConditions backs the well-known ids when a definition ships without a condition.
var builtinConditions = map[string]entity.AchievementCondition{
	"first_steps":       {Type: entity.ConditionFirstLesson},
	"speed_demon":       {Type: entity.ConditionQuizTime, Threshold: int(defaultQuizTimeLimit / time.Millisecond)},
	"perfect_scholar":   {Type: entity.ConditionPerfectScore},
	"learning_streak":   {Type: entity.ConditionTotalLessons, Threshold: 3},
	"dedicated_learner": {Type: entity.ConditionTotalLessons, Threshold: 10},
	"dialect_master":    {Type: entity.ConditionDialectComplete},
	"polyglot":          {Type: entity.ConditionDialectsStarted, Threshold: 4},
	"early_bird":        {Type: entity.ConditionBeforeHour, Threshold: 8},
	"night_owl":         {Type: entity.ConditionFromHour, Threshold: 22},
	"weekend_warrior":   {Type: entity.ConditionWeekend},
}

// ProgressSnapshot is the learner history an evaluation runs against.
type ProgressSnapshot struct {
	// CompletedByDialect maps dialect id to completed lesson ids.
	CompletedByDialect map[string][]string
	// EarnedAchievementIDs lists achievements already on record.
	EarnedAchievementIDs []string
}

// NewProgressSnapshot builds a snapshot from stored progress records.
func NewProgressSnapshot(progress []entity.UserProgress, earned []string) ProgressSnapshot {
	snap := ProgressSnapshot{
		CompletedByDialect:   make(map[string][]string, len(progress)),
		EarnedAchievementIDs: append([]string(nil), earned...),
	}
	for _, p := range progress {
		snap.CompletedByDialect[p.DialectID] = append([]string(nil), p.CompletedLessonIDs...)
	}
	return snap
}

// EvaluationInput is everything the evaluator looks at for one submission.
type EvaluationInput struct {
	UserID      string
	Lesson      *entity.Lesson
	Dialect     *entity.Dialect
	Outcome     *entity.QuizOutcome
	CompletedAt time.Time
	History     ProgressSnapshot
}

// facts are the derived numbers conditions compare against. Lesson counts
// include the lesson being evaluated.
type facts struct {
	scorePercent    int
	perfect         bool
	elapsed         time.Duration
	lessonNumber    int
	dialectID       string
	totalLessons    int
	dialectLessons  int
	dialectTotal    int
	dialectsStarted int
	local           time.Time
}

// AchievementEvaluator decides which achievement definitions a submission satisfies.
type AchievementEvaluator struct {
	defs     []entity.AchievementDefinition
	location *time.Location
	programs map[string]cel.Program
}

// NewAchievementEvaluator compiles the definitions. Time-of-day rules are
// evaluated in loc.
func NewAchievementEvaluator(defs []entity.AchievementDefinition, loc *time.Location) (*AchievementEvaluator, error) {
	if loc == nil {
		loc = time.Local
	}
	e := &AchievementEvaluator{location: loc, programs: make(map[string]cel.Program)}

	var env *cel.Env
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("%w: achievement %q defined more than once", entity.ErrInvalidContent, def.ID)
		}
		seen[def.ID] = struct{}{}

		cond := conditionOf(def)
		if cond == nil || cond.Type != entity.ConditionExpression {
			e.defs = append(e.defs, def)
			continue
		}
		if env == nil {
			var err error
			if env, err = newFactsEnv(); err != nil {
				return nil, fmt.Errorf("create expression env: %w", err)
			}
		}
		prg, err := compileCondition(env, cond.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: achievement %q: %v", entity.ErrInvalidContent, def.ID, err)
		}
		e.programs[def.ID] = prg
		e.defs = append(e.defs, def)
	}
	return e, nil
}

// Definitions returns the definitions the evaluator checks.
func (e *AchievementEvaluator) Definitions() []entity.AchievementDefinition {
	return append([]entity.AchievementDefinition(nil), e.defs...)
}

// Evaluate returns every satisfied achievement and the subset not yet earned.
func (e *AchievementEvaluator) Evaluate(in EvaluationInput) (potential, newly []entity.Achievement) {
	f := e.factsFor(in)
	for _, def := range e.defs {
		cond := conditionOf(def)
		if cond == nil || !e.satisfied(def.ID, cond, f) {
			continue
		}
		award := def.Award(in.UserID, in.CompletedAt)
		potential = append(potential, award)
		if !lo.Contains(in.History.EarnedAchievementIDs, def.ID) {
			newly = append(newly, award)
		}
	}
	return potential, newly
}

func (e *AchievementEvaluator) factsFor(in EvaluationInput) facts {
	f := facts{local: in.CompletedAt.In(e.location)}
	if in.Outcome != nil {
		f.scorePercent = in.Outcome.Percent()
		f.perfect = in.Outcome.Perfect()
		f.elapsed = in.Outcome.Elapsed
	}
	if in.Dialect != nil {
		f.dialectTotal = in.Dialect.TotalLessons
	}

	completed := make(map[string][]string, len(in.History.CompletedByDialect)+1)
	for dialect, ids := range in.History.CompletedByDialect {
		completed[dialect] = ids
	}
	if in.Lesson != nil {
		f.lessonNumber = in.Lesson.Number
		f.dialectID = in.Lesson.DialectID
		completed[f.dialectID] = lo.Uniq(append(append([]string(nil), completed[f.dialectID]...), in.Lesson.ID))
	}
	for dialect, ids := range completed {
		n := len(lo.Uniq(ids))
		f.totalLessons += n
		if n > 0 {
			f.dialectsStarted++
		}
		if dialect == f.dialectID {
			f.dialectLessons = n
		}
	}
	return f
}

func (e *AchievementEvaluator) satisfied(id string, c *entity.AchievementCondition, f facts) bool {
	switch c.Type {
	case entity.ConditionFirstLesson:
		return f.lessonNumber == 1
	case entity.ConditionQuizTime:
		limit := defaultQuizTimeLimit
		if c.Threshold > 0 {
			limit = time.Duration(c.Threshold) * time.Millisecond
		}
		return f.elapsed < limit
	case entity.ConditionPerfectScore:
		return f.perfect
	case entity.ConditionTotalLessons:
		return f.totalLessons >= c.Threshold
	case entity.ConditionDialectComplete:
		// a scoped definition can only be decided while completing that dialect
		if c.DialectID != "" && c.DialectID != f.dialectID {
			return false
		}
		return f.dialectTotal > 0 && f.dialectLessons >= f.dialectTotal
	case entity.ConditionDialectsStarted:
		return f.dialectsStarted >= c.Threshold
	case entity.ConditionBeforeHour:
		return f.local.Hour() < c.Threshold
	case entity.ConditionFromHour:
		return f.local.Hour() >= c.Threshold
	case entity.ConditionWeekend:
		wd := f.local.Weekday()
		return wd == time.Saturday || wd == time.Sunday
	case entity.ConditionExpression:
		prg, ok := e.programs[id]
		if !ok {
			return false
		}
		out, _, err := prg.Eval(f.activation())
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}
	return false
}

func conditionOf(def entity.AchievementDefinition) *entity.AchievementCondition {
	if def.Condition != nil {
		return def.Condition
	}
	if c, ok := builtinConditions[def.ID]; ok {
		return &c
	}
	return nil
}

func newFactsEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("score_percent", cel.IntType),
		cel.Variable("perfect", cel.BoolType),
		cel.Variable("elapsed_ms", cel.IntType),
		cel.Variable("lesson_number", cel.IntType),
		cel.Variable("dialect", cel.StringType),
		cel.Variable("total_lessons", cel.IntType),
		cel.Variable("dialect_lessons", cel.IntType),
		cel.Variable("dialect_total", cel.IntType),
		cel.Variable("dialects_started", cel.IntType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
	)
}

func compileCondition(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	return env.Program(ast)
}

func (f facts) activation() map[string]any {
	return map[string]any{
		"score_percent":    int64(f.scorePercent),
		"perfect":          f.perfect,
		"elapsed_ms":       f.elapsed.Milliseconds(),
		"lesson_number":    int64(f.lessonNumber),
		"dialect":          f.dialectID,
		"total_lessons":    int64(f.totalLessons),
		"dialect_lessons":  int64(f.dialectLessons),
		"dialect_total":    int64(f.dialectTotal),
		"dialects_started": int64(f.dialectsStarted),
		"hour":             int64(f.local.Hour()),
		"weekday":          int64(f.local.Weekday()),
	}
}
