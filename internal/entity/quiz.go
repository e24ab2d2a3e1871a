package entity

import "time"

// Answer is the learner's latest choice for one question.
type Answer struct {
	Option  int           `json:"option"`
	Elapsed time.Duration `json:"elapsed"`
}

// QuizSession is one attempt drawn from a lesson's quiz pool.
type QuizSession struct {
	ID            string            `json:"id"`
	LessonID      string            `json:"lesson_id"`
	Attempt       int               `json:"attempt"`
	Questions     []QuizQuestion    `json:"questions"`
	StartedAt     time.Time         `json:"started_at"`
	Answers       map[string]Answer `json:"answers"`
	TotalPossible int               `json:"total_possible"`
}

// Question returns the session question with the given id.
func (s *QuizSession) Question(id string) (*QuizQuestion, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// Answered counts the questions with a recorded answer.
func (s *QuizSession) Answered() int {
	return len(s.Answers)
}

// QuizResult is the graded outcome of a single question.
type QuizResult struct {
	QuestionID    string        `json:"question_id"`
	Correct       bool          `json:"correct"`
	Selected      *int          `json:"selected"`
	CorrectOption int           `json:"correct_option"`
	PointsAwarded int           `json:"points_awarded"`
	TimeSpent     time.Duration `json:"time_spent"`
}

// QuizOutcome aggregates grading and achievement evaluation for an attempt.
type QuizOutcome struct {
	Score                 int           `json:"score"`
	TotalPossible         int           `json:"total_possible"`
	Results               []QuizResult  `json:"results"`
	Elapsed               time.Duration `json:"elapsed"`
	SubmittedAt           time.Time     `json:"submitted_at"`
	PotentialAchievements []Achievement `json:"potential_achievements"`
	NewAchievements       []Achievement `json:"new_achievements"`
}

// Percent returns the score as a whole percentage of the possible points.
func (o *QuizOutcome) Percent() int {
	if o.TotalPossible <= 0 {
		return 0
	}
	return RoundPercent(o.Score, o.TotalPossible)
}

// Perfect reports whether every point was earned.
func (o *QuizOutcome) Perfect() bool {
	return o.TotalPossible > 0 && o.Score == o.TotalPossible
}
