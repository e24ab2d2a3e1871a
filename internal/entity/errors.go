package entity

import "errors"

// Content errors: the requested material is missing or unusable.
var (
	ErrDialectNotFound = errors.New("dialect not found")
	ErrLessonNotFound  = errors.New("lesson not found")
	ErrEmptyQuiz       = errors.New("lesson has no quiz questions and too little vocabulary to build one")
	ErrInvalidContent  = errors.New("invalid lesson content")
)

// Policy errors are recoverable and carry a learner-facing message.
var (
	ErrLessonLocked        = errors.New("complete the previous lesson to unlock this one")
	ErrAttemptLimitReached = errors.New("no quiz attempts left for this lesson visit")
	ErrInvalidTransition   = errors.New("action not available at this step of the lesson")
	ErrQuestionNotFound    = errors.New("question is not part of this quiz")
	ErrInvalidOption       = errors.New("answer option out of range")
	ErrSessionNotFound     = errors.New("lesson session not found or expired")
)

// Identity and persistence errors.
var (
	ErrInvalidUserID        = errors.New("invalid user ID")
	ErrProgressNotFound     = errors.New("progress not found")
	ErrInvalidTotalLessons  = errors.New("dialect total lessons must be positive")
	ErrDuplicateAchievement = errors.New("achievement already earned")
)
