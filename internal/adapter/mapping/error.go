package mapping

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/eslsoft/salita/internal/entity"
)

// ToConnectError translates domain errors into connect status errors.
func ToConnectError(err error) error {
	var connectErr *connect.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &connectErr):
		return err
	case errors.Is(err, entity.ErrInvalidUserID):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, entity.ErrDialectNotFound), errors.Is(err, entity.ErrLessonNotFound),
		errors.Is(err, entity.ErrSessionNotFound), errors.Is(err, entity.ErrQuestionNotFound),
		errors.Is(err, entity.ErrProgressNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, entity.ErrLessonLocked), errors.Is(err, entity.ErrAttemptLimitReached),
		errors.Is(err, entity.ErrInvalidTransition), errors.Is(err, entity.ErrEmptyQuiz):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, entity.ErrInvalidOption), errors.Is(err, entity.ErrInvalidContent),
		errors.Is(err, entity.ErrInvalidTotalLessons):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, entity.ErrDuplicateAchievement):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
