package connectrpc

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/adapter/mapping"
	"github.com/eslsoft/salita/internal/entity"
	"github.com/eslsoft/salita/internal/repository"
	"github.com/eslsoft/salita/internal/usecase"
)

// LearningServiceName is the fully-qualified name of the learning service.
const LearningServiceName = "salita.learning.v1.LearningService"

// Procedure paths of the learning service.
const (
	ListDialectsProcedure     = "/" + LearningServiceName + "/ListDialects"
	ListLessonsProcedure      = "/" + LearningServiceName + "/ListLessons"
	StartLessonProcedure      = "/" + LearningServiceName + "/StartLesson"
	GetSessionProcedure       = "/" + LearningServiceName + "/GetSession"
	AdvanceProcedure          = "/" + LearningServiceName + "/Advance"
	RetakeProcedure           = "/" + LearningServiceName + "/Retake"
	SelectAnswerProcedure     = "/" + LearningServiceName + "/SelectAnswer"
	GoToQuestionProcedure     = "/" + LearningServiceName + "/GoToQuestion"
	SubmitQuizProcedure       = "/" + LearningServiceName + "/SubmitQuiz"
	CompleteLessonProcedure   = "/" + LearningServiceName + "/CompleteLesson"
	CloseSessionProcedure     = "/" + LearningServiceName + "/CloseSession"
	GetProgressProcedure      = "/" + LearningServiceName + "/GetProgress"
	ListProgressProcedure     = "/" + LearningServiceName + "/ListProgress"
	ListAchievementsProcedure = "/" + LearningServiceName + "/ListAchievements"
	ResetProgressProcedure    = "/" + LearningServiceName + "/ResetProgress"
	WatchProgressProcedure    = "/" + LearningServiceName + "/WatchProgress"
)

const watchBuffer = 16

type LearningServiceServer struct {
	uc     usecase.LearningUsecase
	logger logrus.FieldLogger
}

func NewLearningServiceServer(uc usecase.LearningUsecase, logger logrus.FieldLogger) *LearningServiceServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LearningServiceServer{uc: uc, logger: logger.WithField("component", "learning_service")}
}

// NewLearningServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path prefix to mount the handler on.
func NewLearningServiceHandler(svc *LearningServiceServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	handlers := map[string]http.Handler{
		ListDialectsProcedure:     connect.NewUnaryHandler(ListDialectsProcedure, svc.ListDialects, opts...),
		ListLessonsProcedure:      connect.NewUnaryHandler(ListLessonsProcedure, svc.ListLessons, opts...),
		StartLessonProcedure:      connect.NewUnaryHandler(StartLessonProcedure, svc.StartLesson, opts...),
		GetSessionProcedure:       connect.NewUnaryHandler(GetSessionProcedure, svc.GetSession, opts...),
		AdvanceProcedure:          connect.NewUnaryHandler(AdvanceProcedure, svc.Advance, opts...),
		RetakeProcedure:           connect.NewUnaryHandler(RetakeProcedure, svc.Retake, opts...),
		SelectAnswerProcedure:     connect.NewUnaryHandler(SelectAnswerProcedure, svc.SelectAnswer, opts...),
		GoToQuestionProcedure:     connect.NewUnaryHandler(GoToQuestionProcedure, svc.GoToQuestion, opts...),
		SubmitQuizProcedure:       connect.NewUnaryHandler(SubmitQuizProcedure, svc.SubmitQuiz, opts...),
		CompleteLessonProcedure:   connect.NewUnaryHandler(CompleteLessonProcedure, svc.CompleteLesson, opts...),
		CloseSessionProcedure:     connect.NewUnaryHandler(CloseSessionProcedure, svc.CloseSession, opts...),
		GetProgressProcedure:      connect.NewUnaryHandler(GetProgressProcedure, svc.GetProgress, opts...),
		ListProgressProcedure:     connect.NewUnaryHandler(ListProgressProcedure, svc.ListProgress, opts...),
		ListAchievementsProcedure: connect.NewUnaryHandler(ListAchievementsProcedure, svc.ListAchievements, opts...),
		ResetProgressProcedure:    connect.NewUnaryHandler(ResetProgressProcedure, svc.ResetProgress, opts...),
		WatchProgressProcedure:    connect.NewServerStreamHandler(WatchProgressProcedure, svc.WatchProgress, opts...),
	}

	return "/" + LearningServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *LearningServiceServer) ListDialects(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListDialectsResponse], error) {
	dialects, err := s.uc.ListDialects(ctx)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&ListDialectsResponse{Dialects: dialects}), nil
}

func (s *LearningServiceServer) ListLessons(ctx context.Context, req *connect.Request[DialectRequest]) (*connect.Response[ListLessonsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := s.uc.ListLessons(ctx, userID, req.Msg.DialectID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&ListLessonsResponse{Lessons: lessons}), nil
}

func (s *LearningServiceServer) StartLesson(ctx context.Context, req *connect.Request[StartLessonRequest]) (*connect.Response[usecase.LessonView], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Msg.LessonNumber <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("lesson_number must be positive"))
	}
	return viewResponse(s.uc.StartLesson(ctx, userID, req.Msg.DialectID, req.Msg.LessonNumber))
}

func (s *LearningServiceServer) GetSession(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[usecase.LessonView], error) {
	return s.sessionCall(ctx, req.Msg, s.uc.GetSession)
}

func (s *LearningServiceServer) Advance(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[usecase.LessonView], error) {
	return s.sessionCall(ctx, req.Msg, s.uc.Advance)
}

func (s *LearningServiceServer) Retake(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[usecase.LessonView], error) {
	return s.sessionCall(ctx, req.Msg, s.uc.Retake)
}

func (s *LearningServiceServer) SelectAnswer(ctx context.Context, req *connect.Request[SelectAnswerRequest]) (*connect.Response[usecase.LessonView], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return viewResponse(s.uc.SelectAnswer(ctx, userID, req.Msg.Handle, req.Msg.QuestionID, req.Msg.Option))
}

func (s *LearningServiceServer) GoToQuestion(ctx context.Context, req *connect.Request[GoToQuestionRequest]) (*connect.Response[usecase.LessonView], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return viewResponse(s.uc.GoToQuestion(ctx, userID, req.Msg.Handle, req.Msg.Index))
}

func (s *LearningServiceServer) SubmitQuiz(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[entity.QuizOutcome], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	outcome, err := s.uc.SubmitQuiz(ctx, userID, req.Msg.Handle)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(outcome), nil
}

func (s *LearningServiceServer) CompleteLesson(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[usecase.CompletionReceipt], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	receipt, err := s.uc.CompleteLesson(ctx, userID, req.Msg.Handle)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(receipt), nil
}

func (s *LearningServiceServer) CloseSession(ctx context.Context, req *connect.Request[SessionRequest]) (*connect.Response[Empty], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.uc.CloseSession(ctx, userID, req.Msg.Handle); err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *LearningServiceServer) GetProgress(ctx context.Context, req *connect.Request[DialectRequest]) (*connect.Response[entity.UserProgress], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.uc.GetProgress(ctx, userID, req.Msg.DialectID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(progress), nil
}

func (s *LearningServiceServer) ListProgress(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListProgressResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.uc.ListProgress(ctx, userID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&ListProgressResponse{Progress: progress}), nil
}

func (s *LearningServiceServer) ListAchievements(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListAchievementsResponse], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	achievements, err := s.uc.ListAchievements(ctx, userID)
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	total := 0
	for _, a := range achievements {
		total += a.Points
	}
	return connect.NewResponse(&ListAchievementsResponse{Achievements: achievements, TotalPoints: total}), nil
}

func (s *LearningServiceServer) ResetProgress(ctx context.Context, req *connect.Request[DialectRequest]) (*connect.Response[Empty], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.uc.ResetProgress(ctx, userID, req.Msg.DialectID); err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

// WatchProgress streams the caller's progress events until the client goes
// away. Events are dropped while the client is slower than the feed.
func (s *LearningServiceServer) WatchProgress(ctx context.Context, _ *connect.Request[WatchProgressRequest], stream *connect.ServerStream[ProgressEvent]) error {
	userID, err := requireUser(ctx)
	if err != nil {
		return err
	}
	logger := s.logger.WithField("user_id", userID)

	events := make(chan repository.ProgressEvent, watchBuffer)
	unsubscribe, err := s.uc.WatchProgress(ctx, userID, func(e repository.ProgressEvent) {
		select {
		case events <- e:
		default:
			logger.Warn("progress watcher is behind, dropping event")
		}
	})
	if err != nil {
		return mapping.ToConnectError(err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if err := stream.Send(&e); err != nil {
				return err
			}
		}
	}
}

func (s *LearningServiceServer) sessionCall(
	ctx context.Context,
	msg *SessionRequest,
	fn func(ctx context.Context, userID, handle string) (*usecase.LessonView, error),
) (*connect.Response[usecase.LessonView], error) {
	userID, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	return viewResponse(fn(ctx, userID, msg.Handle))
}

func viewResponse(view *usecase.LessonView, err error) (*connect.Response[usecase.LessonView], error) {
	if err != nil {
		return nil, mapping.ToConnectError(err)
	}
	return connect.NewResponse(view), nil
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", connect.NewError(connect.CodeUnauthenticated, entity.ErrInvalidUserID)
	}
	return userID, nil
}
