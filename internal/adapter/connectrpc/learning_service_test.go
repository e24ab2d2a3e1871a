package connectrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/salita/internal/adapter/repository"
	"github.com/eslsoft/salita/internal/content"
	"github.com/eslsoft/salita/internal/usecase"
)

type serviceFixture struct {
	srv  *httptest.Server
	feed *repository.MemoryFeed
}

func newServiceFixture(t *testing.T, secret string) *serviceFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	catalog, err := content.Default(content.WithLogger(logger))
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	evaluator, err := usecase.NewAchievementEvaluator(catalog.Achievements(), time.UTC)
	if err != nil {
		t.Fatalf("NewAchievementEvaluator returned error: %v", err)
	}
	feed := repository.NewMemoryFeed()
	uc := usecase.NewLearningUsecase(
		repository.NewContentRepository(catalog),
		repository.NewMemoryProgressStore(),
		feed,
		usecase.NewQuizEngine(usecase.DefaultQuizConfig(), rand.New(rand.NewSource(7))),
		evaluator,
		usecase.NewSessionRegistry(time.Hour, time.Now),
		logger,
	)

	mux := http.NewServeMux()
	mux.Handle(NewLearningServiceHandler(
		NewLearningServiceServer(uc, logger),
		connect.WithInterceptors(NewAuthInterceptor(secret)),
	))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &serviceFixture{srv: srv, feed: feed}
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call posts a unary Connect request and decodes either out or the error body.
func (fx *serviceFixture) call(t *testing.T, procedure string, header http.Header, in, out any) *rpcError {
	t.Helper()
	body, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, fx.srv.URL+procedure, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := fx.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s: %v", procedure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var rpcErr rpcError
		if err := json.NewDecoder(resp.Body).Decode(&rpcErr); err != nil {
			t.Fatalf("%s: decode error body (status %d): %v", procedure, resp.StatusCode, err)
		}
		return &rpcErr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s: decode response: %v", procedure, err)
		}
	}
	return nil
}

func asUser(userID string) http.Header {
	return http.Header{UserIDHeader: []string{userID}}
}

// playLesson drives a lesson through to results without answering.
func (fx *serviceFixture) playLesson(t *testing.T, userID, dialect string, number int) usecase.LessonView {
	t.Helper()
	var view usecase.LessonView
	if rpcErr := fx.call(t, StartLessonProcedure, asUser(userID), StartLessonRequest{DialectID: dialect, LessonNumber: number}, &view); rpcErr != nil {
		t.Fatalf("StartLesson returned %+v", rpcErr)
	}
	for view.Step != usecase.StepResults {
		if rpcErr := fx.call(t, AdvanceProcedure, asUser(userID), SessionRequest{Handle: view.Handle}, &view); rpcErr != nil {
			t.Fatalf("Advance returned %+v", rpcErr)
		}
	}
	return view
}

func TestLearningServiceListDialects(t *testing.T) {
	fx := newServiceFixture(t, "")
	var resp ListDialectsResponse
	if rpcErr := fx.call(t, ListDialectsProcedure, asUser("u1"), Empty{}, &resp); rpcErr != nil {
		t.Fatalf("ListDialects returned %+v", rpcErr)
	}
	if len(resp.Dialects) != 4 {
		t.Fatalf("expected 4 dialects, got %d", len(resp.Dialects))
	}
}

func TestLearningServiceRequiresUser(t *testing.T) {
	fx := newServiceFixture(t, "")
	rpcErr := fx.call(t, ListDialectsProcedure, nil, Empty{}, nil)
	if rpcErr == nil || rpcErr.Code != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %+v", rpcErr)
	}
}

func TestLearningServiceLockedLesson(t *testing.T) {
	fx := newServiceFixture(t, "")
	rpcErr := fx.call(t, StartLessonProcedure, asUser("u1"), StartLessonRequest{DialectID: "waray", LessonNumber: 2}, nil)
	if rpcErr == nil || rpcErr.Code != "failed_precondition" {
		t.Fatalf("expected failed_precondition, got %+v", rpcErr)
	}

	var lessons ListLessonsResponse
	if rpcErr := fx.call(t, ListLessonsProcedure, asUser("u1"), DialectRequest{DialectID: "waray"}, &lessons); rpcErr != nil {
		t.Fatalf("ListLessons returned %+v", rpcErr)
	}
	if len(lessons.Lessons) < 2 || lessons.Lessons[0].Locked || !lessons.Lessons[1].Locked {
		t.Fatalf("expected only lesson 1 unlocked, got %+v", lessons.Lessons)
	}
}

func TestLearningServiceCompleteLesson(t *testing.T) {
	fx := newServiceFixture(t, "")
	view := fx.playLesson(t, "u1", "ilocano", 1)
	if view.Outcome == nil {
		t.Fatal("expected outcome at results")
	}
	for _, q := range view.Questions {
		if q.Correct == nil {
			t.Fatalf("expected correct option revealed at results for %s", q.ID)
		}
	}

	var receipt usecase.CompletionReceipt
	if rpcErr := fx.call(t, CompleteLessonProcedure, asUser("u1"), SessionRequest{Handle: view.Handle}, &receipt); rpcErr != nil {
		t.Fatalf("CompleteLesson returned %+v", rpcErr)
	}
	if !receipt.Saved || receipt.Progress == nil || receipt.Progress.LessonsCompleted != 1 {
		t.Fatalf("expected saved receipt with one lesson, got %+v", receipt)
	}
	if receipt.NextLesson == nil || receipt.NextLesson.Number != 2 {
		t.Fatalf("expected lesson 2 as next, got %+v", receipt.NextLesson)
	}

	if rpcErr := fx.call(t, StartLessonProcedure, asUser("u1"), StartLessonRequest{DialectID: "ilocano", LessonNumber: 2}, &view); rpcErr != nil {
		t.Fatalf("expected lesson 2 unlocked, got %+v", rpcErr)
	}
	if rpcErr := fx.call(t, GetSessionProcedure, asUser("u2"), SessionRequest{Handle: view.Handle}, nil); rpcErr == nil || rpcErr.Code != "not_found" {
		t.Fatalf("expected not_found for another user's session, got %+v", rpcErr)
	}

	var achievements ListAchievementsResponse
	if rpcErr := fx.call(t, ListAchievementsProcedure, asUser("u1"), Empty{}, &achievements); rpcErr != nil {
		t.Fatalf("ListAchievements returned %+v", rpcErr)
	}
	if len(achievements.Achievements) == 0 || achievements.TotalPoints == 0 {
		t.Fatalf("expected first-lesson achievements, got %+v", achievements)
	}
}

func TestLearningServiceResetProgress(t *testing.T) {
	fx := newServiceFixture(t, "")
	view := fx.playLesson(t, "u1", "bikol", 1)
	if rpcErr := fx.call(t, CompleteLessonProcedure, asUser("u1"), SessionRequest{Handle: view.Handle}, nil); rpcErr != nil {
		t.Fatalf("CompleteLesson returned %+v", rpcErr)
	}
	if rpcErr := fx.call(t, ResetProgressProcedure, asUser("u1"), DialectRequest{DialectID: "bikol"}, nil); rpcErr != nil {
		t.Fatalf("ResetProgress returned %+v", rpcErr)
	}
	var progress ListProgressResponse
	if rpcErr := fx.call(t, ListProgressProcedure, asUser("u1"), Empty{}, &progress); rpcErr != nil {
		t.Fatalf("ListProgress returned %+v", rpcErr)
	}
	if len(progress.Progress) != 0 {
		t.Fatalf("expected no progress after reset, got %+v", progress.Progress)
	}
}

func TestLearningServiceWatchProgress(t *testing.T) {
	fx := newServiceFixture(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := connect.NewClient[WatchProgressRequest, ProgressEvent](
		fx.srv.Client(), fx.srv.URL+WatchProgressProcedure, connect.WithCodec(JSONCodec{}),
	)

	// Response headers arrive with the first message, so the call blocks until
	// an event is published.
	events := make(chan *ProgressEvent, 1)
	errs := make(chan error, 1)
	go func() {
		req := connect.NewRequest(&WatchProgressRequest{})
		req.Header().Set(UserIDHeader, "u1")
		stream, err := client.CallServerStream(ctx, req)
		if err != nil {
			errs <- err
			return
		}
		defer stream.Close()
		if !stream.Receive() {
			errs <- stream.Err()
			return
		}
		events <- stream.Msg()
	}()

	for fx.feed.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("watcher never subscribed")
		case err := <-errs:
			t.Fatalf("stream failed before subscribing: %v", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	view := fx.playLesson(t, "u1", "hiligaynon", 1)
	if rpcErr := fx.call(t, CompleteLessonProcedure, asUser("u1"), SessionRequest{Handle: view.Handle}, nil); rpcErr != nil {
		t.Fatalf("CompleteLesson returned %+v", rpcErr)
	}

	select {
	case event := <-events:
		if event.UserID != "u1" || event.DialectID != "hiligaynon" || event.LessonID != "hil-01" || event.Progress == nil {
			t.Fatalf("unexpected event %+v", event)
		}
		if len(event.Achievements) == 0 {
			t.Fatalf("expected awarded achievements on the event, got %+v", event)
		}
	case err := <-errs:
		t.Fatalf("expected a progress event, got %v", err)
	case <-ctx.Done():
		t.Fatal("timed out waiting for a progress event")
	}
}

func TestAuthInterceptorVerifiesToken(t *testing.T) {
	fx := newServiceFixture(t, "s3cret")

	sign := func(secret string, claims jwt.RegisteredClaims) http.Header {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return http.Header{"Authorization": []string{"Bearer " + token}}
	}

	valid := sign("s3cret", jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	var progress ListProgressResponse
	if rpcErr := fx.call(t, ListProgressProcedure, valid, Empty{}, &progress); rpcErr != nil {
		t.Fatalf("expected valid token accepted, got %+v", rpcErr)
	}

	tests := map[string]http.Header{
		"missing header":  nil,
		"user id header":  asUser("u1"),
		"wrong secret":    sign("other", jwt.RegisteredClaims{Subject: "u1"}),
		"expired":         sign("s3cret", jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}),
		"missing subject": sign("s3cret", jwt.RegisteredClaims{}),
		"not bearer":      {"Authorization": []string{"Basic dTE6cGFzcw=="}},
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			if rpcErr := fx.call(t, ListProgressProcedure, header, Empty{}, nil); rpcErr == nil || rpcErr.Code != "unauthenticated" {
				t.Fatalf("expected unauthenticated, got %+v", rpcErr)
			}
		})
	}
}
