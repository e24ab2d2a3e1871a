package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	connectcors "connectrpc.com/cors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/eslsoft/salita/internal/adapter/connectrpc"
	"github.com/eslsoft/salita/internal/infrastructure/config"
	"github.com/eslsoft/salita/internal/usecase"
)

// Server represents the application server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	sessions   *usecase.SessionRegistry
	logger     *logrus.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logrus.Logger, svc *connectrpc.LearningServiceServer, sessions *usecase.SessionRegistry) *Server {
	// streaming calls end when shutdown begins
	baseCtx, cancelBase := context.WithCancel(context.Background())
	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           NewHandler(cfg, logger, svc),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelBase)

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		sessions:   sessions,
		logger:     logger,
	}
}

// NewHandler builds the HTTP handler tree: the learning service, health check,
// CORS and HTTP/2 cleartext.
func NewHandler(cfg *config.Config, logger logrus.FieldLogger, svc *connectrpc.LearningServiceServer) http.Handler {
	secret := cfg.Auth.JWTSecret
	if cfg.Auth.Disabled {
		secret = ""
	}

	mux := http.NewServeMux()
	mux.Handle(connectrpc.NewLearningServiceHandler(svc,
		connect.WithInterceptors(connectrpc.NewAuthInterceptor(secret), Logger(logger)),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: connectcors.AllowedMethods(),
		AllowedHeaders: append(connectcors.AllowedHeaders(), "Authorization", connectrpc.UserIDHeader),
		ExposedHeaders: connectcors.ExposedHeaders(),
		MaxAge:         7200,
	})

	return h2c.NewHandler(corsHandler.Handler(mux), &http2.Server{})
}

// Run serves HTTP and evicts idle lesson sessions until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.sessions.Run(ctx, s.config.Learning.JanitorInterval, s.logger.WithField("component", "session_janitor"))
	})

	g.Go(func() error {
		<-ctx.Done()
		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Failed to shutdown HTTP server: %v", err)
		return err
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
