package connectrpc

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/golang-jwt/jwt/v5"

	"github.com/eslsoft/salita/internal/entity"
)

// UserIDHeader carries the learner id when token verification is disabled.
const UserIDHeader = "X-User-Id"

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated learner id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext returns the learner id stored by the auth interceptor.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// AuthInterceptor resolves the learner id of every request. With a secret it
// expects an HS256 bearer token whose subject is the learner id; without one
// it trusts the X-User-Id header.
type AuthInterceptor struct {
	secret []byte
}

// NewAuthInterceptor builds the interceptor. An empty secret disables token
// verification.
func NewAuthInterceptor(secret string) *AuthInterceptor {
	return &AuthInterceptor{secret: []byte(secret)}
}

func (a *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		userID, err := a.authenticate(req.Header())
		if err != nil {
			return nil, err
		}
		return next(WithUserID(ctx, userID), req)
	}
}

func (a *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		userID, err := a.authenticate(conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(WithUserID(ctx, userID), conn)
	}
}

func (a *AuthInterceptor) authenticate(header http.Header) (string, error) {
	if len(a.secret) == 0 {
		userID := strings.TrimSpace(header.Get(UserIDHeader))
		if userID == "" {
			return "", connect.NewError(connect.CodeUnauthenticated, errors.New("X-User-Id header required"))
		}
		return userID, nil
	}

	authHeader := header.Get("Authorization")
	if authHeader == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authorization header required"))
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", connect.NewError(connect.CodeUnauthenticated, errors.New("token has expired"))
		}
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, entity.ErrInvalidUserID)
	}
	return claims.Subject, nil
}
