package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var errUnauthenticated = errors.New("unauthenticated")

// Authenticator verifies HS256 bearer tokens and resolves their subject to a Caller.
type Authenticator struct {
	secret  []byte
	callers *app.CallerResolver
}

func NewAuthenticator(secret string, callers *app.CallerResolver) *Authenticator {
	return &Authenticator{secret: []byte(secret), callers: callers}
}

// IssueToken mints a token for userID. Used by the development CLI and tests.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

func (a *Authenticator) Authenticate(r *http.Request) (domain.Caller, error) {
	tokenStr := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenStr == "" {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return domain.Caller{}, errUnauthenticated
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return domain.Caller{}, errUnauthenticated
	}

	caller, err := a.callers.Resolve(r.Context(), claims.Subject)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("resolve caller: %w", err)
	}
	return caller, nil
}

type callerKey struct{}

func withCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func callerFrom(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerKey{}).(domain.Caller)
	return caller
}

// authed wraps a handler that needs an authenticated caller.
func (h *Handler) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.auth.Authenticate(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(withCaller(r.Context(), caller)))
	}
}
