// Package auth resolves the caller's user id from the identity provider's
// bearer token and puts it on the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

type contextKey struct{}

// DevUserHeader carries the user id when no signing secret is configured.
const DevUserHeader = "X-User-ID"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNoSubject    = errors.New("token has no subject")
)

// GenerateToken signs an HS256 token whose subject is userID.
func GenerateToken(secret, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token and returns its subject.
func ParseToken(secret, tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}

// WithUser returns ctx carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFrom returns the authenticated user id, or "" when there is none.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Middleware authenticates every request. With a secret, the bearer token
// must verify and its subject becomes the user id. Without one, the
// X-User-ID header is trusted as-is, which is only fit for local use.
// Unauthenticated requests get 401 from onFail.
func Middleware(secret string, logger *log.Logger, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentAuth)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := identify(secret, r)
			if err != nil {
				metrics.HTTPAuthFailures.Inc()
				logger.WarnContext(r.Context(), "Request not authenticated",
					log.FieldPath, r.URL.Path,
					log.FieldError, err,
					log.FieldErrorType, log.ErrorTypeAuth)
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func identify(secret string, r *http.Request) (string, error) {
	if secret == "" {
		if id := strings.TrimSpace(r.Header.Get(DevUserHeader)); id != "" {
			return id, nil
		}
		return "", ErrMissingToken
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return ParseToken(secret, strings.TrimSpace(token))
}
