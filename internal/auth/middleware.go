package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// AccountEnsurer creates the caller's account on first contact.
type AccountEnsurer interface {
	EnsureAccount(ctx context.Context, userID string) error
}

// EnsureFunc adapts a function to AccountEnsurer.
type EnsureFunc func(ctx context.Context, userID string) error

// EnsureAccount calls f.
func (f EnsureFunc) EnsureAccount(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

// WithUser returns a context carrying claims.
func WithUser(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims stored by the middleware.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}

// UserID returns the authenticated user id, or "" when absent.
func UserID(ctx context.Context) string {
	c, _ := FromContext(ctx)
	return c.Subject
}

// TokenFromRequest extracts the token from the Authorization header, then
// the token query parameter. When headerFallback is set the X-User-ID
// header is tried last.
func TokenFromRequest(r *http.Request, headerFallback bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if headerFallback {
		return r.Header.Get(HeaderUserID)
	}
	return ""
}

// Middleware authenticates requests and ensures the caller has an account.
type Middleware struct {
	verifier       Verifier
	ensurer        AccountEnsurer
	headerFallback bool
	log            zerolog.Logger
}

// NewMiddleware creates the auth middleware. ensurer may be nil.
func NewMiddleware(v Verifier, ensurer AccountEnsurer, log zerolog.Logger) *Middleware {
	_, dev := v.(HeaderVerifier)
	return &Middleware{
		verifier:       v,
		ensurer:        ensurer,
		headerFallback: dev,
		log:            log.With().Str("component", "auth").Logger(),
	}
}

// Handler wraps next.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromRequest(r, m.headerFallback)
		if token == "" {
			unauthorized(w, "missing token")
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			m.log.Debug().Err(err).Str("path", r.URL.Path).Msg("Token rejected")
			unauthorized(w, "invalid token")
			return
		}

		ctx := WithUser(r.Context(), claims)
		if m.ensurer != nil {
			if err := m.ensurer.EnsureAccount(ctx, claims.Subject); err != nil {
				m.log.Error().Err(err).Str("user_id", claims.Subject).Msg("Failed to ensure account")
				http.Error(w, `{"error":"account unavailable"}`, http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// IsUnauthorized reports whether err is an auth failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
