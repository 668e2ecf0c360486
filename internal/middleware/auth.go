package middleware

import (
	"context"
	"net/http"

	"faqbot/internal/auth"
	"faqbot/internal/logging"

	"github.com/charmbracelet/log"
)

type contextKey string

const adminTokenKey contextKey = "admin_token"

// AdminToken returns the token AdminAuth extracted, or "".
func AdminToken(ctx context.Context) string {
	if t, ok := ctx.Value(adminTokenKey).(string); ok {
		return t
	}
	return ""
}

// AdminAuth guards administrative routes. It rejects requests early when
// reloads are disabled or the token header is malformed, and otherwise hands
// the presented token to the handler, which verifies it.
type AdminAuth struct {
	verifier    *auth.Verifier
	logger      *log.Logger
	onAuthError func(r *http.Request, err APIError)
}

// AdminAuthConfig configures NewAdminAuth.
type AdminAuthConfig struct {
	Verifier *auth.Verifier
	Logger   *log.Logger
	// OnAuthError is called when a request is rejected (for logging/metrics)
	OnAuthError func(r *http.Request, err APIError)
}

// NewAdminAuth creates the admin middleware.
func NewAdminAuth(cfg AdminAuthConfig) *AdminAuth {
	return &AdminAuth{
		verifier:    cfg.Verifier,
		logger:      logging.Component(cfg.Logger, "auth"),
		onAuthError: cfg.OnAuthError,
	}
}

// Wrap wraps next with admin token extraction.
func (m *AdminAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.verifier.Enabled() {
			m.reject(w, r, ErrReloadDisabled)
			return
		}

		extracted := auth.Extract(r)
		if extracted.IsMalformed {
			m.logger.Warn("malformed admin token", "remote", r.RemoteAddr, "source", extracted.Source)
			m.reject(w, r, ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), adminTokenKey, extracted.Token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AdminAuth) reject(w http.ResponseWriter, r *http.Request, e APIError) {
	if m.onAuthError != nil {
		m.onAuthError(r, e)
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="faqbot"`)
	WriteError(w, e)
}
