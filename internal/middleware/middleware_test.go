package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"faqbot/internal/auth"
	"faqbot/internal/logging"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ErrInvalidToken)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, ErrorBody{Error: "invalid_token", Message: "Token tidak valid."}, decodeError(t, rr))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestAdminAuth(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AdminToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled", func(t *testing.T) {
		var rejected []APIError
		m := NewAdminAuth(AdminAuthConfig{
			Verifier:    auth.NewVerifier("", ""),
			Logger:      logging.Discard(),
			OnAuthError: func(_ *http.Request, e APIError) { rejected = append(rejected, e) },
		})
		req := httptest.NewRequest(http.MethodPost, "/reload", nil)
		req.Header.Set(auth.AdminTokenHeader, "anything")
		rr := httptest.NewRecorder()
		m.Wrap(inner).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Reload dimatikan (RELOAD_TOKEN tidak diset).", decodeError(t, rr).Message)
		assert.Equal(t, []APIError{ErrReloadDisabled}, rejected)
	})

	t.Run("malformed header", func(t *testing.T) {
		m := NewAdminAuth(AdminAuthConfig{Verifier: auth.NewVerifier("s3cret", ""), Logger: logging.Discard()})
		req := httptest.NewRequest(http.MethodPost, "/reload", nil)
		req.Header.Set("Authorization", "Bearer   ")
		rr := httptest.NewRecorder()
		m.Wrap(inner).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, `Bearer realm="faqbot"`, rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("token passed through", func(t *testing.T) {
		seen = ""
		m := NewAdminAuth(AdminAuthConfig{Verifier: auth.NewVerifier("s3cret", ""), Logger: logging.Discard()})
		req := httptest.NewRequest(http.MethodPost, "/reload", nil)
		req.Header.Set(auth.AdminTokenHeader, "presented")
		rr := httptest.NewRecorder()
		m.Wrap(inner).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "presented", seen)
	})

	t.Run("missing token reaches handler", func(t *testing.T) {
		seen = "unset"
		m := NewAdminAuth(AdminAuthConfig{Verifier: auth.NewVerifier("s3cret", ""), Logger: logging.Discard()})
		rr := httptest.NewRecorder()
		m.Wrap(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reload", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "", seen)
	})
}

func TestRateLimit(t *testing.T) {
	var limited []string
	m := NewRateLimit(RateLimitConfig{
		Name:        "query",
		Window:      time.Minute,
		MaxRequests: 2,
		Enabled:     true,
	}, logging.Discard(), func(_ *http.Request, tier string) { limited = append(limited, tier) })
	defer m.Stop()

	h := m.Wrap(okHandler())
	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/chatbot?q=hai", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := send("10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	blocked := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeError(t, blocked).Error)
	assert.Equal(t, []string{"query"}, limited)

	// other clients have their own window
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
	assert.Equal(t, 2, m.Stats().ActiveBuckets)
}

func TestRateLimitDisabled(t *testing.T) {
	m := NewRateLimit(RateLimitConfig{Enabled: false}, logging.Discard(), nil)
	defer m.Stop()

	h := m.Wrap(okHandler())
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
	assert.Zero(t, m.Stats().ActiveBuckets)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.5"},
		{"invalid forwarded falls back", map[string]string{"X-Forwarded-For": "garbage"}, "192.0.2.9:80", "192.0.2.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:80", "198.51.100.7"},
		{"no port", nil, "192.0.2.3", "192.0.2.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}

func TestSanitizeIP(t *testing.T) {
	assert.Equal(t, "192.168.*.*", sanitizeIP("192.168.10.20"))
	assert.Equal(t, "2001::*", sanitizeIP("2001:db8::1"))
	assert.Equal(t, "IP_ADDR", sanitizeIP("not-an-ip"))
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rr.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, fromCtx)

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, incoming, rr.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", rr.Header().Get(RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Formatter: log.LogfmtFormatter})

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}), RequestID, AccessLog(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/chatbot", nil))

	line := buf.String()
	assert.Contains(t, line, "path=/chatbot")
	assert.Contains(t, line, "status=418")
	assert.Contains(t, line, "bytes=15")
	assert.Contains(t, line, "request_id=")
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		h := CORS([]string{"*"})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/chatbot", nil)
		req.Header.Set("Origin", "https://example.com")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("listed origin", func(t *testing.T) {
		h := CORS([]string{"https://malakatech.id/"})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/chatbot", nil)
		req.Header.Set("Origin", "https://malakatech.id")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "https://malakatech.id", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rr.Header().Get("Vary"))
	})

	t.Run("unlisted origin", func(t *testing.T) {
		h := CORS([]string{"https://malakatech.id"})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/chatbot", nil)
		req.Header.Set("Origin", "https://evil.example")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		h := CORS([]string{"*"})(okHandler())
		req := httptest.NewRequest(http.MethodOptions, "/reload", nil)
		req.Header.Set("Origin", "https://example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "X-ADMIN-TOKEN"))
	})
}
