package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"faqbot/internal/logging"
	"faqbot/internal/ratelimit"

	"github.com/charmbracelet/log"
)

// RateLimitConfig is one per-IP tier.
type RateLimitConfig struct {
	Name            string // tier name used in logs, e.g. "query"
	Window          time.Duration
	MaxRequests     int
	CleanupInterval time.Duration
	Enabled         bool
}

// RateLimit limits requests per client IP with a sliding window.
type RateLimit struct {
	limiter  *ratelimit.SlidingWindow
	cfg      RateLimitConfig
	logger   *log.Logger
	onLimit  func(r *http.Request, tier string)
	disabled bool
}

// NewRateLimit creates a rate limiting middleware. onLimit may be nil.
func NewRateLimit(cfg RateLimitConfig, logger *log.Logger, onLimit func(r *http.Request, tier string)) *RateLimit {
	m := &RateLimit{
		cfg:      cfg,
		logger:   logging.Component(logger, "ratelimit"),
		onLimit:  onLimit,
		disabled: !cfg.Enabled,
	}
	if m.disabled {
		return m
	}

	cleanup := cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = 60 * time.Second
	}
	m.limiter = ratelimit.NewSlidingWindow(cfg.Window, cfg.MaxRequests, cleanup)
	return m
}

// Wrap wraps next with rate limiting.
func (m *RateLimit) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		d := m.limiter.Allow(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

		if !d.Allowed {
			if m.onLimit != nil {
				m.onLimit(r, m.cfg.Name)
			}
			m.logger.Warn("rate limit exceeded",
				"tier", m.cfg.Name, "method", r.Method, "path", r.URL.Path, "client", sanitizeIP(ip))
			w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
			WriteError(w, ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Stop releases the limiter's cleanup goroutine.
func (m *RateLimit) Stop() {
	if m.limiter != nil {
		m.limiter.Stop()
	}
}

// Stats returns limiter statistics; the zero value when disabled.
func (m *RateLimit) Stats() ratelimit.Stats {
	if m.limiter == nil {
		return ratelimit.Stats{}
	}
	return m.limiter.GetStats()
}

// extractClientIP returns the client IP, honoring X-Forwarded-For and
// X-Real-IP set by a reverse proxy.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitizeIP masks the host part of an address for logging.
func sanitizeIP(identifier string) string {
	ip := net.ParseIP(identifier)
	if ip == nil {
		return "IP_ADDR"
	}
	if v4 := ip.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.*.*", v4[0], v4[1])
	}
	return strings.Split(identifier, ":")[0] + "::*"
}
