// Package middleware provides the HTTP middleware of the faqbot gateway.
package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError pairs an HTTP status with an error body.
type APIError struct {
	Code    int
	Error   string
	Message string
}

// Errors shared by the middleware and the gateway handlers.
var (
	ErrReloadDisabled = APIError{
		Code:    http.StatusForbidden,
		Error:   "reload_disabled",
		Message: "Reload dimatikan (RELOAD_TOKEN tidak diset).",
	}
	ErrInvalidToken = APIError{
		Code:    http.StatusUnauthorized,
		Error:   "invalid_token",
		Message: "Token tidak valid.",
	}
	ErrRateLimited = APIError{
		Code:    http.StatusTooManyRequests,
		Error:   "rate_limit_exceeded",
		Message: "Rate limit exceeded. Try again later.",
	}
)

// WriteError writes e as a JSON error response with security headers set.
func WriteError(w http.ResponseWriter, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: e.Error, Message: e.Message})
}

// Chain applies mws so the first one is the outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
