package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"faqbot/internal/auth"
	"faqbot/internal/index"
	"faqbot/internal/middleware"
)

// MinQueryLength is the shortest accepted question, in characters.
const MinQueryLength = 2

var (
	errInvalidQuery = middleware.APIError{
		Code:    http.StatusUnprocessableEntity,
		Error:   "invalid_query",
		Message: "Pertanyaan minimal 2 karakter.",
	}
	errBadRequest = middleware.APIError{
		Code:    http.StatusBadRequest,
		Error:   "bad_request",
		Message: "Body harus JSON dengan field q.",
	}
	errMethodNotAllowed = middleware.APIError{
		Code:    http.StatusMethodNotAllowed,
		Error:   "method_not_allowed",
		Message: "Method not allowed",
	}
	errReloadInProgress = middleware.APIError{
		Code:    http.StatusConflict,
		Error:   "reload_in_progress",
		Message: "Reload sedang berjalan.",
	}
	errReloadFailed = middleware.APIError{
		Code:    http.StatusInternalServerError,
		Error:   "reload_failed",
		Message: "Reload gagal.",
	}
	errIndexUnavailable = middleware.APIError{
		Code:    http.StatusServiceUnavailable,
		Error:   "index_unavailable",
		Message: "Index belum siap.",
	}
)

type queryRequest struct {
	Q string `json:"q"`
}

// validQuery reports whether q is long enough to answer.
func validQuery(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= MinQueryLength
}

// handleChatbot handles GET /chatbot?q= and POST /chatbot {"q": "..."}
func (g *Gateway) handleChatbot(w http.ResponseWriter, r *http.Request) {
	var q string
	switch r.Method {
	case http.MethodGet:
		q = r.URL.Query().Get("q")
	case http.MethodPost:
		var req queryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			middleware.WriteError(w, errBadRequest)
			return
		}
		q = req.Q
	default:
		w.Header().Set("Allow", "GET, POST")
		middleware.WriteError(w, errMethodNotAllowed)
		return
	}

	if !validQuery(q) {
		middleware.WriteError(w, errInvalidQuery)
		return
	}

	resp, err := g.service.Answer(r.Context(), q)
	if err != nil {
		g.logger.Error("answer failed", "err", err, "request_id", middleware.GetRequestID(r.Context()))
		middleware.WriteError(w, errIndexUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleReload handles POST /reload. The token was extracted by AdminAuth.
func (g *Gateway) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		middleware.WriteError(w, errMethodNotAllowed)
		return
	}

	result, err := g.service.Reload(r.Context(), middleware.AdminToken(r.Context()))
	if err != nil {
		apiErr := reloadError(err)
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			g.observeAuthFailure(apiErr)
		}
		middleware.WriteError(w, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// reloadError maps a Service.Reload error to its HTTP response.
func reloadError(err error) middleware.APIError {
	switch {
	case errors.Is(err, auth.ErrReloadDisabled):
		return middleware.ErrReloadDisabled
	case errors.Is(err, auth.ErrInvalidToken):
		return middleware.ErrInvalidToken
	case errors.Is(err, index.ErrReloadInProgress):
		return errReloadInProgress
	default:
		return errReloadFailed
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
