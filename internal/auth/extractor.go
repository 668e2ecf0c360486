// Package auth gates administrative operations behind a pre-shared secret.
package auth

import (
	"net/http"
	"strings"
)

// AdminTokenHeader carries the reload secret.
const AdminTokenHeader = "X-ADMIN-TOKEN"

// TokenSource indicates where a token was extracted from
type TokenSource int

const (
	TokenSourceNone TokenSource = iota
	TokenSourceAdminHeader
	TokenSourceBearerHeader
)

// String returns the human-readable name of the token source
func (s TokenSource) String() string {
	switch s {
	case TokenSourceAdminHeader:
		return "admin_header"
	case TokenSourceBearerHeader:
		return "bearer_header"
	default:
		return "none"
	}
}

// ExtractedToken is the presented token and where it came from.
type ExtractedToken struct {
	Token  string
	Source TokenSource
	// IsMalformed is set when a header was present but carried no token
	IsMalformed bool
}

// Extract returns the admin token of r. X-ADMIN-TOKEN is checked first,
// then "Authorization: Bearer <token>".
func Extract(r *http.Request) ExtractedToken {
	if result := extractFromAdminHeader(r); result.Token != "" || result.IsMalformed {
		return result
	}
	if result := extractFromBearerHeader(r); result.Token != "" || result.IsMalformed {
		return result
	}
	return ExtractedToken{Source: TokenSourceNone}
}

func extractFromAdminHeader(r *http.Request) ExtractedToken {
	values, ok := r.Header[http.CanonicalHeaderKey(AdminTokenHeader)]
	if !ok || len(values) == 0 {
		return ExtractedToken{}
	}
	token := strings.TrimSpace(values[0])
	if token == "" {
		return ExtractedToken{Source: TokenSourceAdminHeader, IsMalformed: true}
	}
	return ExtractedToken{Token: token, Source: TokenSourceAdminHeader}
}

// extractFromBearerHeader extracts token from Authorization: Bearer <token>
func extractFromBearerHeader(r *http.Request) ExtractedToken {
	header := r.Header.Get("Authorization")

	// Case-insensitive per RFC 7235
	const bearerPrefix = "Bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ExtractedToken{}
	}

	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return ExtractedToken{Source: TokenSourceBearerHeader, IsMalformed: true}
	}
	return ExtractedToken{Token: token, Source: TokenSourceBearerHeader}
}
