package hub

import (
	"net/http"
	"strings"
)

// hubPathSegment is the route segment preceding the tenant token in the
// connect URL, e.g. /hub/ACME.
const hubPathSegment = "hub"

// TenantFromRequest derives the tenant token from a connection's initiating
// request path. Returns "" when the token is missing or malformed; callers
// treat absence as ineligible. The token is normalized so registry lookups
// are case-insensitive by construction.
func TenantFromRequest(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, p := range parts {
		if p == hubPathSegment && i+1 < len(parts) && parts[i+1] != "" {
			return NormalizeID(parts[i+1])
		}
	}
	return ""
}

// Session carries the per-connection metadata every hub operation needs:
// the transport-assigned connection id and the request that established the
// connection.
type Session struct {
	connectionID string
	request      *http.Request
}

// NewSession builds a session for a live connection.
func NewSession(connectionID string, r *http.Request) *Session {
	return &Session{connectionID: connectionID, request: r}
}

// ConnectionID returns the transport-assigned connection id.
func (s *Session) ConnectionID() string {
	return s.connectionID
}

// TenantID returns the normalized tenant token, or "" when none can be
// extracted.
func (s *Session) TenantID() string {
	if s == nil {
		return ""
	}
	return TenantFromRequest(s.request)
}

// Valid reports whether the session is eligible for stateful hub
// operations: request metadata attached, connection id present, and a
// tenant token extractable. Every stateful operation checks this first.
func (s *Session) Valid() bool {
	if s == nil || s.request == nil {
		return false
	}
	if s.connectionID == "" {
		return false
	}
	return s.TenantID() != ""
}
