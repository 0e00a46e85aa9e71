package authserver

import (
	"net/http"
	"strings"
)

// RequireToken is the resource guard: middleware that validates the bearer
// token on every request before the protected handler runs. It covers the
// whole protected surface uniformly; there is no path that bypasses it.
//
// Failures are reported as 401 with an RFC 6750 invalid_token error body and
// a WWW-Authenticate hint. The check is side-effect free.
func (h *Handler) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeUnauthorized(w, "Missing or invalid access token")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			h.writeUnauthorized(w, "Missing or invalid access token")
			return
		}

		_, err := h.server.Store().GetAccessToken(parts[1])
		switch err {
		case nil:
			// Token is valid
		case ErrTokenExpired:
			h.writeUnauthorized(w, "Access token expired")
			return
		default:
			h.writeUnauthorized(w, "Invalid access token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeUnauthorized writes a 401 invalid_token error with a
// WWW-Authenticate: Bearer header (RFC 6750 Section 3).
func (h *Handler) writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	writeJSON(w, http.StatusUnauthorized, &Error{
		Code:        ErrorCodeInvalidToken,
		Description: description,
	})
}
