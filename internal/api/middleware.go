package api

// Middleware guarding the mutating admin endpoints with a bearer token.

import (
	"net/http"
	"strings"

	"github.com/tilevault/tilevault-go/internal/auth"
)

// AdminAuthMiddleware verifies the Authorization header against the
// configured admin token hash. An empty hash disables authentication,
// which is the expected setup for a single-user local install.
func (s *Server) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := s.app.Config().Admin.TokenHash
		if hash == "" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: Missing admin token")
			return
		}

		if !auth.CheckTokenHash(token, hash) {
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: Invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
