package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/graphql"
)

// GraphQLHandler serves the read-only session query API. Queries run as the
// signed-in user, so the surface stays closed without a session cookie.
func (s *Server) GraphQLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphql.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Malformed request body", http.StatusBadRequest)
			return
		}

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			writeJSONError(w, "server_error", "Storage unavailable", http.StatusInternalServerError)
			return
		}
		sess := s.currentSession(r, repo)
		// Resolvers open their own units of work, so this one must end
		// before execution starts.
		_ = repo.Cancel(r.Context())

		if sess == nil {
			writeJSONError(w, "access_denied", "Sign-in required", http.StatusUnauthorized)
			return
		}

		result := s.gql.Execute(r.Context(), sess.User.ID, req)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(result)
	}
}
