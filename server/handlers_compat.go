package server

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Error codes from the Matrix client-server API, which the compatibility
// endpoints speak.
const (
	errcodeForbidden       = "M_FORBIDDEN"
	errcodeUnknown         = "M_UNKNOWN"
	errcodeNotJSON         = "M_NOT_JSON"
	errcodeMissingToken    = "M_MISSING_TOKEN"
	errcodeUnknownToken    = "M_UNKNOWN_TOKEN"
	errcodeUserDeactivated = "M_USER_DEACTIVATED"
)

func writeCompatError(w http.ResponseWriter, errcode, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"errcode": errcode,
		"error":   message,
	})
}

// CompatLoginFlowsHandler advertises the supported login flows.
func (s *Server) CompatLoginFlowsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"flows": []map[string]string{{"type": "m.login.password"}},
		})
	}
}

type compatLoginRequest struct {
	Type       string `json:"type"`
	Identifier struct {
		Type string `json:"type"`
		User string `json:"user"`
	} `json:"identifier"`
	User     string `json:"user"` // legacy clients put the localpart here
	Password string `json:"password"`
}

// CompatLoginHandler performs a password login for Matrix clients. A
// successful login creates a regular browser session carrying a long lived
// compatibility token.
func (s *Server) CompatLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req compatLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeCompatError(w, errcodeNotJSON, "Malformed JSON body", http.StatusBadRequest)
			return
		}

		if req.Type != "m.login.password" {
			writeCompatError(w, errcodeUnknown, "Unsupported login type", http.StatusBadRequest)
			return
		}

		localpart := req.Identifier.User
		if localpart == "" {
			localpart = req.User
		}
		localpart = compatLocalpart(localpart)

		if localpart == "" || req.Password == "" {
			writeCompatError(w, errcodeForbidden, "Invalid username or password", http.StatusForbidden)
			return
		}

		user, err := s.repos.Users.GetByUsername(r.Context(), localpart)
		if err != nil {
			writeCompatError(w, errcodeForbidden, "Invalid username or password", http.StatusForbidden)
			return
		}
		if user.Blocked {
			writeCompatError(w, errcodeUserDeactivated, "This account has been deactivated", http.StatusForbidden)
			return
		}
		if !user.CheckPassword(req.Password) {
			writeCompatError(w, errcodeForbidden, "Invalid username or password", http.StatusForbidden)
			return
		}

		sess, err := s.signIn(r.Context(), user, r)
		if err != nil {
			log.Err(err).Msg("creating session for compat login")
			writeCompatError(w, errcodeUnknown, "Login failed", http.StatusInternalServerError)
			return
		}

		compatToken, err := s.issuer.IssueCompat(r.Context(), user.ID, sess.ID)
		if err != nil {
			log.Err(err).Msg("issuing compat token")
			writeCompatError(w, errcodeUnknown, "Login failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":       "@" + user.Username + ":" + s.serverName,
			"access_token":  compatToken.Token,
			"device_id":     newDeviceID(),
			"home_server":   s.serverName,
			"expires_in_ms": s.config.GetCompatTokenExpiry().Milliseconds(),
		})
	}
}

// compatLocalpart accepts either a bare localpart or a full user ID of the
// form @localpart:server and returns the localpart.
func compatLocalpart(identifier string) string {
	if !strings.HasPrefix(identifier, "@") {
		return identifier
	}
	trimmed := strings.TrimPrefix(identifier, "@")
	if i := strings.IndexByte(trimmed, ':'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}

func newDeviceID() string {
	buf := make([]byte, 5)
	_, _ = rand.Read(buf)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
}

// CompatLogoutHandler revokes the presented token and finishes the session
// behind it, which also kills any sibling tokens.
func (s *Server) CompatLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeCompatError(w, errcodeMissingToken, "Missing access token", http.StatusUnauthorized)
			return
		}

		stored, err := s.issuer.Active(r.Context(), tokenStr)
		if err != nil {
			log.Err(err).Msg("validating compat token")
			writeCompatError(w, errcodeUnknown, "Logout failed", http.StatusInternalServerError)
			return
		}
		if stored == nil {
			writeCompatError(w, errcodeUnknownToken, "Unrecognised access token", http.StatusUnauthorized)
			return
		}

		if stored.SessionID != 0 {
			repo, err := s.repos.Sessions.Begin(r.Context())
			if err != nil {
				log.Err(err).Msg("opening session repository")
				writeCompatError(w, errcodeUnknown, "Logout failed", http.StatusInternalServerError)
				return
			}
			defer func() { _ = repo.Cancel(r.Context()) }()

			if err := repo.Finish(r.Context(), stored.SessionID, time.Now()); err != nil {
				log.Err(err).Int64("session_id", stored.SessionID).Msg("finishing session")
			}
			if err := repo.Commit(r.Context()); err != nil {
				log.Err(err).Msg("committing session repository")
				writeCompatError(w, errcodeUnknown, "Logout failed", http.StatusInternalServerError)
				return
			}
			if err := s.issuer.RevokeForSession(r.Context(), stored.SessionID); err != nil {
				log.Err(err).Int64("session_id", stored.SessionID).Msg("revoking session tokens")
			}
		} else if err := s.issuer.Revoke(r.Context(), stored.Token); err != nil {
			log.Err(err).Msg("revoking compat token")
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte("{}\n"))
	}
}
