package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/users"
)

// LoginPageHandler serves the login form. A browser that is already signed
// in skips the form and goes straight to wherever the continuation points.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("login.html")
	if err != nil {
		panic("Failed to parse login template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		login := router.LoginFromQuery(q)

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		if sess := s.currentSession(r, repo); sess != nil {
			s.touchSession(r, repo, sess)
			_ = repo.Commit(r.Context())
			http.Redirect(w, r, login.GoNext(), http.StatusSeeOther)
			return
		}

		data := map[string]interface{}{
			"AppName":     s.config.GetAppName(),
			"Error":       q.Get("error"),
			"Username":    q.Get("username"), // Preserve username on error
			"FormAction":  router.URL(login),
			"RegisterURL": router.URL(router.RegisterFromQuery(q)),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// LoginSubmitHandler processes the login form submission
func (s *Server) LoginSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		login := router.LoginFromQuery(r.URL.Query())

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, login, "Invalid form data")
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")

		if username == "" || password == "" {
			redirectWithErrorAndUsername(w, r, login, "Username and password are required", username)
			return
		}

		user, err := s.repos.Users.GetByUsername(r.Context(), username)
		if err != nil {
			if !errors.Is(err, users.ErrNotFound) {
				log.Err(err).Msg("looking up user for login")
			}
			// Don't reveal if the user exists or not
			redirectWithErrorAndUsername(w, r, login, "Login failed", username)
			return
		}

		if user.Blocked {
			redirectWithErrorAndUsername(w, r, login, "Account is blocked. Contact support.", username)
			return
		}

		if !user.CheckPassword(password) {
			redirectWithErrorAndUsername(w, r, login, "Login failed", username)
			return
		}

		sess, err := s.signIn(r.Context(), user, r)
		if err != nil {
			log.Err(err).Msg("creating browser session")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The sign-in could not be completed.")
			return
		}

		if err := s.setSessionCookie(w, r, sess.ID); err != nil {
			log.Err(err).Msg("sealing session cookie")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The sign-in could not be completed.")
			return
		}

		http.Redirect(w, r, login.GoNext(), http.StatusSeeOther)
	}
}

// LogoutHandler finishes the browser session and revokes every token minted
// through it.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		if sess := s.currentSession(r, repo); sess != nil {
			if err := repo.Finish(r.Context(), sess.ID, time.Now()); err != nil {
				log.Err(err).Int64("session_id", sess.ID).Msg("finishing session")
				renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The sign-out could not be completed.")
				return
			}
			if err := repo.Commit(r.Context()); err != nil {
				log.Err(err).Msg("committing session repository")
				renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The sign-out could not be completed.")
				return
			}
			if err := s.issuer.RevokeForSession(r.Context(), sess.ID); err != nil {
				log.Err(err).Int64("session_id", sess.ID).Msg("revoking session tokens")
			}
		}

		s.clearSessionCookie(w, r)
		http.Redirect(w, r, router.URL(router.Index), http.StatusSeeOther)
	}
}

// ReauthPageHandler asks an already signed-in user to re-enter their
// password, refreshing the session's authentication for actions that demand
// a recent one.
func (s *Server) ReauthPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("reauth.html")
	if err != nil {
		panic("Failed to parse reauth template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reauth := router.ReauthFromQuery(q)

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			// Not signed in at all; the full login keeps the continuation.
			http.Redirect(w, r, router.URL(router.LoginFromQuery(q)), http.StatusSeeOther)
			return
		}

		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Username":   sess.User.Username,
			"Error":      q.Get("error"),
			"FormAction": router.URL(reauth),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// ReauthSubmitHandler verifies the password and records a fresh
// authentication event on the current session.
func (s *Server) ReauthSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reauth := router.ReauthFromQuery(q)

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			http.Redirect(w, r, router.URL(router.LoginFromQuery(q)), http.StatusSeeOther)
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, reauth, "Invalid form data")
			return
		}

		password := r.FormValue("password")
		if password == "" {
			redirectWithError(w, r, reauth, "Password is required")
			return
		}
		if !sess.User.CheckPassword(password) {
			redirectWithError(w, r, reauth, "Password is incorrect")
			return
		}

		if _, err := repo.RecordAuthentication(r.Context(), sess.ID, time.Now()); err != nil {
			log.Err(err).Int64("session_id", sess.ID).Msg("recording authentication")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		s.touchSession(r, repo, sess)
		if err := repo.Commit(r.Context()); err != nil {
			log.Err(err).Msg("committing session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		http.Redirect(w, r, reauth.GoNext(), http.StatusSeeOther)
	}
}
