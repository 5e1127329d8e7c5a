package server

import (
	"context"
	"encoding/json"
	"html/template"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/oauth2"
	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/users"
)

// Shared templates used from several handlers.
var (
	errorTemplate    = template.Must(ParseTemplate("error.html"))
	formPostTemplate = template.Must(ParseTemplate("form_post.html"))
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("index.html")
	if err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"AccountURL": router.URL(router.Account),
			"LoginURL":   router.URL(router.Login{}),
			"LogoutURL":  router.URL(router.Logout),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	}
}

// HealthcheckHandler reports liveness, probing the database when one is
// wired.
func (s *Server) HealthcheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if s.repos.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.repos.DB.PingContext(ctx); err != nil {
				log.Err(err).Msg("healthcheck database probe failed")
				status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

// writeJSONError writes an OAuth2 error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// renderErrorPage renders the shared error page with the given status.
func renderErrorPage(w http.ResponseWriter, statusCode int, title, detail string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = errorTemplate.Execute(w, map[string]interface{}{
		"Title":  title,
		"Detail": detail,
	})
}

// redirectWithError sends the browser back to a form page with the error in
// the query, keeping any continuation parameters the route already carries.
func redirectWithError(w http.ResponseWriter, r *http.Request, rt router.Route, errorMsg string) {
	redirectWithErrorAndUsername(w, r, rt, errorMsg, "")
}

// redirectWithErrorAndUsername additionally preserves the typed username so
// the form can be re-filled.
func redirectWithErrorAndUsername(w http.ResponseWriter, r *http.Request, rt router.Route, errorMsg, username string) {
	q, err := url.ParseQuery(rt.Query())
	if err != nil {
		q = url.Values{}
	}
	q.Set("error", errorMsg)
	if username != "" {
		q.Set("username", username)
	}
	http.Redirect(w, r, rt.Path()+"?"+q.Encode(), http.StatusSeeOther)
}

// redirectWithSuccess is the happy path counterpart of redirectWithError.
func redirectWithSuccess(w http.ResponseWriter, r *http.Request, rt router.Route, message string) {
	q, err := url.ParseQuery(rt.Query())
	if err != nil {
		q = url.Values{}
	}
	q.Set("success", message)
	http.Redirect(w, r, rt.Path()+"?"+q.Encode(), http.StatusSeeOther)
}

// currentSession resolves the session cookie inside the given unit of work.
// It returns nil when the browser is not signed in or the session has been
// finished.
func (s *Server) currentSession(r *http.Request, repo session.Repo) *session.BrowserSession {
	id, ok := s.sessionIDFromRequest(r)
	if !ok {
		return nil
	}
	sess, err := repo.Get(r.Context(), id)
	if err != nil || !sess.Active() {
		return nil
	}
	return sess
}

// touchSession records the request origin against the session. Failures only
// cost bookkeeping, so they are logged and swallowed.
func (s *Server) touchSession(r *http.Request, repo session.Repo, sess *session.BrowserSession) {
	addr := clientAddr(r)
	if !addr.IsValid() {
		return
	}
	if err := repo.Touch(r.Context(), sess.ID, addr, time.Now()); err != nil {
		log.Err(err).Int64("session_id", sess.ID).Msg("touching session")
	}
}

func clientAddr(r *http.Request) netip.Addr {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}

// signIn opens a unit of work, creates the browser session with its first
// authentication event and commits it. The caller still sets the cookie.
func (s *Server) signIn(ctx context.Context, user *users.User, r *http.Request) (*session.BrowserSession, error) {
	repo, err := s.repos.Sessions.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = repo.Cancel(ctx) }()

	now := time.Now()
	sess := &session.BrowserSession{
		User:      *user,
		CreatedAt: now,
		UserAgent: r.UserAgent(),
	}
	if addr := clientAddr(r); addr.IsValid() {
		sess.LastActiveIP = addr
		sess.LastActiveAt = &now
	}

	if err := repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	if _, err := repo.RecordAuthentication(ctx, sess.ID, now); err != nil {
		return nil, err
	}
	if err := repo.Commit(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// callbackRedirect returns the authorization result to the client's redirect
// URI, honouring the response mode the grant was created with.
func (s *Server) callbackRedirect(w http.ResponseWriter, r *http.Request, redirectURI string, responseMode oauth2.ResponseModeType, params url.Values) {
	switch responseMode {
	case oauth2.FragmentResponseMode:
		http.Redirect(w, r, redirectURI+"#"+params.Encode(), http.StatusSeeOther)

	case oauth2.FormPostResponseMode:
		fields := make(map[string]string, len(params))
		for key := range params {
			fields[key] = params.Get(key)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = formPostTemplate.Execute(w, map[string]interface{}{
			"RedirectURI": redirectURI,
			"Fields":      fields,
		})

	default: // query
		target, err := url.Parse(redirectURI)
		if err != nil {
			renderErrorPage(w, http.StatusBadRequest, "Invalid redirect", "The client's redirect URI could not be parsed.")
			return
		}
		q := target.Query()
		for key := range params {
			q.Set(key, params.Get(key))
		}
		target.RawQuery = q.Encode()
		http.Redirect(w, r, target.String(), http.StatusSeeOther)
	}
}
