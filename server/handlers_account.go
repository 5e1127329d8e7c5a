package server

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/users"
)

// sessionRow is one line of the devices list on the account page.
type sessionRow struct {
	Device     string
	SignedInAt string
	LastSeen   string
	Current    bool
	Finished   bool
}

// AccountHandler renders the account overview with the sessions list.
func (s *Server) AccountHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("account.html")
	if err != nil {
		panic("Failed to parse account template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			http.Redirect(w, r, router.URL(router.Login{}), http.StatusSeeOther)
			return
		}
		s.touchSession(r, repo, sess)

		sessions, err := repo.ListForUser(r.Context(), sess.User.ID)
		if err != nil {
			log.Err(err).Int64("user_id", sess.User.ID).Msg("listing sessions")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		_ = repo.Commit(r.Context())

		rows := make([]sessionRow, 0, len(sessions))
		for _, other := range sessions {
			row := sessionRow{
				Device:     formatUserAgent(other.UserAgent),
				SignedInAt: other.CreatedAt.Format("2 Jan 2006 15:04"),
				LastSeen:   "never",
				Current:    other.ID == sess.ID,
				Finished:   other.State() == session.StateFinished,
			}
			if other.LastActiveAt != nil {
				row.LastSeen = other.LastActiveAt.Format("2 Jan 2006 15:04")
			}
			rows = append(rows, row)
		}

		data := map[string]interface{}{
			"AppName":       s.config.GetAppName(),
			"Username":      sess.User.Username,
			"Email":         sess.User.Email,
			"EmailVerified": sess.User.EmailVerified,
			"Sessions":      rows,
			"PasswordURL":   router.URL(router.AccountPassword),
			"EmailsURL":     router.URL(router.AccountEmails),
			"LogoutURL":     router.URL(router.Logout),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// formatUserAgent turns a raw User-Agent header into a short device label
// for the sessions list, e.g. "Chrome on Mac OS X".
func formatUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}
	ua := useragent.New(raw)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	osName := ua.OSInfo().Name
	if osName == "" {
		osName = ua.Platform()
	}
	if osName == "" {
		return name
	}
	return name + " on " + osName
}

// passwordGates enforces the session and freshness requirements of the
// password change page. Changing a password demands a tighter freshness
// window than consent does.
func (s *Server) passwordGates(w http.ResponseWriter, r *http.Request) (*session.BrowserSession, bool) {
	repo, err := s.repos.Sessions.Begin(r.Context())
	if err != nil {
		log.Err(err).Msg("opening session repository")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
		return nil, false
	}
	defer func() { _ = repo.Cancel(r.Context()) }()

	sess := s.currentSession(r, repo)
	if sess == nil {
		http.Redirect(w, r, router.URL(router.LoginAndThen(router.ChangePassword())), http.StatusSeeOther)
		return nil, false
	}
	s.touchSession(r, repo, sess)

	last, err := repo.LastAuthentication(r.Context(), sess.ID)
	if err != nil {
		log.Err(err).Int64("session_id", sess.ID).Msg("loading last authentication")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
		return nil, false
	}
	_ = repo.Commit(r.Context())

	if !s.freshness.FreshForPasswordChange(last, time.Now()) {
		http.Redirect(w, r, router.URL(router.ReauthAndThen(router.ChangePassword())), http.StatusSeeOther)
		return nil, false
	}
	return sess, true
}

// AccountPasswordPageHandler renders the password change form.
func (s *Server) AccountPasswordPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("password.html")
	if err != nil {
		panic("Failed to parse password template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.passwordGates(w, r)
		if !ok {
			return
		}

		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Username":   sess.User.Username,
			"Error":      r.URL.Query().Get("error"),
			"FormAction": router.URL(router.AccountPassword),
			"AccountURL": router.URL(router.Account),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// AccountPasswordSubmitHandler applies a password change.
func (s *Server) AccountPasswordSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.passwordGates(w, r)
		if !ok {
			return
		}

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, router.AccountPassword, "Invalid form data")
			return
		}

		newPassword := r.FormValue("new_password")
		confirmPassword := r.FormValue("confirm_password")

		if newPassword != confirmPassword {
			redirectWithError(w, r, router.AccountPassword, "Passwords do not match")
			return
		}
		if err := users.ValidatePasswordStrength(newPassword); err != nil {
			redirectWithError(w, r, router.AccountPassword, err.Error())
			return
		}

		passwordHash, err := users.HashPassword(newPassword)
		if err != nil {
			log.Err(err).Msg("hashing password")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The password could not be changed.")
			return
		}
		if err := s.repos.Users.SetPassword(r.Context(), sess.User.ID, passwordHash); err != nil {
			log.Err(err).Int64("user_id", sess.User.ID).Msg("updating password")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The password could not be changed.")
			return
		}

		http.Redirect(w, r, router.URL(router.Account), http.StatusSeeOther)
	}
}

// emailRow is one address on the email management page.
type emailRow struct {
	ID        int64
	Address   string
	Confirmed bool
	Primary   bool
}

// AccountEmailsPageHandler renders the email management page.
func (s *Server) AccountEmailsPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("emails.html")
	if err != nil {
		panic("Failed to parse emails template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			http.Redirect(w, r, router.URL(router.Login{}), http.StatusSeeOther)
			return
		}
		s.touchSession(r, repo, sess)
		_ = repo.Commit(r.Context())

		emails, err := s.repos.Emails.ListForUser(r.Context(), sess.User.ID)
		if err != nil {
			log.Err(err).Int64("user_id", sess.User.ID).Msg("listing emails")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		rows := make([]emailRow, 0, len(emails))
		for _, e := range emails {
			rows = append(rows, emailRow{
				ID:        e.ID,
				Address:   e.Address,
				Confirmed: e.Confirmed(),
				Primary:   e.Address == sess.User.Email,
			})
		}

		q := r.URL.Query()
		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Username":   sess.User.Username,
			"Emails":     rows,
			"Error":      q.Get("error"),
			"Success":    q.Get("success"),
			"FormAction": router.URL(router.AccountEmails),
			"AccountURL": router.URL(router.Account),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// AccountEmailsSubmitHandler handles add, resend and remove actions on the
// email management page.
func (s *Server) AccountEmailsSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			http.Redirect(w, r, router.URL(router.Login{}), http.StatusSeeOther)
			return
		}
		s.touchSession(r, repo, sess)
		_ = repo.Commit(r.Context())

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, router.AccountEmails, "Invalid form data")
			return
		}

		switch r.FormValue("action") {
		case "add":
			s.addEmail(w, r, sess)
		case "resend":
			s.resendVerification(w, r, sess)
		case "remove":
			s.removeEmail(w, r, sess)
		default:
			redirectWithError(w, r, router.AccountEmails, "Unknown action")
		}
	}
}

func (s *Server) addEmail(w http.ResponseWriter, r *http.Request, sess *session.BrowserSession) {
	address := strings.TrimSpace(r.FormValue("address"))
	if _, err := mail.ParseAddress(address); err != nil {
		redirectWithError(w, r, router.AccountEmails, "Enter a valid email address")
		return
	}

	email := &users.Email{UserID: sess.User.ID, Address: address, CreatedAt: time.Now()}
	if err := s.repos.Emails.Add(r.Context(), email); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			redirectWithError(w, r, router.AccountEmails, "This address is already on your account")
			return
		}
		log.Err(err).Int64("user_id", sess.User.ID).Msg("adding email address")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The address could not be added.")
		return
	}

	if err := s.sendVerification(r.Context(), email); err != nil {
		log.Err(err).Str("address", address).Msg("queueing verification mail")
	}
	redirectWithSuccess(w, r, router.AccountEmails, "Verification email sent")
}

func (s *Server) resendVerification(w http.ResponseWriter, r *http.Request, sess *session.BrowserSession) {
	email, ok := s.ownedEmail(w, r, sess)
	if !ok {
		return
	}
	if email.Confirmed() {
		redirectWithError(w, r, router.AccountEmails, "This address is already confirmed")
		return
	}
	if err := s.sendVerification(r.Context(), email); err != nil {
		log.Err(err).Str("address", email.Address).Msg("queueing verification mail")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The email could not be queued.")
		return
	}
	redirectWithSuccess(w, r, router.AccountEmails, "Verification email sent")
}

func (s *Server) removeEmail(w http.ResponseWriter, r *http.Request, sess *session.BrowserSession) {
	email, ok := s.ownedEmail(w, r, sess)
	if !ok {
		return
	}
	if email.Address == sess.User.Email {
		redirectWithError(w, r, router.AccountEmails, "The primary address cannot be removed")
		return
	}
	if err := s.repos.Emails.Delete(r.Context(), email.ID); err != nil {
		if errors.Is(err, users.ErrEmailNotFound) {
			redirectWithError(w, r, router.AccountEmails, "Unknown address")
			return
		}
		log.Err(err).Int64("email_id", email.ID).Msg("removing email address")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The address could not be removed.")
		return
	}
	redirectWithSuccess(w, r, router.AccountEmails, "Address removed")
}

// ownedEmail resolves the email_id form value and checks it belongs to the
// signed-in user. Foreign and unknown IDs are indistinguishable on purpose.
func (s *Server) ownedEmail(w http.ResponseWriter, r *http.Request, sess *session.BrowserSession) (*users.Email, bool) {
	id, err := strconv.ParseInt(r.FormValue("email_id"), 10, 64)
	if err != nil {
		redirectWithError(w, r, router.AccountEmails, "Unknown address")
		return nil, false
	}
	email, err := s.repos.Emails.GetByID(r.Context(), id)
	if err != nil || email.UserID != sess.User.ID {
		if err != nil && !errors.Is(err, users.ErrEmailNotFound) {
			log.Err(err).Int64("email_id", id).Msg("loading email address")
		}
		redirectWithError(w, r, router.AccountEmails, "Unknown address")
		return nil, false
	}
	return email, true
}
