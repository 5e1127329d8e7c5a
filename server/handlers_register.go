package server

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/mailer"
	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/users"
)

// RegisterPageHandler serves the account registration form.
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("register.html")
	if err != nil {
		panic("Failed to parse register template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		reg := router.RegisterFromQuery(q)

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
			http.Redirect(w, r, reg.GoNext(), http.StatusSeeOther)
			return
		}

		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Error":      q.Get("error"),
			"Username":   q.Get("username"), // Preserve username on error
			"FormAction": router.URL(reg),
			"LoginURL":   router.URL(router.LoginFromQuery(q)),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
	}
}

// RegisterSubmitHandler creates the account, queues the verification mail
// and signs the new user in.
func (s *Server) RegisterSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reg := router.RegisterFromQuery(r.URL.Query())

		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, reg, "Invalid form data")
			return
		}

		username := strings.TrimSpace(r.FormValue("username"))
		address := strings.TrimSpace(r.FormValue("email"))
		password := r.FormValue("password")
		confirm := r.FormValue("confirm_password")

		if err := users.ValidateUsername(username); err != nil {
			redirectWithErrorAndUsername(w, r, reg, err.Error(), username)
			return
		}
		if _, err := mail.ParseAddress(address); err != nil {
			redirectWithErrorAndUsername(w, r, reg, "Enter a valid email address", username)
			return
		}
		if password != confirm {
			redirectWithErrorAndUsername(w, r, reg, "Passwords do not match", username)
			return
		}
		if err := users.ValidatePasswordStrength(password); err != nil {
			redirectWithErrorAndUsername(w, r, reg, err.Error(), username)
			return
		}

		passwordHash, err := users.HashPassword(password)
		if err != nil {
			log.Err(err).Msg("hashing password")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The registration could not be completed.")
			return
		}

		now := time.Now()
		user := &users.User{
			Username:     username,
			Email:        address,
			PasswordHash: passwordHash,
			CreatedAt:    now,
		}
		if err := s.repos.Users.Create(r.Context(), user); err != nil {
			switch {
			case errors.Is(err, users.ErrUsernameTaken):
				redirectWithErrorAndUsername(w, r, reg, "Username is already taken", username)
			case errors.Is(err, users.ErrEmailTaken):
				redirectWithErrorAndUsername(w, r, reg, "Email address is already registered", username)
			default:
				log.Err(err).Msg("creating user")
				renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The registration could not be completed.")
			}
			return
		}

		email := &users.Email{UserID: user.ID, Address: address, CreatedAt: now}
		if err := s.repos.Emails.Add(r.Context(), email); err != nil {
			log.Err(err).Int64("user_id", user.ID).Msg("storing email address")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The registration could not be completed.")
			return
		}

		// A failed queue write only delays verification; the address page
		// offers a resend.
		if err := s.sendVerification(r.Context(), email); err != nil {
			log.Err(err).Str("address", email.Address).Msg("queueing verification mail")
		}

		sess, err := s.signIn(r.Context(), user, r)
		if err != nil {
			log.Err(err).Msg("creating browser session")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The registration could not be completed.")
			return
		}
		if err := s.setSessionCookie(w, r, sess.ID); err != nil {
			log.Err(err).Msg("sealing session cookie")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The registration could not be completed.")
			return
		}

		http.Redirect(w, r, reg.GoNext(), http.StatusSeeOther)
	}
}

// sendVerification mints a fresh verification code for the address and
// queues the delivery.
func (s *Server) sendVerification(ctx context.Context, email *users.Email) error {
	now := time.Now()
	v := &users.Verification{
		Code:      users.NewVerificationCode(),
		EmailID:   email.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.GetVerificationTTL()),
	}
	if err := s.repos.Emails.CreateVerification(ctx, v); err != nil {
		return err
	}
	return s.repos.Mail.Enqueue(ctx, &mailer.QueuedMail{
		To:        email.Address,
		Code:      v.Code,
		VerifyURL: s.urls.RouteURL(router.VerifyEmail{Code: v.Code}),
		CreatedAt: now,
	})
}

// VerifyEmailHandler redeems the emailed verification link. Codes are single
// use; the first click wins and later ones see the already-used page.
func (s *Server) VerifyEmailHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("verify.html")
	if err != nil {
		panic("Failed to parse verify template: " + err.Error())
	}

	render := func(w http.ResponseWriter, verified bool, message string) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Verified":   verified,
			"Message":    message,
			"AccountURL": router.URL(router.Account),
		})
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		now := time.Now()

		v, err := s.repos.Emails.GetVerification(r.Context(), code)
		if err != nil {
			if errors.Is(err, users.ErrVerificationNotFound) {
				render(w, false, "This verification link is not valid.")
				return
			}
			log.Err(err).Msg("loading verification")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		if !v.Usable(now) {
			render(w, false, "This verification link has expired or was already used.")
			return
		}

		if err := s.repos.Emails.UseVerification(r.Context(), code, now); err != nil {
			log.Err(err).Msg("using verification")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		email, err := s.repos.Emails.GetByID(r.Context(), v.EmailID)
		if err != nil {
			log.Err(err).Int64("email_id", v.EmailID).Msg("loading email for verification")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		if err := s.repos.Emails.Confirm(r.Context(), email.ID, now); err != nil {
			log.Err(err).Int64("email_id", email.ID).Msg("confirming email")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		// Confirming the primary address flips the account level flag too.
		if user, err := s.repos.Users.GetByID(r.Context(), email.UserID); err == nil && user.Email == email.Address {
			if err := s.repos.Users.SetEmailVerified(r.Context(), user.ID, true); err != nil {
				log.Err(err).Int64("user_id", user.ID).Msg("marking user email verified")
			}
		}

		render(w, true, "Your email address has been verified.")
	}
}
