package server

import (
	"crypto/rand"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	sessionCookieName   = "ident_session"
	sessionCookieMaxAge = 30 * 24 * 3600 // 30 days
)

// sessionCookies seals browser session IDs into signed cookie values so a
// tampered cookie never reaches the database.
type sessionCookies struct {
	secret []byte
}

func newSessionCookies(secret string) (*sessionCookies, error) {
	if secret == "" {
		generated := make([]byte, 32)
		if _, err := rand.Read(generated); err != nil {
			return nil, errors.Wrap(err, "[newSessionCookies] generating secret")
		}
		log.Printf("SESSION_SECRET not set, using a generated secret; sessions will not survive a restart\n")
		return &sessionCookies{secret: generated}, nil
	}
	return &sessionCookies{secret: []byte(secret)}, nil
}

func (c *sessionCookies) seal(sessionID int64, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  strconv.FormatInt(sessionID, 10),
		IssuedAt: jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "[sessionCookies.seal] signing")
	}
	return signed, nil
}

func (c *sessionCookies) open(value string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "[sessionCookies.open] parsing")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "[sessionCookies.open] subject")
	}
	return id, nil
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID int64) error {
	value, err := s.cookies.seal(sessionID, time.Now())
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionIDFromRequest returns the session ID carried by the cookie, or false
// when the cookie is absent or fails verification.
func (s *Server) sessionIDFromRequest(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return 0, false
	}
	id, err := s.cookies.open(cookie.Value)
	if err != nil {
		return 0, false
	}
	return id, true
}
