package session

import "time"

// Default freshness windows. Password changes demand a recent credential
// entry; consent tolerates an older one.
const (
	DefaultPasswordChangeMaxAge = 5 * time.Minute
	DefaultConsentMaxAge        = time.Hour
)

// Policy holds the per-action maximum ages for skipping re-authentication.
type Policy struct {
	PasswordChangeMaxAge time.Duration
	ConsentMaxAge        time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PasswordChangeMaxAge: DefaultPasswordChangeMaxAge,
		ConsentMaxAge:        DefaultConsentMaxAge,
	}
}

// FreshEnough reports whether the most recent authentication happened no
// longer than maxAge before now. A session that has never recorded an
// authentication is never fresh, so lastAuth == nil always returns false.
func FreshEnough(lastAuth *Authentication, maxAge time.Duration, now time.Time) bool {
	if lastAuth == nil {
		return false
	}
	return now.Sub(lastAuth.CreatedAt) <= maxAge
}

// FreshForPasswordChange applies the password change window.
func (p Policy) FreshForPasswordChange(lastAuth *Authentication, now time.Time) bool {
	return FreshEnough(lastAuth, p.PasswordChangeMaxAge, now)
}

// FreshForConsent applies the consent window.
func (p Policy) FreshForConsent(lastAuth *Authentication, now time.Time) bool {
	return FreshEnough(lastAuth, p.ConsentMaxAge, now)
}
