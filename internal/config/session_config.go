package config

import "time"

type SessionConfig interface {
	GetSessionSecret() string
	GetPasswordChangeMaxAge() time.Duration
	GetConsentMaxAge() time.Duration
	GetFinishedSessionRetention() time.Duration
}

var _ SessionConfig = (*mainConfig)(nil)

// GetSessionSecret is the key sealing the browser session cookie. Empty in
// development; the server falls back to a generated one and warns.
func (c *mainConfig) GetSessionSecret() string {
	return c.vars.SessionSecret
}

// GetPasswordChangeMaxAge is how recent the last credential entry must be
// before the password form is shown without re-authentication.
func (c *mainConfig) GetPasswordChangeMaxAge() time.Duration {
	return c.vars.PasswordChangeMaxAge
}

// GetConsentMaxAge is the equivalent window for the consent page.
func (c *mainConfig) GetConsentMaxAge() time.Duration {
	return c.vars.ConsentMaxAge
}

// GetFinishedSessionRetention is how long finished sessions are kept before
// the worker prunes them.
func (c *mainConfig) GetFinishedSessionRetention() time.Duration {
	return c.vars.FinishedSessionRetention
}
