package config

import "time"

type OAuthConfig interface {
	GetAuthCodeTimeout() time.Duration
	GetTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetCompatTokenExpiry() time.Duration
}

var _ OAuthConfig = (*mainConfig)(nil)

// GetAuthCodeTimeout is how long an unfulfilled authorization grant lives
// before the worker prunes it.
func (c *mainConfig) GetAuthCodeTimeout() time.Duration {
	return c.vars.AuthCodeTimeout
}

// GetTokenLength is the number of random bytes in an opaque token.
func (c *mainConfig) GetTokenLength() int {
	return c.vars.TokenLength
}

func (c *mainConfig) GetAccessTokenExpiry() time.Duration {
	return c.vars.AccessTokenExpiry
}

func (c *mainConfig) GetRefreshTokenExpiry() time.Duration {
	return c.vars.RefreshTokenExpiry
}

// GetCompatTokenExpiry applies to tokens issued through the Matrix
// compatibility login.
func (c *mainConfig) GetCompatTokenExpiry() time.Duration {
	return c.vars.CompatTokenExpiry
}
