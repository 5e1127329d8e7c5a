package config

import "time"

type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPAccount() string
	GetSMTPPassword() string
	GetSMTPFrom() string
	GetVerificationTTL() time.Duration
}

var _ SMTPConfig = (*mainConfig)(nil)

func (c *mainConfig) GetSMTPHost() string {
	return c.vars.SMTPHost
}

func (c *mainConfig) GetSMTPPort() int {
	return c.vars.SMTPPort
}

func (c *mainConfig) GetSMTPAccount() string {
	return c.vars.SMTPAccount
}

func (c *mainConfig) GetSMTPPassword() string {
	return c.vars.SMTPPassword
}

// GetSMTPFrom is the From address on verification mail.
func (c *mainConfig) GetSMTPFrom() string {
	return c.vars.SMTPFrom
}

// GetVerificationTTL is how long a mailed verification code stays usable.
func (c *mainConfig) GetVerificationTTL() time.Duration {
	return c.vars.VerificationTTL
}
