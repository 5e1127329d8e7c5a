package config

import "strings"

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetPublicBaseURL() string
	GetDatabasePath() string
	GetKeysDocumentPath() string
	GetClientsSeedPath() string
	GetEnv() string
}

var _ EnvConfig = (*mainConfig)(nil)

// GetPort returns the listen address, always with a leading colon.
func (c *mainConfig) GetPort() string {
	port := c.vars.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (c *mainConfig) GetAppName() string {
	return c.vars.AppName
}

// GetPublicBaseURL returns the base URL the service is reachable at
// (e.g. "https://id.example.com"). Used for the issuer and all absolute URLs.
func (c *mainConfig) GetPublicBaseURL() string {
	return c.vars.PublicBaseURL
}

func (c *mainConfig) GetDatabasePath() string {
	return c.vars.DatabasePath
}

func (c *mainConfig) GetKeysDocumentPath() string {
	return c.vars.KeysDocumentPath
}

func (c *mainConfig) GetClientsSeedPath() string {
	return c.vars.ClientsSeedPath
}

func (c *mainConfig) GetEnv() string {
	return c.vars.Environment
}
