// Package clients models the OAuth2 relying parties registered with the
// provider, whether seeded from configuration or through dynamic client
// registration.
package clients

import (
	"net/url"
	"strings"
	"time"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

type Client struct {
	ID           string     `json:"id"`
	Type         ClientType `json:"type"` // public or confidential
	Name         string     `json:"name"` // Shown on the consent page
	Secret       string     `json:"secret,omitempty"`
	RedirectURIs []string   `json:"redirectURIs"`
	Scopes       []string   `json:"scopes,omitempty"` // Allowed scopes; empty means any
	LogoURI      string     `json:"logoURI,omitempty"`
	TOSURI       string     `json:"tosURI,omitempty"`
	PolicyURI    string     `json:"policyURI,omitempty"`
	CreatedAt    time.Time  `json:"createdAt,omitempty"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// CheckSecret verifies the presented secret. Public clients present none.
func (c *Client) CheckSecret(secret string) bool {
	if c.IsPublic() {
		return secret == ""
	}
	return c.Secret != "" && c.Secret == secret
}

// HasScope checks if the client has permission for a specific scope.
// A client registered without scopes may request anything.
func (c *Client) HasScope(scope string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requestedScopes string) error {
	for _, scope := range strings.Fields(requestedScopes) {
		if !c.HasScope(scope) {
			return ErrInvalidScope
		}
	}
	return nil
}

// ValidateRedirectURI checks a redirect URI at registration time: absolute
// http(s), no fragment.
func ValidateRedirectURI(redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return ErrInvalidRedirectURI
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidRedirectURI
	}
	if u.Host == "" || u.Fragment != "" {
		return ErrInvalidRedirectURI
	}
	return nil
}

// Registration is the metadata document submitted to the dynamic client
// registration endpoint (RFC 7591 subset).
type Registration struct {
	RedirectURIs []string `json:"redirect_uris"`
	ClientName   string   `json:"client_name,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	LogoURI      string   `json:"logo_uri,omitempty"`
	TOSURI       string   `json:"tos_uri,omitempty"`
	PolicyURI    string   `json:"policy_uri,omitempty"`

	// TokenEndpointAuthMethod selects public ("none") vs confidential
	// ("client_secret_basic"/"client_secret_post", the default).
	TokenEndpointAuthMethod string `json:"token_endpoint_auth_method,omitempty"`
}

// Validate checks the registration document.
func (r *Registration) Validate() error {
	if len(r.RedirectURIs) == 0 {
		return ErrNoRedirectURIs
	}
	for _, uri := range r.RedirectURIs {
		if err := ValidateRedirectURI(uri); err != nil {
			return err
		}
	}
	switch r.TokenEndpointAuthMethod {
	case "", "none", "client_secret_basic", "client_secret_post":
	default:
		return ErrInvalidAuthMethod
	}
	return nil
}

// NewClient builds a Client from a validated registration document. The
// caller supplies the generated id and, for confidential clients, the
// secret.
func NewClient(reg Registration, id, secret string, now time.Time) *Client {
	clientType := ClientTypeConfidential
	if reg.TokenEndpointAuthMethod == "none" {
		clientType = ClientTypePublic
		secret = ""
	}
	return &Client{
		ID:           id,
		Type:         clientType,
		Name:         reg.ClientName,
		Secret:       secret,
		RedirectURIs: reg.RedirectURIs,
		Scopes:       strings.Fields(reg.Scope),
		LogoURI:      reg.LogoURI,
		TOSURI:       reg.TOSURI,
		PolicyURI:    reg.PolicyURI,
		CreatedAt:    now,
	}
}
