package oauth2

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard token endpoint response format as defined in RFC 6749.
type TokenResponse struct {
	// AccessToken is the opaque token used to access protected resources.
	// Usage: include in the Authorization header as "Bearer <access_token>".
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType is always "Bearer" in this implementation.
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in,omitempty"`

	// RefreshToken obtains new access tokens without re-authentication.
	// Rotated on each use.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of granted permissions. May be less
	// than requested.
	Scope string `json:"scope,omitempty"`
}

// TokenRequest holds the parameters of a token endpoint call, form-encoded
// in the request body.
type TokenRequest struct {
	// GrantType selects the exchange: authorization_code or refresh_token.
	GrantType GrantType

	// ClientID and ClientSecret authenticate the client, via Basic auth or
	// body parameters.
	ClientID     string
	ClientSecret string

	// Code is the authorization code being redeemed. Required for the
	// authorization_code grant; spent on first use.
	Code string

	// RedirectURI must match the one used at the authorization endpoint.
	RedirectURI string

	// CodeVerifier is the PKCE verifier. Accepted and ignored; this server
	// does not verify PKCE.
	CodeVerifier string

	// RefreshToken is required for the refresh_token grant.
	RefreshToken string
}
