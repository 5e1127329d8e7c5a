package oauth2

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-ident-server/clients"
)

// AuthorizationRequest holds the parameters of an authorization request.
// These arrive as query parameters at the /authorize endpoint.
type AuthorizationRequest struct {
	// ClientID identifies the application requesting authorization.
	// Required. Validated against the registered clients.
	ClientID string

	// ResponseType specifies what the authorization endpoint should return.
	// Required. Only "code" is supported.
	ResponseType ResponseType

	// RedirectURI is where the authorization response will be sent.
	// Required. Must exactly match a pre-registered URI to prevent open
	// redirects.
	RedirectURI string

	// ResponseMode controls how the response is returned (query/fragment/form_post).
	// Optional, defaults to "query" for the code flow.
	ResponseMode ResponseModeType

	// Scope is the space-separated list of permissions being requested.
	// Optional, typically includes "openid" for OIDC.
	Scope string

	// State is an opaque client value echoed back on the redirect.
	// Recommended, CSRF protection for the client.
	State string

	// Nonce associates the client session with the issued identity.
	// Optional, echoed into the token response untouched.
	Nonce string

	// CodeChallenge and CodeChallengeMethod are PKCE parameters. They are
	// stored and echoed opaquely; this server does not verify them.
	CodeChallenge       string
	CodeChallengeMethod string

	// LoginHint pre-fills the username on the login page. Never trusted,
	// only used for UI pre-population.
	LoginHint string
}

// ParseAuthorizationRequest reads an AuthorizationRequest from the query
// parameters of an /authorize call. No validation happens here; call
// Validate with the resolved client.
func ParseAuthorizationRequest(q url.Values) AuthorizationRequest {
	return AuthorizationRequest{
		ClientID:            q.Get("client_id"),
		ResponseType:        ResponseType(q.Get("response_type")),
		RedirectURI:         q.Get("redirect_uri"),
		ResponseMode:        ResponseModeType(q.Get("response_mode")),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		LoginHint:           q.Get("login_hint"),
	}
}

// Validate checks the request against the registered client.
func (p *AuthorizationRequest) Validate(client *clients.Client) error {
	if strings.TrimSpace(p.ClientID) == "" {
		return ErrMissingClientID
	}
	if !redirectValidForClient(p.RedirectURI, client) {
		return ErrInvalidRedirectURI
	}
	if !responseModeValid(p.ResponseMode) {
		return ErrInvalidResponseMode
	}
	if !responseTypeValid(p.ResponseType) {
		return ErrInvalidResponseType
	}
	if err := ValidateScope(p.Scope); err != nil {
		return err
	}
	return nil
}

func responseModeValid(responseMode ResponseModeType) bool {
	if strings.TrimSpace(string(responseMode)) == "" {
		return true
	}
	switch responseMode {
	case QueryResponseMode, FormPostResponseMode, FragmentResponseMode:
		return true
	}
	return false
}

func responseTypeValid(responseType ResponseType) bool {
	return responseType == CodeResponseType
}

func redirectValidForClient(redirectURI string, client *clients.Client) bool {
	if strings.TrimSpace(redirectURI) == "" {
		return false
	}
	for _, uri := range client.RedirectURIs {
		if redirectURI == uri {
			return true
		}
	}
	return false
}

// ValidateScope checks the scope string against the RFC 6749 character set:
// space-separated tokens of printable ASCII excluding '"' and '\'.
func ValidateScope(scope string) error {
	for _, c := range scope {
		if c == ' ' {
			continue
		}
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return ErrInvalidScope
		}
	}
	return nil
}
