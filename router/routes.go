// Package router declares the typed endpoint descriptors of the identity
// provider and turns them into canonical paths, query strings and absolute
// URLs. Handlers redirect between interactive steps exclusively through these
// descriptors so that no URL is ever assembled by hand.
package router

import (
	"net/url"
	"strconv"
)

// Route is implemented by every endpoint descriptor. Path returns the
// concrete absolute path with any parameters substituted; Query returns the
// encoded query string without the leading '?', empty when the route carries
// no query payload.
type Route interface {
	Path() string
	Query() string
}

// URL renders the canonical relative URL for a route: the path, plus the
// query string when one exists.
func URL(r Route) string {
	if q := r.Query(); q != "" {
		return r.Path() + "?" + q
	}
	return r.Path()
}

// ServeMux patterns for the parameterized routes. Simple routes register
// with their Path() directly, except Index, whose "/" path would otherwise
// swallow every unmatched request.
const (
	PatternIndex                      = "/{$}"
	PatternVerifyEmail                = "/verify/{code}"
	PatternContinueAuthorizationGrant = "/authorize/{grantID}"
	PatternConsent                    = "/consent/{grantID}"
	PatternCompatLogin                = "/_matrix/client/{version}/login"
	PatternCompatLogout               = "/_matrix/client/{version}/logout"
)

// simple is the capability level for fixed-path routes: no path parameters,
// no query payload.
type simple string

func (s simple) Path() string { return string(s) }
func (simple) Query() string { return "" }

// Descriptors for the fixed-path endpoints.
var (
	// OidcConfiguration is `GET /.well-known/openid-configuration`.
	OidcConfiguration = simple("/.well-known/openid-configuration")

	// Webfinger is `GET /.well-known/webfinger`.
	Webfinger = simple("/.well-known/webfinger")

	// ChangePasswordDiscovery is `GET /.well-known/change-password`.
	ChangePasswordDiscovery = simple("/.well-known/change-password")

	// OAuth2Keys is `GET /oauth2/keys.json`.
	OAuth2Keys = simple("/oauth2/keys.json")

	// OidcUserinfo is `GET|POST /oauth2/userinfo`.
	OidcUserinfo = simple("/oauth2/userinfo")

	// OAuth2Introspection is `POST /oauth2/introspect`.
	OAuth2Introspection = simple("/oauth2/introspect")

	// OAuth2TokenEndpoint is `POST /oauth2/token`.
	OAuth2TokenEndpoint = simple("/oauth2/token")

	// OAuth2RegistrationEndpoint is `POST /oauth2/registration`.
	OAuth2RegistrationEndpoint = simple("/oauth2/registration")

	// OAuth2AuthorizationEndpoint is `GET /authorize`.
	OAuth2AuthorizationEndpoint = simple("/authorize")

	// Index is `GET /`.
	Index = simple("/")

	// Healthcheck is `GET /health`.
	Healthcheck = simple("/health")

	// Logout is `POST /logout`.
	Logout = simple("/logout")

	// Account is `GET /account`.
	Account = simple("/account")

	// AccountPassword is `GET|POST /account/password`.
	AccountPassword = simple("/account/password")

	// AccountEmails is `GET|POST /account/emails`.
	AccountEmails = simple("/account/emails")

	// GraphQL is `POST /graphql`.
	GraphQL = simple("/graphql")
)

// VerifyEmail is `GET /verify/{code}`.
type VerifyEmail struct {
	Code string
}

func (r VerifyEmail) Path() string { return "/verify/" + url.PathEscape(r.Code) }

func (VerifyEmail) Query() string { return "" }

// ContinueAuthorizationGrant is `GET /authorize/{grant_id}`: resume a pending
// authorization grant once the interactive steps in front of it are done.
type ContinueAuthorizationGrant struct {
	GrantID int64
}

func (r ContinueAuthorizationGrant) Path() string {
	return "/authorize/" + strconv.FormatInt(r.GrantID, 10)
}

func (ContinueAuthorizationGrant) Query() string { return "" }

// Consent is `GET|POST /consent/{grant_id}`.
type Consent struct {
	GrantID int64
}

func (r Consent) Path() string { return "/consent/" + strconv.FormatInt(r.GrantID, 10) }

func (Consent) Query() string { return "" }

// CompatLogin is `GET|POST /_matrix/client/{version}/login`.
type CompatLogin struct {
	Version string
}

func (r CompatLogin) Path() string {
	return "/_matrix/client/" + url.PathEscape(r.Version) + "/login"
}

func (CompatLogin) Query() string { return "" }

// CompatLogout is `POST /_matrix/client/{version}/logout`.
type CompatLogout struct {
	Version string
}

func (r CompatLogout) Path() string {
	return "/_matrix/client/" + url.PathEscape(r.Version) + "/logout"
}

func (CompatLogout) Query() string { return "" }

// Login is `GET|POST /login`, optionally carrying the action to run once the
// user has signed in.
type Login struct {
	postAuthAction *PostAuthAction
}

// LoginAndThen returns a Login descriptor that resumes action afterwards.
func LoginAndThen(action PostAuthAction) Login {
	return Login{postAuthAction: &action}
}

// LoginAndContinueGrant returns a Login descriptor that resumes the given
// authorization grant afterwards.
func LoginAndContinueGrant(grantID int64) Login {
	action := ContinueGrant(grantID)
	return Login{postAuthAction: &action}
}

// LoginFromQuery rebuilds the descriptor from an incoming request's query.
func LoginFromQuery(q url.Values) Login {
	return Login{postAuthAction: DecodePostAuthAction(q)}
}

func (Login) Path() string { return "/login" }

func (l Login) Query() string { return l.postAuthAction.encode() }

// PostAuthAction returns the carried continuation, nil when the login was
// reached without a pending privileged operation.
func (l Login) PostAuthAction() *PostAuthAction { return l.postAuthAction }

// GoNext computes where to redirect once the login step has completed.
func (l Login) GoNext() string { return l.postAuthAction.goNext() }

// Reauth is `GET|POST /reauth`: ask an already signed-in user for their
// credentials again before a privileged action.
type Reauth struct {
	postAuthAction *PostAuthAction
}

// ReauthAndThen returns a Reauth descriptor that resumes action afterwards.
func ReauthAndThen(action PostAuthAction) Reauth {
	return Reauth{postAuthAction: &action}
}

// ReauthAndContinueGrant returns a Reauth descriptor that resumes the given
// authorization grant afterwards.
func ReauthAndContinueGrant(grantID int64) Reauth {
	action := ContinueGrant(grantID)
	return Reauth{postAuthAction: &action}
}

// ReauthFromQuery rebuilds the descriptor from an incoming request's query.
func ReauthFromQuery(q url.Values) Reauth {
	return Reauth{postAuthAction: DecodePostAuthAction(q)}
}

func (Reauth) Path() string { return "/reauth" }

func (r Reauth) Query() string { return r.postAuthAction.encode() }

// PostAuthAction returns the carried continuation, nil when absent.
func (r Reauth) PostAuthAction() *PostAuthAction { return r.postAuthAction }

// GoNext computes where to redirect once re-authentication has completed.
func (r Reauth) GoNext() string { return r.postAuthAction.goNext() }

// Register is `GET|POST /register`.
type Register struct {
	postAuthAction *PostAuthAction
}

// RegisterAndThen returns a Register descriptor that resumes action afterwards.
func RegisterAndThen(action PostAuthAction) Register {
	return Register{postAuthAction: &action}
}

// RegisterAndContinueGrant returns a Register descriptor that resumes the
// given authorization grant afterwards.
func RegisterAndContinueGrant(grantID int64) Register {
	action := ContinueGrant(grantID)
	return Register{postAuthAction: &action}
}

// RegisterFromQuery rebuilds the descriptor from an incoming request's query.
func RegisterFromQuery(q url.Values) Register {
	return Register{postAuthAction: DecodePostAuthAction(q)}
}

func (Register) Path() string { return "/register" }

func (r Register) Query() string { return r.postAuthAction.encode() }

// PostAuthAction returns the carried continuation, nil when absent.
func (r Register) PostAuthAction() *PostAuthAction { return r.postAuthAction }

// GoNext computes where to redirect once registration has completed.
func (r Register) GoNext() string { return r.postAuthAction.goNext() }
