package server

import "github.com/jrsteele09/go-ident-server/router"

func (s *Server) initRoutes() {
	// Home and operational endpoints
	s.RegisterRouteHandler("GET "+router.PatternIndex, ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.Healthcheck.Path(), ChainMiddleware(s.HealthcheckHandler(), s.APIMiddleware()...))

	// Discovery documents
	s.RegisterRouteHandler("GET "+router.OidcConfiguration.Path(), ChainMiddleware(s.OidcConfigurationHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+router.Webfinger.Path(), ChainMiddleware(s.WebfingerHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+router.ChangePasswordDiscovery.Path(), ChainMiddleware(s.ChangePasswordDiscoveryHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.OAuth2Keys.Path(), ChainMiddleware(s.OAuth2KeysHandler(), s.APIMiddleware()...))

	// OAuth2 / OIDC API
	s.RegisterRouteHandler("GET "+router.OidcUserinfo.Path(), ChainMiddleware(s.UserinfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.OidcUserinfo.Path(), ChainMiddleware(s.UserinfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.OAuth2Introspection.Path(), ChainMiddleware(s.IntrospectionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.OAuth2TokenEndpoint.Path(), ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.OAuth2RegistrationEndpoint.Path(), ChainMiddleware(s.RegistrationHandler(), s.APIMiddleware()...))

	// Authorization flow
	s.RegisterRouteHandler("GET "+router.OAuth2AuthorizationEndpoint.Path(), ChainMiddleware(s.AuthorizeHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.PatternContinueAuthorizationGrant, ChainMiddleware(s.ContinueAuthorizationGrantHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.PatternConsent, ChainMiddleware(s.ConsentHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.PatternConsent, ChainMiddleware(s.ConsentSubmitHandler(), s.HTMLMiddleWare()...))

	// Authentication pages
	s.RegisterRouteHandler("GET "+router.Login{}.Path(), ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.Login{}.Path(), ChainMiddleware(s.LoginSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.Logout.Path(), ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.Reauth{}.Path(), ChainMiddleware(s.ReauthPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.Reauth{}.Path(), ChainMiddleware(s.ReauthSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.Register{}.Path(), ChainMiddleware(s.RegisterPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.Register{}.Path(), ChainMiddleware(s.RegisterSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.PatternVerifyEmail, ChainMiddleware(s.VerifyEmailHandler(), s.HTMLMiddleWare()...))

	// Account management
	s.RegisterRouteHandler("GET "+router.Account.Path(), ChainMiddleware(s.AccountHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.AccountPassword.Path(), ChainMiddleware(s.AccountPasswordPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.AccountPassword.Path(), ChainMiddleware(s.AccountPasswordSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+router.AccountEmails.Path(), ChainMiddleware(s.AccountEmailsPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.AccountEmails.Path(), ChainMiddleware(s.AccountEmailsSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+router.GraphQL.Path(), ChainMiddleware(s.GraphQLHandler(), s.APIMiddleware()...))

	// Matrix compatibility API
	s.RegisterRouteHandler("GET "+router.PatternCompatLogin, ChainMiddleware(s.CompatLoginFlowsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.PatternCompatLogin, ChainMiddleware(s.CompatLoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+router.PatternCompatLogout, ChainMiddleware(s.CompatLogoutHandler(), s.APIMiddleware()...))
}
