package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-ident-server/router"
)

// OidcConfigurationHandler serves the OIDC discovery document
func (s *Server) OidcConfigurationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"issuer":                 s.urls.Issuer(),
			"authorization_endpoint": s.urls.RouteURL(router.OAuth2AuthorizationEndpoint),
			"token_endpoint":         s.urls.RouteURL(router.OAuth2TokenEndpoint),
			"userinfo_endpoint":      s.urls.RouteURL(router.OidcUserinfo),
			"jwks_uri":               s.urls.RouteURL(router.OAuth2Keys),
			"introspection_endpoint": s.urls.RouteURL(router.OAuth2Introspection),
			"registration_endpoint":  s.urls.RouteURL(router.OAuth2RegistrationEndpoint),
			"end_session_endpoint":   s.urls.RouteURL(router.Logout),
			"account_management_uri": s.urls.RouteURL(router.Account),

			"response_types_supported": []string{"code"},
			"response_modes_supported": []string{"query", "fragment", "form_post"},
			"subject_types_supported":  []string{"public"},

			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
			},

			"scopes_supported": []string{
				"openid",
				"profile",
				"email",
			},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
				"none",
			},

			// PKCE parameters are accepted and carried through the flow.
			"code_challenge_methods_supported": []string{"S256", "plain"},

			"claims_supported": []string{
				"sub",
				"preferred_username",
				"email",
				"email_verified",
			},

			"claims_parameter_supported":      false,
			"request_parameter_supported":     false,
			"request_uri_parameter_supported": false,
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

const oidcIssuerRel = "http://openid.net/specs/connect/1.0/issuer"

// WebfingerHandler answers RFC 7033 lookups, pointing any acct: resource at
// this issuer. Whether the account actually exists is not checked; the
// endpoint would otherwise be an account oracle.
func (s *Server) WebfingerHandler() http.HandlerFunc {
	type link struct {
		Rel  string `json:"rel"`
		Href string `json:"href,omitempty"`
	}
	type descriptor struct {
		Subject string `json:"subject"`
		Links   []link `json:"links"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resource := r.URL.Query().Get("resource")
		if resource == "" {
			writeJSONError(w, "invalid_request", "resource parameter is required", http.StatusBadRequest)
			return
		}

		resp := descriptor{Subject: resource, Links: []link{}}

		// A rel filter keeps only the relations the caller asked for.
		rels := r.URL.Query()["rel"]
		if strings.HasPrefix(resource, "acct:") && (len(rels) == 0 || containsString(rels, oidcIssuerRel)) {
			resp.Links = append(resp.Links, link{Rel: oidcIssuerRel, Href: s.urls.Issuer()})
		}

		w.Header().Set("Content-Type", "application/jrd+json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// ChangePasswordDiscoveryHandler redirects the well-known change-password
// URL to the account password page.
func (s *Server) ChangePasswordDiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, router.URL(router.AccountPassword), http.StatusFound)
	}
}

// OAuth2KeysHandler serves the published JSON Web Key Set.
func (s *Server) OAuth2KeysHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_, _ = w.Write(s.keys.Document())
	}
}
