package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-ident-server/clients"
	"github.com/jrsteele09/go-ident-server/oauth2"
	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/token"
)

// AuthorizeHandler begins the authorization code flow. A pending grant is
// recorded and the browser is bounced to the interactive steps, which refer
// back to it by ID.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := oauth2.ParseAuthorizationRequest(r.URL.Query())

		if strings.TrimSpace(req.ClientID) == "" {
			renderErrorPage(w, http.StatusBadRequest, "Invalid request", "The client_id parameter is missing.")
			return
		}

		client, err := s.repos.Clients.Get(r.Context(), req.ClientID)
		if err != nil {
			if errors.Is(err, clients.ErrNotFound) {
				renderErrorPage(w, http.StatusBadRequest, "Unknown client", "No client is registered under the given client_id.")
				return
			}
			log.Err(err).Str("client_id", req.ClientID).Msg("loading client")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		if err := req.Validate(client); err != nil {
			// Until the redirect URI has been validated, errors must stay
			// on this page rather than follow an attacker supplied URI.
			switch {
			case errors.Is(err, oauth2.ErrMissingClientID), errors.Is(err, oauth2.ErrInvalidRedirectURI):
				renderErrorPage(w, http.StatusBadRequest, "Invalid request", "The redirect_uri is missing or not registered for this client.")
			case errors.Is(err, oauth2.ErrInvalidResponseMode):
				s.authorizeError(w, r, req.RedirectURI, oauth2.QueryResponseMode, req.State, "invalid_request", "Unsupported response_mode")
			case errors.Is(err, oauth2.ErrInvalidResponseType):
				s.authorizeError(w, r, req.RedirectURI, req.ResponseMode, req.State, "unsupported_response_type", "Only the code response type is supported")
			default:
				s.authorizeError(w, r, req.RedirectURI, req.ResponseMode, req.State, "invalid_scope", "The requested scope is malformed")
			}
			return
		}

		if err := client.ValidateScopes(req.Scope); err != nil {
			s.authorizeError(w, r, req.RedirectURI, req.ResponseMode, req.State, "invalid_scope", "The client may not request this scope")
			return
		}

		grant := oauth2.NewAuthorizationGrant(req, uuid.New().String(), time.Now())
		if err := s.repos.Grants.Create(r.Context(), grant); err != nil {
			log.Err(err).Msg("creating authorization grant")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			login := router.LoginAndContinueGrant(grant.ID)
			target := router.URL(login)
			if req.LoginHint != "" {
				target = login.Path() + "?" + withUsername(login.Query(), req.LoginHint)
			}
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}
		s.touchSession(r, repo, sess)
		_ = repo.Commit(r.Context())

		http.Redirect(w, r, router.URL(router.ContinueAuthorizationGrant{GrantID: grant.ID}), http.StatusSeeOther)
	}
}

// authorizeError reports a validated-redirect failure to the client the way
// RFC 6749 prescribes, via the redirect URI.
func (s *Server) authorizeError(w http.ResponseWriter, r *http.Request, redirectURI string, responseMode oauth2.ResponseModeType, state, errorCode, description string) {
	params := url.Values{}
	params.Set("error", errorCode)
	params.Set("error_description", description)
	if state != "" {
		params.Set("state", state)
	}
	s.callbackRedirect(w, r, redirectURI, responseMode, params)
}

func withUsername(encodedQuery, username string) string {
	q, err := url.ParseQuery(encodedQuery)
	if err != nil {
		q = url.Values{}
	}
	q.Set("username", username)
	return q.Encode()
}

// ContinueAuthorizationGrantHandler resumes a pending grant once the browser
// comes back from login. It ensures the session is fresh enough for consent
// and forwards to the consent page.
func (s *Server) ContinueAuthorizationGrantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, ok := s.loadPendingGrant(w, r)
		if !ok {
			return
		}

		repo, err := s.repos.Sessions.Begin(r.Context())
		if err != nil {
			log.Err(err).Msg("opening session repository")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		defer func() { _ = repo.Cancel(r.Context()) }()

		sess := s.currentSession(r, repo)
		if sess == nil {
			http.Redirect(w, r, router.URL(router.LoginAndContinueGrant(grant.ID)), http.StatusSeeOther)
			return
		}
		s.touchSession(r, repo, sess)

		last, err := repo.LastAuthentication(r.Context(), sess.ID)
		if err != nil {
			log.Err(err).Int64("session_id", sess.ID).Msg("loading last authentication")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}
		_ = repo.Commit(r.Context())

		if !s.freshness.FreshForConsent(last, time.Now()) {
			http.Redirect(w, r, router.URL(router.ReauthAndContinueGrant(grant.ID)), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, router.URL(router.Consent{GrantID: grant.ID}), http.StatusSeeOther)
	}
}

// loadPendingGrant reads the {grantID} path value and returns the grant when
// it is still pending. Anything else has already been answered.
func (s *Server) loadPendingGrant(w http.ResponseWriter, r *http.Request) (*oauth2.AuthorizationGrant, bool) {
	grantID, err := strconv.ParseInt(r.PathValue("grantID"), 10, 64)
	if err != nil {
		renderErrorPage(w, http.StatusNotFound, "Unknown grant", "This authorization request does not exist.")
		return nil, false
	}

	grant, err := s.repos.Grants.GetByID(r.Context(), grantID)
	if err != nil {
		if errors.Is(err, oauth2.ErrGrantNotFound) {
			renderErrorPage(w, http.StatusNotFound, "Unknown grant", "This authorization request does not exist.")
			return nil, false
		}
		log.Err(err).Int64("grant_id", grantID).Msg("loading grant")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
		return nil, false
	}

	if grant.Fulfilled() || grant.Exchanged() {
		renderErrorPage(w, http.StatusBadRequest, "Request already completed", "This authorization request has already been answered.")
		return nil, false
	}
	if grant.Expired(time.Now(), s.config.GetAuthCodeTimeout()) {
		renderErrorPage(w, http.StatusBadRequest, "Request expired", "This authorization request has expired. Return to the application and try again.")
		return nil, false
	}
	return grant, true
}

// ConsentHandler renders the consent page for a pending grant.
func (s *Server) ConsentHandler() http.HandlerFunc {
	tmpl, err := ParseTemplate("consent.html")
	if err != nil {
		panic("Failed to parse consent template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		grant, ok := s.loadPendingGrant(w, r)
		if !ok {
			return
		}

		sess, ok := s.consentGates(w, r, grant)
		if !ok {
			return
		}

		client, err := s.repos.Clients.Get(r.Context(), grant.ClientID)
		if err != nil {
			log.Err(err).Str("client_id", grant.ClientID).Msg("loading client for consent")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		clientName := client.Name
		if clientName == "" {
			clientName = client.ID
		}

		data := map[string]interface{}{
			"AppName":    s.config.GetAppName(),
			"Username":   sess.User.Username,
			"ClientName": clientName,
			"LogoURI":    client.LogoURI,
			"TOSURI":     client.TOSURI,
			"PolicyURI":  client.PolicyURI,
			"Scopes":     strings.Fields(grant.Scope),
			"FormAction": router.URL(router.Consent{GrantID: grant.ID}),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	}
}

// ConsentSubmitHandler records the user's decision. Approval fulfils the
// grant and releases the code to the client's redirect URI; denial reports
// access_denied the same way.
func (s *Server) ConsentSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant, ok := s.loadPendingGrant(w, r)
		if !ok {
			return
		}

		sess, ok := s.consentGates(w, r, grant)
		if !ok {
			return
		}

		if err := r.ParseForm(); err != nil {
			renderErrorPage(w, http.StatusBadRequest, "Invalid request", "The form submission could not be read.")
			return
		}

		if r.FormValue("action") != "approve" {
			params := url.Values{}
			params.Set("error", "access_denied")
			if grant.State != "" {
				params.Set("state", grant.State)
			}
			s.callbackRedirect(w, r, grant.RedirectURI, grant.ResponseMode, params)
			return
		}

		if err := s.repos.Grants.Fulfill(r.Context(), grant.ID, sess.ID, sess.User.ID, time.Now()); err != nil {
			if errors.Is(err, oauth2.ErrGrantFulfilled) {
				renderErrorPage(w, http.StatusBadRequest, "Request already completed", "This authorization request has already been answered.")
				return
			}
			log.Err(err).Int64("grant_id", grant.ID).Msg("fulfilling grant")
			renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
			return
		}

		params := url.Values{}
		params.Set("code", grant.Code)
		if grant.State != "" {
			params.Set("state", grant.State)
		}
		s.callbackRedirect(w, r, grant.RedirectURI, grant.ResponseMode, params)
	}
}

// consentGates enforces the session and freshness requirements shared by the
// consent page and its submission. A false return means a redirect or error
// has been written.
func (s *Server) consentGates(w http.ResponseWriter, r *http.Request, grant *oauth2.AuthorizationGrant) (*session.BrowserSession, bool) {
	repo, err := s.repos.Sessions.Begin(r.Context())
	if err != nil {
		log.Err(err).Msg("opening session repository")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
		return nil, false
	}
	defer func() { _ = repo.Cancel(r.Context()) }()

	sess := s.currentSession(r, repo)
	if sess == nil {
		http.Redirect(w, r, router.URL(router.LoginAndContinueGrant(grant.ID)), http.StatusSeeOther)
		return nil, false
	}
	s.touchSession(r, repo, sess)

	last, err := repo.LastAuthentication(r.Context(), sess.ID)
	if err != nil {
		log.Err(err).Int64("session_id", sess.ID).Msg("loading last authentication")
		renderErrorPage(w, http.StatusInternalServerError, "Something went wrong", "The request could not be processed.")
		return nil, false
	}
	_ = repo.Commit(r.Context())

	if !s.freshness.FreshForConsent(last, time.Now()) {
		http.Redirect(w, r, router.URL(router.ReauthAndContinueGrant(grant.ID)), http.StatusSeeOther)
		return nil, false
	}
	return sess, true
}

// TokenHandler exchanges codes and refresh tokens for tokens.
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		client, ok := s.authenticateClient(w, r)
		if !ok {
			return
		}

		var resp oauth2.TokenResponse

		switch oauth2.GrantType(r.FormValue("grant_type")) {
		case oauth2.AuthorizationCodeGrant:
			code := r.FormValue("code")
			if code == "" {
				writeJSONError(w, "invalid_request", "code parameter is required", http.StatusBadRequest)
				return
			}

			grant, err := s.repos.Grants.Exchange(r.Context(), code, time.Now())
			if err != nil {
				switch {
				case errors.Is(err, oauth2.ErrGrantNotFound):
					writeJSONError(w, "invalid_grant", "Unknown authorization code", http.StatusBadRequest)
				case errors.Is(err, oauth2.ErrCodeExchanged):
					writeJSONError(w, "invalid_grant", "Authorization code already redeemed", http.StatusBadRequest)
				case errors.Is(err, oauth2.ErrGrantNotFulfilled):
					writeJSONError(w, "invalid_grant", "Authorization was never completed", http.StatusBadRequest)
				default:
					log.Err(err).Msg("exchanging authorization code")
					writeJSONError(w, "server_error", "Failed to redeem the code", http.StatusInternalServerError)
				}
				return
			}

			if grant.ClientID != client.ID {
				writeJSONError(w, "invalid_grant", "Authorization code belongs to a different client", http.StatusBadRequest)
				return
			}
			if r.FormValue("redirect_uri") != grant.RedirectURI {
				writeJSONError(w, "invalid_grant", "redirect_uri does not match the authorization request", http.StatusBadRequest)
				return
			}
			if grant.Expired(time.Now(), s.config.GetAuthCodeTimeout()) {
				writeJSONError(w, "invalid_grant", "Authorization code expired", http.StatusBadRequest)
				return
			}

			access, refresh, err := s.issuer.IssueForGrant(r.Context(), grant)
			if err != nil {
				log.Err(err).Int64("grant_id", grant.ID).Msg("issuing tokens")
				writeJSONError(w, "server_error", "Failed to issue tokens", http.StatusInternalServerError)
				return
			}
			resp = oauth2.TokenResponse{
				AccessToken:  &access.Token,
				TokenType:    "Bearer",
				ExpiresIn:    int(s.config.GetAccessTokenExpiry().Seconds()),
				RefreshToken: &refresh.Token,
				Scope:        grant.Scope,
			}

		case oauth2.RefreshTokenGrant:
			refreshToken := r.FormValue("refresh_token")
			if refreshToken == "" {
				writeJSONError(w, "invalid_request", "refresh_token parameter is required", http.StatusBadRequest)
				return
			}

			access, refresh, err := s.issuer.Refresh(r.Context(), refreshToken, client.ID)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrTokenRevoked), errors.Is(err, token.ErrTokenExpired):
					writeJSONError(w, "invalid_grant", "The refresh token is no longer usable", http.StatusBadRequest)
				default:
					log.Err(err).Msg("refreshing tokens")
					writeJSONError(w, "server_error", "Failed to refresh tokens", http.StatusInternalServerError)
				}
				return
			}
			resp = oauth2.TokenResponse{
				AccessToken:  &access.Token,
				TokenType:    "Bearer",
				ExpiresIn:    int(s.config.GetAccessTokenExpiry().Seconds()),
				RefreshToken: &refresh.Token,
				Scope:        access.Scope,
			}

		default:
			writeJSONError(w, "unsupported_grant_type", "Only authorization_code and refresh_token are supported", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// authenticateClient resolves and verifies the calling client from Basic
// auth or body parameters. A false return means the 401 is already written.
func (s *Server) authenticateClient(w http.ResponseWriter, r *http.Request) (*clients.Client, bool) {
	clientID, clientSecret := r.FormValue("client_id"), r.FormValue("client_secret")
	if id, secret, ok := r.BasicAuth(); ok {
		clientID, clientSecret = id, secret
	}

	client, err := s.repos.Clients.Get(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			writeJSONError(w, "invalid_client", "Unknown client", http.StatusUnauthorized)
			return nil, false
		}
		log.Err(err).Str("client_id", clientID).Msg("loading client")
		writeJSONError(w, "server_error", "Failed to load the client", http.StatusInternalServerError)
		return nil, false
	}
	if !client.CheckSecret(clientSecret) {
		writeJSONError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
		return nil, false
	}
	return client, true
}

// IntrospectionHandler reports token state to authenticated clients per
// RFC 7662. Inactive and unknown tokens both answer active=false.
func (s *Server) IntrospectionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse form data", http.StatusBadRequest)
			return
		}

		if _, ok := s.authenticateClient(w, r); !ok {
			return
		}

		tokenStr := r.FormValue("token")
		if tokenStr == "" {
			writeJSONError(w, "invalid_request", "token parameter is required", http.StatusBadRequest)
			return
		}

		stored, err := s.issuer.Active(r.Context(), tokenStr)
		if err != nil {
			log.Err(err).Msg("introspecting token")
			writeJSONError(w, "server_error", "Failed to introspect the token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if stored == nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"active": false})
			return
		}

		resp := map[string]any{
			"active":     true,
			"token_type": "Bearer",
			"client_id":  stored.ClientID,
			"sub":        strconv.FormatInt(stored.UserID, 10),
			"iat":        stored.IssuedAt.Unix(),
			"exp":        stored.ExpiresAt.Unix(),
		}
		if stored.Scope != "" {
			resp["scope"] = stored.Scope
		}
		if user, err := s.repos.Users.GetByID(r.Context(), stored.UserID); err == nil {
			resp["username"] = user.Username
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// UserinfoHandler returns the claims the access token's scope unlocks.
func (s *Server) UserinfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeJSONError(w, "invalid_token", "Missing or malformed Authorization header", http.StatusUnauthorized)
			return
		}

		stored, err := s.issuer.Active(r.Context(), tokenStr)
		if err != nil {
			log.Err(err).Msg("validating access token")
			writeJSONError(w, "server_error", "Failed to validate the token", http.StatusInternalServerError)
			return
		}
		if stored == nil || stored.Kind != token.KindAccess {
			writeJSONError(w, "invalid_token", "The access token is not active", http.StatusUnauthorized)
			return
		}

		user, err := s.repos.Users.GetByID(r.Context(), stored.UserID)
		if err != nil {
			log.Err(err).Int64("user_id", stored.UserID).Msg("loading token subject")
			writeJSONError(w, "server_error", "Failed to load the user", http.StatusInternalServerError)
			return
		}

		scopes := strings.Fields(stored.Scope)
		claims := map[string]any{
			"sub": strconv.FormatInt(user.ID, 10),
		}
		if containsString(scopes, "profile") {
			claims["preferred_username"] = user.Username
		}
		if containsString(scopes, "email") {
			claims["email"] = user.Email
			claims["email_verified"] = user.EmailVerified
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(claims)
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RegistrationHandler implements the dynamic client registration endpoint
// (RFC 7591 subset). Confidential clients get a generated secret returned
// exactly once.
func (s *Server) RegistrationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reg clients.Registration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			writeJSONError(w, "invalid_client_metadata", "Malformed JSON body", http.StatusBadRequest)
			return
		}

		if err := reg.Validate(); err != nil {
			errorCode := "invalid_client_metadata"
			if errors.Is(err, clients.ErrInvalidRedirectURI) || errors.Is(err, clients.ErrNoRedirectURIs) {
				errorCode = "invalid_redirect_uri"
			}
			writeJSONError(w, errorCode, err.Error(), http.StatusBadRequest)
			return
		}

		secret := ""
		if reg.TokenEndpointAuthMethod != "none" {
			generated, err := newClientSecret()
			if err != nil {
				log.Err(err).Msg("generating client secret")
				writeJSONError(w, "server_error", "Failed to register the client", http.StatusInternalServerError)
				return
			}
			secret = generated
		}

		client := clients.NewClient(reg, uuid.New().String(), secret, time.Now())
		if err := s.repos.Clients.Upsert(r.Context(), client); err != nil {
			log.Err(err).Msg("storing registered client")
			writeJSONError(w, "server_error", "Failed to register the client", http.StatusInternalServerError)
			return
		}

		authMethod := reg.TokenEndpointAuthMethod
		if authMethod == "" {
			authMethod = "client_secret_basic"
		}

		resp := map[string]any{
			"client_id":                  client.ID,
			"client_id_issued_at":        client.CreatedAt.Unix(),
			"redirect_uris":              client.RedirectURIs,
			"token_endpoint_auth_method": authMethod,
		}
		if client.Name != "" {
			resp["client_name"] = client.Name
		}
		if reg.Scope != "" {
			resp["scope"] = reg.Scope
		}
		if secret != "" {
			resp["client_secret"] = secret
			resp["client_secret_expires_at"] = 0
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newClientSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "[newClientSecret] reading random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
