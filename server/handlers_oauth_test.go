package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// authorizeQuery returns a well-formed authorization request for the default
// test client.
func authorizeQuery() url.Values {
	return url.Values{
		"client_id":     {testClientID},
		"redirect_uri":  {testRedirectURI},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"state":         {testState},
	}
}

// tokenRequest exchanges a code at the token endpoint with the default
// client's credentials.
func (f *testFixture) tokenRequest(t *testing.T, form url.Values) (*http.Response, string) {
	t.Helper()

	form.Set("client_id", testClientID)
	form.Set("client_secret", testClientSecret)
	return f.postForm(t, f.browser(t), "/oauth2/token", form)
}

type tokenResponseBody struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
}

// runAuthorizationFlow drives a browser from /authorize through login and
// consent and returns the authorization code released to the client.
func (f *testFixture) runAuthorizationFlow(t *testing.T, browser *http.Client, query url.Values) string {
	t.Helper()

	resp, _ := f.get(t, browser, "/authorize?"+query.Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, q := locationQuery(t, resp)
	require.Equal(t, "/login", path)
	require.Equal(t, "continue_authorization_grant", q.Get("next"))
	grantID := q.Get("data")
	require.NotEmpty(t, grantID)

	resp, _ = f.postForm(t, browser, "/login?"+q.Encode(), url.Values{
		"username": {testUsername},
		"password": {testUserPassword},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/authorize/"+grantID, resp.Header.Get("Location"))

	resp, _ = f.get(t, browser, "/authorize/"+grantID)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/consent/"+grantID, resp.Header.Get("Location"))

	resp, body := f.get(t, browser, "/consent/"+grantID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, testClientName)

	resp, _ = f.postForm(t, browser, "/consent/"+grantID, url.Values{"action": {"approve"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cb, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cb.String(), testRedirectURI))
	require.Equal(t, testState, cb.Query().Get("state"))

	code := cb.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationCodeFlow_EndToEnd(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	resp, body := f.tokenRequest(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.NotEmpty(t, tr.AccessToken)
	require.NotEmpty(t, tr.RefreshToken)
	require.Equal(t, "Bearer", tr.TokenType)
	require.Equal(t, "openid profile email", tr.Scope)
	require.Greater(t, tr.ExpiresIn, 0)

	// The access token unlocks userinfo.
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/oauth2/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tr.AccessToken)
	uiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer uiResp.Body.Close()
	require.Equal(t, http.StatusOK, uiResp.StatusCode)

	var claims struct {
		Sub               string `json:"sub"`
		PreferredUsername string `json:"preferred_username"`
		Email             string `json:"email"`
		EmailVerified     bool   `json:"email_verified"`
	}
	require.NoError(t, json.NewDecoder(uiResp.Body).Decode(&claims))
	require.NotEmpty(t, claims.Sub)
	require.Equal(t, testUsername, claims.PreferredUsername)
	require.Equal(t, testUserEmail, claims.Email)
	require.True(t, claims.EmailVerified)

	// Introspection agrees the token is active.
	inResp, inBody := f.postForm(t, f.browser(t), "/oauth2/introspect", url.Values{
		"token":         {tr.AccessToken},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	})
	require.Equal(t, http.StatusOK, inResp.StatusCode)

	var introspection struct {
		Active   bool   `json:"active"`
		ClientID string `json:"client_id"`
		Username string `json:"username"`
		Scope    string `json:"scope"`
	}
	decodeJSON(t, inBody, &introspection)
	require.True(t, introspection.Active)
	require.Equal(t, testClientID, introspection.ClientID)
	require.Equal(t, testUsername, introspection.Username)
	require.Equal(t, "openid profile email", introspection.Scope)
}

func TestAuthorize_SignedInSkipsLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	resp, _ := f.get(t, browser, "/authorize?"+authorizeQuery().Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/authorize/"))
}

func TestAuthorize_MissingClientID(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/authorize")

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorize_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)

	q := authorizeQuery()
	q.Set("client_id", "no-such-client")
	resp, body := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "Unknown client")
}

func TestAuthorize_UnregisteredRedirectURIStaysLocal(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	q := authorizeQuery()
	q.Set("redirect_uri", "https://evil.example.com/steal")
	resp, _ := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	// The browser must not be sent to an unregistered URI.
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
}

func TestAuthorize_InvalidResponseTypeRedirectsError(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	q := authorizeQuery()
	q.Set("response_type", "token")
	resp, _ := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cb, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cb.String(), testRedirectURI))
	require.Equal(t, "unsupported_response_type", cb.Query().Get("error"))
	require.Equal(t, testState, cb.Query().Get("state"))
}

func TestAuthorize_DisallowedScopeRedirectsError(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	q := authorizeQuery()
	q.Set("scope", "openid admin")
	resp, _ := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	cb, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "invalid_scope", cb.Query().Get("error"))
}

func TestAuthorize_LoginHintPrefillsUsername(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	q := authorizeQuery()
	q.Set("login_hint", "johndoe")
	resp, _ := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, loc := locationQuery(t, resp)
	require.Equal(t, "/login", path)
	require.Equal(t, "johndoe", loc.Get("username"))
	require.Equal(t, "continue_authorization_grant", loc.Get("next"))
}

func TestAuthorize_PKCEParametersCarriedToGrant(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	q := authorizeQuery()
	q.Set("code_challenge", "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM")
	q.Set("code_challenge_method", "S256")
	resp, _ := f.get(t, f.browser(t), "/authorize?"+q.Encode())

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	_, loc := locationQuery(t, resp)
	grantID := parseInt64(t, loc.Get("data"))

	grant, err := f.grantRepo.GetByID(context.Background(), grantID)
	require.NoError(t, err)
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", grant.CodeChallenge)
	require.Equal(t, "S256", grant.CodeChallengeMethod)
}

func TestContinueGrant_Unknown(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/authorize/99999")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.get(t, f.browser(t), "/authorize/not-a-number")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContinueGrant_Expired(t *testing.T) {
	t.Setenv("AUTH_CODE_TIMEOUT", "1ns")
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	resp, _ := f.get(t, browser, "/authorize?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantPath := resp.Header.Get("Location")

	resp, body := f.get(t, browser, grantPath)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body, "expired")
}

func TestConsent_StaleAuthenticationForcesReauth(t *testing.T) {
	t.Setenv("SESSION_CONSENT_MAX_AGE", "1ns")
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	resp, _ := f.get(t, browser, "/authorize?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantPath := resp.Header.Get("Location")
	grantID := strings.TrimPrefix(grantPath, "/authorize/")

	resp, _ = f.get(t, browser, grantPath)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	path, q := locationQuery(t, resp)
	require.Equal(t, "/reauth", path)
	require.Equal(t, "continue_authorization_grant", q.Get("next"))
	require.Equal(t, grantID, q.Get("data"))
}

func TestConsent_DenyReportsAccessDenied(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	resp, _ := f.get(t, browser, "/authorize?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantID := strings.TrimPrefix(resp.Header.Get("Location"), "/authorize/")

	resp, _ = f.postForm(t, browser, "/consent/"+grantID, url.Values{"action": {"deny"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	cb, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(cb.String(), testRedirectURI))
	require.Equal(t, "access_denied", cb.Query().Get("error"))
	require.Equal(t, testState, cb.Query().Get("state"))
	require.Empty(t, cb.Query().Get("code"))
}

func TestConsent_FulfilledGrantCannotBeReplayed(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	resp, _ := f.get(t, browser, "/authorize?"+authorizeQuery().Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantID := strings.TrimPrefix(resp.Header.Get("Location"), "/authorize/")

	resp, _ = f.postForm(t, browser, "/consent/"+grantID, url.Values{"action": {"approve"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	// The consent page for the answered grant is gone.
	resp, _ = f.get(t, browser, "/consent/"+grantID)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthorize_FormPostResponseMode(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	q := authorizeQuery()
	q.Set("response_mode", "form_post")
	resp, _ := f.get(t, browser, "/authorize?"+q.Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantID := strings.TrimPrefix(resp.Header.Get("Location"), "/authorize/")

	resp, body := f.postForm(t, browser, "/consent/"+grantID, url.Values{"action": {"approve"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, body, `action="`+testRedirectURI+`"`)
	require.Contains(t, body, `name="code"`)
	require.Contains(t, body, `name="state"`)
}

func TestAuthorize_FragmentResponseMode(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)
	f.signIn(t, browser, testUsername, testUserPassword)

	q := authorizeQuery()
	q.Set("response_mode", "fragment")
	resp, _ := f.get(t, browser, "/authorize?"+q.Encode())
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	grantID := strings.TrimPrefix(resp.Header.Get("Location"), "/authorize/")

	resp, _ = f.postForm(t, browser, "/consent/"+grantID, url.Values{"action": {"approve"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, testRedirectURI+"#"))
	frag, err := url.ParseQuery(strings.TrimPrefix(loc, testRedirectURI+"#"))
	require.NoError(t, err)
	require.NotEmpty(t, frag.Get("code"))
	require.Equal(t, testState, frag.Get("state"))
}

func TestToken_CodeSecondUseRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	resp, _ := f.tokenRequest(t, form)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.tokenRequest(t, form)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.Equal(t, "invalid_grant", tr.Error)
}

func TestToken_WrongRedirectURIRejected(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	resp, body := f.tokenRequest(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {"https://client.example.com/other"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.Equal(t, "invalid_grant", tr.Error)
}

func TestToken_CodeBoundToIssuingClient(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	f.createSecondClient(t, "other-client", "other-secret")

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	resp, body := f.postForm(t, f.browser(t), "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {"other-client"},
		"client_secret": {"other-secret"},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.Equal(t, "invalid_grant", tr.Error)
}

func TestToken_ClientAuthenticationRequired(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	resp, body := f.postForm(t, f.browser(t), "/oauth2/token", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"whatever"},
		"client_id":     {testClientID},
		"client_secret": {"wrong-secret"},
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.Equal(t, "invalid_client", tr.Error)
}

func TestToken_BasicAuthAccepted(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	}
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/oauth2/token", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(testClientID, testClientSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	resp, body := f.tokenRequest(t, url.Values{"grant_type": {"password"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var tr tokenResponseBody
	decodeJSON(t, body, &tr)
	require.Equal(t, "unsupported_grant_type", tr.Error)
}

func TestToken_RefreshRotation(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())

	resp, body := f.tokenRequest(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first tokenResponseBody
	decodeJSON(t, body, &first)

	resp, body = f.tokenRequest(t, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second tokenResponseBody
	decodeJSON(t, body, &second)
	require.NotEmpty(t, second.AccessToken)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, first.Scope, second.Scope)

	// The rotated-out refresh token no longer works.
	resp, body = f.tokenRequest(t, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var third tokenResponseBody
	decodeJSON(t, body, &third)
	require.Equal(t, "invalid_grant", third.Error)
}

func TestIntrospection_RequiresClientAuth(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.postForm(t, f.browser(t), "/oauth2/introspect", url.Values{"token": {"anything"}})

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIntrospection_UnknownTokenIsInactive(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)

	resp, body := f.postForm(t, f.browser(t), "/oauth2/introspect", url.Values{
		"token":         {"not-a-token"},
		"client_id":     {testClientID},
		"client_secret": {testClientSecret},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"active": false}`, body)
}

func TestUserinfo_ScopeLimitsClaims(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	browser := f.browser(t)

	q := authorizeQuery()
	q.Set("scope", "openid")
	code := f.runAuthorizationFlow(t, browser, q)

	resp, body := f.tokenRequest(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr tokenResponseBody
	decodeJSON(t, body, &tr)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/oauth2/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tr.AccessToken)
	uiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer uiResp.Body.Close()
	require.Equal(t, http.StatusOK, uiResp.StatusCode)

	var claims map[string]any
	require.NoError(t, json.NewDecoder(uiResp.Body).Decode(&claims))
	require.Contains(t, claims, "sub")
	require.NotContains(t, claims, "preferred_username")
	require.NotContains(t, claims, "email")
}

func TestUserinfo_RejectsRefreshToken(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	code := f.runAuthorizationFlow(t, f.browser(t), authorizeQuery())
	resp, body := f.tokenRequest(t, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tr tokenResponseBody
	decodeJSON(t, body, &tr)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/oauth2/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tr.RefreshToken)
	uiResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer uiResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, uiResp.StatusCode)
}

func TestUserinfo_MissingToken(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/oauth2/userinfo")

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegistration_ConfidentialClient(t *testing.T) {
	f := setupTestFixture(t)

	payload := `{
		"redirect_uris": ["https://newapp.example.com/cb"],
		"client_name": "New App",
		"scope": "openid profile"
	}`
	resp, err := http.Post(f.ts.URL+"/oauth2/registration", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg struct {
		ClientID     string   `json:"client_id"`
		ClientSecret string   `json:"client_secret"`
		RedirectURIs []string `json:"redirect_uris"`
		AuthMethod   string   `json:"token_endpoint_auth_method"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NotEmpty(t, reg.ClientID)
	require.NotEmpty(t, reg.ClientSecret)
	require.Equal(t, []string{"https://newapp.example.com/cb"}, reg.RedirectURIs)
	require.Equal(t, "client_secret_basic", reg.AuthMethod)

	// The stored client authenticates with the returned secret.
	stored, err := f.clientRepo.Get(context.Background(), reg.ClientID)
	require.NoError(t, err)
	require.True(t, stored.CheckSecret(reg.ClientSecret))
}

func TestRegistration_PublicClientGetsNoSecret(t *testing.T) {
	f := setupTestFixture(t)

	payload := `{
		"redirect_uris": ["https://spa.example.com/cb"],
		"token_endpoint_auth_method": "none"
	}`
	resp, err := http.Post(f.ts.URL+"/oauth2/registration", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var reg struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reg))
	require.NotEmpty(t, reg.ClientID)
	require.Empty(t, reg.ClientSecret)
}

func TestRegistration_RejectsBadRedirectURI(t *testing.T) {
	f := setupTestFixture(t)

	payload := `{"redirect_uris": ["not a URI"]}`
	resp, err := http.Post(f.ts.URL+"/oauth2/registration", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
