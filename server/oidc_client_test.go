package server_test

import (
	"context"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// setupIssuerFixture starts the server with the public base URL pointing at
// the test listener, so discovery documents resolve back to the server and
// standard client libraries can drive the flow unmodified.
func setupIssuerFixture(t *testing.T) *testFixture {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Setenv("PUBLIC_BASE_URL", "http://"+listener.Addr().String())

	f := buildTestFixture(t)

	ts := httptest.NewUnstartedServer(f.server)
	_ = ts.Listener.Close()
	ts.Listener = listener
	ts.Start()
	t.Cleanup(ts.Close)

	f.ts = ts
	return f
}

func (f *testFixture) relyingParty(t *testing.T, ctx context.Context) (*oidc.Provider, *oauth2.Config) {
	t.Helper()

	provider, err := oidc.NewProvider(ctx, f.ts.URL)
	require.NoError(t, err)

	return provider, &oauth2.Config{
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  testRedirectURI,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
}

func TestRelyingParty_DiscoveryAndCodeFlow(t *testing.T) {
	f := setupIssuerFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	ctx := context.Background()
	provider, conf := f.relyingParty(t, ctx)

	verifier := oauth2.GenerateVerifier()
	authURL, err := url.Parse(conf.AuthCodeURL(testState, oauth2.S256ChallengeOption(verifier)))
	require.NoError(t, err)

	code := f.runAuthorizationFlow(t, f.browser(t), authURL.Query())

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	require.NoError(t, err)
	require.True(t, tok.Valid())
	require.Equal(t, "Bearer", tok.Type())
	require.NotEmpty(t, tok.RefreshToken)

	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	require.NoError(t, err)
	require.NotEmpty(t, info.Subject)
	require.Equal(t, testUserEmail, info.Email)

	var claims struct {
		Username      string `json:"preferred_username"`
		EmailVerified bool   `json:"email_verified"`
	}
	require.NoError(t, info.Claims(&claims))
	require.Equal(t, testUsername, claims.Username)
	require.True(t, claims.EmailVerified)
}

func TestRelyingParty_RefreshRotation(t *testing.T) {
	f := setupIssuerFixture(t)
	f.createTestClient(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	ctx := context.Background()
	provider, conf := f.relyingParty(t, ctx)

	authURL, err := url.Parse(conf.AuthCodeURL(testState))
	require.NoError(t, err)
	code := f.runAuthorizationFlow(t, f.browser(t), authURL.Query())

	tok, err := conf.Exchange(ctx, code)
	require.NoError(t, err)

	// An expired token forces the library through the refresh grant.
	stale := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	refreshed, err := conf.TokenSource(ctx, stale).Token()
	require.NoError(t, err)
	require.NotEqual(t, tok.AccessToken, refreshed.AccessToken)
	require.NotEqual(t, tok.RefreshToken, refreshed.RefreshToken)

	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(refreshed))
	require.NoError(t, err)
	require.Equal(t, testUserEmail, info.Email)

	// Rotation spent the original refresh token.
	replay := &oauth2.Token{RefreshToken: tok.RefreshToken, Expiry: time.Now().Add(-time.Minute)}
	_, err = conf.TokenSource(ctx, replay).Token()
	require.Error(t, err)
}
