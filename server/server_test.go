package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-ident-server/clients"
	fakeclientrepo "github.com/jrsteele09/go-ident-server/clients/fakerepo"
	"github.com/jrsteele09/go-ident-server/internal/config"
	fakemailqueue "github.com/jrsteele09/go-ident-server/mailer/queuefake"
	fakegrantrepo "github.com/jrsteele09/go-ident-server/oauth2/fakerepo"
	"github.com/jrsteele09/go-ident-server/server"
	fakesessionrepo "github.com/jrsteele09/go-ident-server/session/repofakes"
	"github.com/jrsteele09/go-ident-server/token"
	tokenfakerepo "github.com/jrsteele09/go-ident-server/token/repofake"
	"github.com/jrsteele09/go-ident-server/users"
	fakeuserrepo "github.com/jrsteele09/go-ident-server/users/repofake"
)

const (
	testUsername     = "johndoe"
	testUserEmail    = "john.doe@example.com"
	testUserPassword = "Correct-Horse-9"
	testClientID     = "test-client-1"
	testClientSecret = "test-secret-1"
	testClientName   = "Test Client"
	testRedirectURI  = "https://client.example.com/callback"
	testState        = "random-state-value"
)

// testFixture holds the fake repositories behind a running server so tests
// can both drive the HTTP surface and inspect state directly.
type testFixture struct {
	userRepo    *fakeuserrepo.FakeUserRepo
	emailRepo   *fakeuserrepo.FakeEmailRepo
	sessionRepo *fakesessionrepo.FakeSessionStore
	clientRepo  *fakeclientrepo.FakeClientRepo
	grantRepo   *fakegrantrepo.FakeGrantRepo
	mailQueue   *fakemailqueue.FakeMailQueue
	issuer      *token.Issuer
	server      *server.Server
	ts          *httptest.Server
}

// setupTestFixture builds a server on fake repositories and starts it on an
// httptest listener. Config comes from the environment defaults; tests
// override individual variables with t.Setenv before calling.
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := buildTestFixture(t)
	ts := httptest.NewServer(f.server)
	t.Cleanup(ts.Close)
	f.ts = ts
	return f
}

// buildTestFixture constructs the server without starting a listener.
func buildTestFixture(t *testing.T) *testFixture {
	t.Helper()

	t.Setenv("ENV", "TEST")
	t.Setenv("SESSION_SECRET", "test-session-secret")

	cfg, err := config.New()
	require.NoError(t, err)

	ur := fakeuserrepo.NewFakeUserRepo()
	er := fakeuserrepo.NewFakeEmailRepo()
	sr := fakesessionrepo.NewFakeSessionStore()
	cr := fakeclientrepo.NewFakeClientRepo()
	gr := fakegrantrepo.NewFakeGrantRepo()
	mq := fakemailqueue.NewFakeMailQueue()

	issuer := token.NewIssuer(tokenfakerepo.NewFakeTokenRepo(), cfg)

	keys, err := token.NewStaticKeys(nil)
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Repos{
		Users:    ur,
		Emails:   er,
		Sessions: sr,
		Clients:  cr,
		Grants:   gr,
		Mail:     mq,
	}, issuer, keys)
	require.NoError(t, err)

	return &testFixture{
		userRepo:    ur,
		emailRepo:   er,
		sessionRepo: sr,
		clientRepo:  cr,
		grantRepo:   gr,
		mailQueue:   mq,
		issuer:      issuer,
		server:      srv,
	}
}

// createTestUser stores a user with a hashed password and a confirmed
// primary email address.
func (f *testFixture) createTestUser(t *testing.T, username, email, password string) *users.User {
	t.Helper()

	hash, err := users.HashPassword(password)
	require.NoError(t, err)

	user := &users.User{
		Username:      username,
		Email:         email,
		EmailVerified: true,
		PasswordHash:  hash,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, f.userRepo.Create(context.Background(), user))

	addr := &users.Email{UserID: user.ID, Address: email, CreatedAt: time.Now()}
	require.NoError(t, f.emailRepo.Add(context.Background(), addr))
	require.NoError(t, f.emailRepo.Confirm(context.Background(), addr.ID, time.Now()))

	return user
}

// createTestClient stores a confidential client allowed to use the default
// redirect URI and scopes.
func (f *testFixture) createTestClient(t *testing.T) *clients.Client {
	t.Helper()

	client := &clients.Client{
		ID:           testClientID,
		Type:         clients.ClientTypeConfidential,
		Name:         testClientName,
		Secret:       testClientSecret,
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"openid", "profile", "email"},
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.clientRepo.Upsert(context.Background(), client))
	return client
}

// createSecondClient stores another confidential client so cross-client
// checks have something to collide with.
func (f *testFixture) createSecondClient(t *testing.T, id, secret string) *clients.Client {
	t.Helper()

	client := &clients.Client{
		ID:           id,
		Type:         clients.ClientTypeConfidential,
		Name:         "Second Client",
		Secret:       secret,
		RedirectURIs: []string{testRedirectURI},
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.clientRepo.Upsert(context.Background(), client))
	return client
}

// browser returns an HTTP client with a cookie jar that does not follow
// redirects, so tests can assert on each Location header in a flow.
func (f *testFixture) browser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// get issues a GET through the client and returns the response with its body
// already read.
func (f *testFixture) get(t *testing.T, client *http.Client, path string) (*http.Response, string) {
	t.Helper()

	resp, err := client.Get(f.ts.URL + path)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

// postForm issues a form POST through the client and returns the response
// with its body already read.
func (f *testFixture) postForm(t *testing.T, client *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()

	resp, err := client.PostForm(f.ts.URL+path, form)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

// signIn submits the login form and asserts it succeeded. The session cookie
// ends up in the client's jar.
func (f *testFixture) signIn(t *testing.T, client *http.Client, username, password string) {
	t.Helper()

	resp, _ := f.postForm(t, client, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

// decodeJSON unmarshals a response body into dst.
func decodeJSON(t *testing.T, body string, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(body), dst))
}

func parseInt64(t *testing.T, s string) int64 {
	t.Helper()
	v, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return v
}

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func TestServer_IndexPage(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, f.browser(t), "/")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	require.Contains(t, body, "My account")
}

func TestServer_UnknownRouteIs404(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/no-such-page")

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_HealthcheckWithoutDatabase(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, f.browser(t), "/health")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestServer_SecurityHeadersOnPages(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/login")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	require.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors")
}

func TestServer_RequestIDOnAPIResponses(t *testing.T) {
	f := setupTestFixture(t)

	resp, _ := f.get(t, f.browser(t), "/.well-known/openid-configuration")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestServer_AbsoluteURLsUseConfiguredBase(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://id.example.com")
	f := setupTestFixture(t)

	resp, body := f.get(t, f.browser(t), "/.well-known/openid-configuration")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Issuer                string `json:"issuer"`
		AuthorizationEndpoint string `json:"authorization_endpoint"`
	}
	decodeJSON(t, body, &doc)
	require.Equal(t, "https://id.example.com", doc.Issuer)
	require.True(t, strings.HasPrefix(doc.AuthorizationEndpoint, "https://id.example.com/"))
}
