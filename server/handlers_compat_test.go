package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// compatLogin posts a m.login.password request and returns the decoded
// response body.
func (f *testFixture) compatLogin(t *testing.T, payload string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(f.ts.URL+"/_matrix/client/v3/login", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestCompatLogin_AdvertisesPasswordFlow(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.get(t, f.browser(t), "/_matrix/client/v3/login")

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var flows struct {
		Flows []struct {
			Type string `json:"type"`
		} `json:"flows"`
	}
	decodeJSON(t, body, &flows)
	require.Len(t, flows.Flows, 1)
	require.Equal(t, "m.login.password", flows.Flows[0].Type)
}

func TestCompatLogin_Success(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://id.example.com")
	f := setupTestFixture(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	resp, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"identifier": {"type": "m.id.user", "user": "`+testUsername+`"},
		"password": "`+testUserPassword+`"
	}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "@"+testUsername+":id.example.com", body["user_id"])
	require.Equal(t, "id.example.com", body["home_server"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["device_id"])
	require.Greater(t, body["expires_in_ms"].(float64), float64(0))
}

func TestCompatLogin_AcceptsFullUserID(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://id.example.com")
	f := setupTestFixture(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	resp, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"identifier": {"type": "m.id.user", "user": "@`+testUsername+`:id.example.com"},
		"password": "`+testUserPassword+`"
	}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "@"+testUsername+":id.example.com", body["user_id"])
}

func TestCompatLogin_LegacyUserField(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	resp, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"user": "`+testUsername+`",
		"password": "`+testUserPassword+`"
	}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["access_token"])
}

func TestCompatLogin_WrongPassword(t *testing.T) {
	f := setupTestFixture(t)
	f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	resp, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"user": "`+testUsername+`",
		"password": "wrong-password"
	}`)

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "M_FORBIDDEN", body["errcode"])
}

func TestCompatLogin_BlockedAccount(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createTestUser(t, testUsername, testUserEmail, testUserPassword)
	require.NoError(t, f.userRepo.SetBlocked(context.Background(), user.ID, true))

	resp, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"user": "`+testUsername+`",
		"password": "`+testUserPassword+`"
	}`)

	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "M_USER_DEACTIVATED", body["errcode"])
}

func TestCompatLogin_UnsupportedType(t *testing.T) {
	f := setupTestFixture(t)

	resp, body := f.compatLogin(t, `{"type": "m.login.sso"}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "M_UNKNOWN", body["errcode"])
}

func TestCompatLogin_MalformedJSON(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := http.Post(f.ts.URL+"/_matrix/client/v3/login", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCompatLogin_CreatesBrowserSession(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	resp, _ := f.compatLogin(t, `{
		"type": "m.login.password",
		"user": "`+testUsername+`",
		"password": "`+testUserPassword+`"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	repo, err := f.sessionRepo.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = repo.Cancel(context.Background()) }()
	sessions, err := repo.ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.True(t, sessions[0].Active())
}

func TestCompatLogout_RevokesTokenAndFinishesSession(t *testing.T) {
	f := setupTestFixture(t)
	user := f.createTestUser(t, testUsername, testUserEmail, testUserPassword)

	_, body := f.compatLogin(t, `{
		"type": "m.login.password",
		"user": "`+testUsername+`",
		"password": "`+testUserPassword+`"
	}`)
	accessToken := body["access_token"].(string)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/_matrix/client/v3/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The token no longer introspects as active.
	stored, err := f.issuer.Active(context.Background(), accessToken)
	require.NoError(t, err)
	require.Nil(t, stored)

	// The browser session behind it is finished.
	repo, err := f.sessionRepo.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = repo.Cancel(context.Background()) }()
	sessions, err := repo.ListForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].FinishedAt)
}

func TestCompatLogout_MissingToken(t *testing.T) {
	f := setupTestFixture(t)

	resp, err := http.Post(f.ts.URL+"/_matrix/client/v3/logout", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCompatLogout_UnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/_matrix/client/v3/logout", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
