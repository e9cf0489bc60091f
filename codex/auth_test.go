package codex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testJWT fabricates an unsigned token with the given expiry and account
// claim; the store only ever inspects the payload segment.
func testJWT(t *testing.T, exp time.Time, accountID string) string {
	t.Helper()

	claims := map[string]any{"exp": exp.Unix()}
	if accountID != "" {
		claims["https://api.openai.com/auth"] = map[string]any{
			"chatgpt_account_id": accountID,
		}
	}

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) +
		"." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func writeCredFile(t *testing.T, access, refresh string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth.json")
	file := credFile{Tokens: credTokens{AccessToken: access, RefreshToken: refresh}}
	raw, err := json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	return path
}

func TestObtainMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope.json"), nil)

	_, err := s.Obtain(context.Background(), RefreshMarginCall)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestObtainEmptyAccessToken(t *testing.T) {
	path := writeCredFile(t, "", "refresh")
	s := NewFileStore(path, nil)

	_, err := s.Obtain(context.Background(), RefreshMarginCall)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestObtainFreshTokenSkipsRefresh(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer srv.Close()

	access := testJWT(t, time.Now().Add(time.Hour), "acct_42")
	s := NewFileStore(writeCredFile(t, access, "refresh-1"), nil)
	s.SetTokenURL(srv.URL)

	cred, err := s.Obtain(context.Background(), RefreshMarginCall)
	require.NoError(t, err)

	assert.Equal(t, 0, refreshCalls, "a token safely inside the margin must trigger zero network calls")
	assert.Equal(t, access, cred.AccessToken)
	assert.Equal(t, "acct_42", cred.AccountID)
	assert.Equal(t, defaultClientID, cred.ClientID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, 2*time.Second)
}

func TestObtainNearExpiryRefreshesOnce(t *testing.T) {
	newAccess := testJWT(t, time.Now().Add(time.Hour), "acct_42")

	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
		assert.Equal(t, defaultClientID, r.Form.Get("client_id"))

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  newAccess,
			"refresh_token": "refresh-2",
		})
	}))
	defer srv.Close()

	oldAccess := testJWT(t, time.Now().Add(10*time.Second), "acct_42")
	path := writeCredFile(t, oldAccess, "refresh-1")
	s := NewFileStore(path, nil)
	s.SetTokenURL(srv.URL)

	cred, err := s.Obtain(context.Background(), RefreshMarginCall)
	require.NoError(t, err)

	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, newAccess, cred.AccessToken)
	assert.Equal(t, "refresh-2", cred.RefreshToken)
	assert.Equal(t, "acct_42", cred.AccountID)

	// the whole file is rewritten with the new pair and a refresh timestamp
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var file credFile
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, newAccess, file.Tokens.AccessToken)
	assert.Equal(t, "refresh-2", file.Tokens.RefreshToken)
	assert.WithinDuration(t, time.Now(), file.LastRefresh, 5*time.Second)
}

func TestObtainRefreshKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	newAccess := testJWT(t, time.Now().Add(time.Hour), "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": newAccess})
	}))
	defer srv.Close()

	oldAccess := testJWT(t, time.Now().Add(-time.Minute), "")
	s := NewFileStore(writeCredFile(t, oldAccess, "refresh-1"), nil)
	s.SetTokenURL(srv.URL)

	cred, err := s.Obtain(context.Background(), RefreshMarginCall)
	require.NoError(t, err)
	assert.Equal(t, newAccess, cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
}

func TestObtainRefreshFailureFallsBackToStaleToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	oldAccess := testJWT(t, time.Now().Add(-time.Minute), "acct_42")
	path := writeCredFile(t, oldAccess, "refresh-1")
	s := NewFileStore(path, nil)
	s.SetTokenURL(srv.URL)

	cred, err := s.Obtain(context.Background(), RefreshMarginCall)
	require.NoError(t, err, "a failed refresh must not fail the call")
	assert.Equal(t, oldAccess, cred.AccessToken)

	// and the stored pair is left untouched
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var file credFile
	require.NoError(t, json.Unmarshal(raw, &file))
	assert.Equal(t, oldAccess, file.Tokens.AccessToken)
	assert.Equal(t, "refresh-1", file.Tokens.RefreshToken)
}

func TestObtainExpiredWithoutRefreshTokenReturnsStale(t *testing.T) {
	oldAccess := testJWT(t, time.Now().Add(-time.Hour), "acct_42")
	s := NewFileStore(writeCredFile(t, oldAccess, ""), nil)

	cred, err := s.Obtain(context.Background(), RefreshMarginCall)
	require.NoError(t, err)
	assert.Equal(t, oldAccess, cred.AccessToken)
}

func TestTokenExpiryUndecodableToken(t *testing.T) {
	assert.True(t, tokenExpiry("garbage").IsZero())
	assert.True(t, tokenExpiry("a.!!!.c").IsZero())
	assert.Empty(t, tokenAccountID("garbage"))
}
