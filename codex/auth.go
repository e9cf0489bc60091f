package codex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	oauthTokenURL   = "https://auth.openai.com/oauth/token"
	defaultClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	// RefreshMarginCall is checked right before each request.
	RefreshMarginCall = 60 * time.Second

	// RefreshMarginIdle is the wider margin used by long-lived model
	// instances that refresh lazily between calls.
	RefreshMarginIdle = 5 * time.Minute
)

// Credential is one usable token pair. AccountID is derived from the access
// token on every Obtain and is never written back to disk by this package.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ClientID     string
	AccountID    string
	ExpiresAt    time.Time
}

// CredentialStore yields a usable credential for one call, refreshing and
// persisting it as a side effect when it is about to expire.
type CredentialStore interface {
	Obtain(ctx context.Context, margin time.Duration) (Credential, error)
}

// credFile mirrors the on-disk layout. The whole file is rewritten on every
// successful refresh; it is never partially updated.
type credFile struct {
	Tokens      credTokens `json:"tokens"`
	LastRefresh time.Time  `json:"last_refresh"`
}

type credTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
}

// FileStore is a CredentialStore backed by a JSON file, as written by the
// external login flow. The refresh-and-persist step holds an in-process
// mutex; concurrent refreshes from other processes are tolerated as
// idempotent best-effort (the atomic rename keeps the file always whole).
type FileStore struct {
	path     string
	client   *http.Client
	log      *slog.Logger
	tokenURL string
	mu       sync.Mutex
}

func NewFileStore(path string, log *slog.Logger) *FileStore {
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{
		path:     path,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
		tokenURL: oauthTokenURL,
	}
}

// SetTokenURL overrides the OAuth token endpoint, for tests.
func (s *FileStore) SetTokenURL(url string) {
	s.tokenURL = url
}

// Obtain loads the stored credential and refreshes it when it expires within
// margin. A failed refresh is logged and the existing (soon-to-expire) pair
// is returned anyway, since the downstream call is the real arbiter of token
// validity. Likewise, an already-expired token with no refresh token is
// returned as-is.
func (s *FileStore) Obtain(ctx context.Context, margin time.Duration) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return Credential{}, err
	}

	cred := Credential{
		AccessToken:  file.Tokens.AccessToken,
		RefreshToken: file.Tokens.RefreshToken,
		ClientID:     file.Tokens.ClientID,
		ExpiresAt:    tokenExpiry(file.Tokens.AccessToken),
	}
	if cred.ClientID == "" {
		cred.ClientID = defaultClientID
	}

	if time.Until(cred.ExpiresAt) < margin && cred.RefreshToken != "" {
		refreshed, err := s.refresh(ctx, cred)
		if err != nil {
			s.log.Warn("token refresh failed, continuing with current token", "err", err)
		} else {
			cred = refreshed
		}
	}

	// recomputed on every call, never cached beyond this one
	cred.AccountID = tokenAccountID(cred.AccessToken)

	return cred, nil
}

func (s *FileStore) load() (credFile, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return credFile{}, ErrMissingCredentials
	}
	if err != nil {
		return credFile{}, fmt.Errorf("FileStore.load: %w", err)
	}

	var file credFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return credFile{}, fmt.Errorf("FileStore.load: malformed credential file: %w", err)
	}

	if file.Tokens.AccessToken == "" {
		return credFile{}, ErrMissingCredentials
	}

	return file, nil
}

// refresh exchanges the refresh token for a new pair and persists it. The
// OAuth endpoint may rotate the refresh token; when it doesn't, the old one
// is kept.
func (s *FileStore) refresh(ctx context.Context, cred Credential) (Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", cred.ClientID)

	req, err := http.NewRequestWithContext(ctx, "POST", s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Credential{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Credential{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return Credential{}, fmt.Errorf("token endpoint returned no access token")
	}

	next := cred
	next.AccessToken = body.AccessToken
	next.ExpiresAt = tokenExpiry(body.AccessToken)
	if body.RefreshToken != "" {
		next.RefreshToken = body.RefreshToken
	}

	if err := s.persist(next); err != nil {
		return Credential{}, err
	}

	return next, nil
}

// persist rewrites the whole credential file atomically: either the new pair
// fully replaces the old one, or the old file is left untouched.
func (s *FileStore) persist(cred Credential) error {
	file := credFile{
		Tokens: credTokens{
			AccessToken:  cred.AccessToken,
			RefreshToken: cred.RefreshToken,
			ClientID:     cred.ClientID,
		},
		LastRefresh: time.Now().UTC(),
	}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("FileStore.persist: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".auth-*.json")
	if err != nil {
		return fmt.Errorf("FileStore.persist: %w", err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("FileStore.persist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("FileStore.persist: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("FileStore.persist: %w", err)
	}

	return nil
}

// jwtClaims decodes the payload segment of a JWT without verifying it; the
// token is only inspected for its expiry and account claims.
func jwtClaims(token string) ([]byte, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	claims, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

// tokenExpiry returns the token's exp claim, or the zero time when the token
// is not decodable (which downstream treats as already expired).
func tokenExpiry(token string) time.Time {
	claims, ok := jwtClaims(token)
	if !ok {
		return time.Time{}
	}

	exp := gjson.GetBytes(claims, "exp")
	if !exp.Exists() {
		return time.Time{}
	}
	return time.Unix(exp.Int(), 0)
}

// tokenAccountID extracts the account id embedded in the access token's auth
// claim. An empty result just means the account-scoping header is omitted.
func tokenAccountID(token string) string {
	claims, ok := jwtClaims(token)
	if !ok {
		return ""
	}

	return gjson.GetBytes(claims, `https://api\.openai\.com/auth.chatgpt_account_id`).String()
}
