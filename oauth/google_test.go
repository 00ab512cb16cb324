package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeGoogle struct {
	*httptest.Server
	userInfo   map[string]any
	infoStatus int
	gotCode    string
	gotBearer  string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		infoStatus: http.StatusOK,
		userInfo: map[string]any{
			"sub":            "g-123",
			"email":          "ada@x.com",
			"email_verified": true,
			"name":           "Ada",
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.gotCode = r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"token_type":    "Bearer",
			"refresh_token": "rt-1",
			"expires_in":    3600,
			"id_token":      "idt-1",
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.gotBearer = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.infoStatus)
		_ = json.NewEncoder(w).Encode(f.userInfo)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestProvider(t *testing.T, f *fakeGoogle) *Google {
	t.Helper()
	g, err := NewGoogle(GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://blog.test/api/auth/oauth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   f.URL + "/auth",
			TokenURL:  f.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: f.URL + "/userinfo",
		HTTPClient:  f.Client(),
	})
	require.NoError(t, err)
	return g
}

func TestExchangeBuildsProfile(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestProvider(t, f)

	profile, err := g.Exchange(context.Background(), "code-1")
	require.NoError(t, err)

	assert.Equal(t, "code-1", f.gotCode)
	assert.Equal(t, "Bearer at-1", f.gotBearer)
	assert.Equal(t, ProviderGoogle, profile.Provider)
	assert.Equal(t, "g-123", profile.Subject)
	assert.Equal(t, "ada@x.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, "at-1", profile.AccessToken)
	assert.Equal(t, "rt-1", profile.RefreshToken)
	assert.Equal(t, "idt-1", profile.IDToken)
	assert.Equal(t, "Bearer", profile.TokenType)
	require.NotNil(t, profile.ExpiresAt)
}

func TestExchangeReadsLegacyVerifiedField(t *testing.T) {
	f := newFakeGoogle(t)
	f.userInfo = map[string]any{"id": "g-9", "email": "b@x.com", "verified_email": true}
	g := newTestProvider(t, f)

	profile, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "g-9", profile.Subject)
	assert.True(t, profile.EmailVerified)
}

func TestExchangeUnverifiedEmail(t *testing.T) {
	f := newFakeGoogle(t)
	f.userInfo["email_verified"] = false
	g := newTestProvider(t, f)

	profile, err := g.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.False(t, profile.EmailVerified)
}

func TestExchangeUserInfoFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.infoStatus = http.StatusUnauthorized
	g := newTestProvider(t, f)

	_, err := g.Exchange(context.Background(), "code")
	require.ErrorIs(t, err, ErrUserInfo)
}

func TestExchangeRequiresCode(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestProvider(t, f)

	_, err := g.Exchange(context.Background(), " ")
	require.ErrorIs(t, err, ErrExchangeFailed)
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	f := newFakeGoogle(t)
	g := newTestProvider(t, f)

	state, err := NewState()
	require.NoError(t, err)

	u, err := url.Parse(g.AuthCodeURL(state))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, state, q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))
	assert.Equal(t, "https://blog.test/api/auth/oauth/google/callback", q.Get("redirect_uri"))
}

func TestCheckState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	assert.NoError(t, CheckState(a, a))
	assert.ErrorIs(t, CheckState(a, b), ErrStateMismatch)
	assert.ErrorIs(t, CheckState("", ""), ErrStateMismatch)
	assert.ErrorIs(t, CheckState("short", "short"), ErrStateMismatch)
}

func TestNewGoogleValidates(t *testing.T) {
	_, err := NewGoogle(GoogleConfig{ClientSecret: "s", RedirectURL: "https://x"})
	require.Error(t, err)
	_, err = NewGoogle(GoogleConfig{ClientID: "c", ClientSecret: "s"})
	require.Error(t, err)

	g, err := NewGoogle(GoogleConfig{ClientID: "c", ClientSecret: "s", RedirectURL: "https://x/cb"})
	require.NoError(t, err)
	assert.Equal(t, "google", g.Name())
	assert.Equal(t, DefaultUserInfoURL, g.userInfoURL)
}
