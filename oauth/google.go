package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/internal"
	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

// ProviderGoogle is the provider name stored on federated identities.
const ProviderGoogle = "google"

// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// DefaultScopes request identity only.
var DefaultScopes = []string{"openid", "email", "profile"}

var (
	ErrStateMismatch  = errors.New("oauth state mismatch")
	ErrExchangeFailed = errors.New("oauth code exchange failed")
	ErrUserInfo       = errors.New("oauth userinfo request failed")
)

// GoogleConfig configures the Google provider.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// Endpoint and UserInfoURL default to Google's; tests point them at a
	// local server.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
	HTTPClient  *http.Client
}

// Google runs the authorization-code flow against Google.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogle validates cfg and returns a provider.
func NewGoogle(cfg GoogleConfig) (*Google, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("google oauth requires client id and secret")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google oauth requires a redirect url")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
		endpoint = googleOAuth.Endpoint
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultUserInfoURL
	}

	return &Google{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfo,
		httpClient:  cfg.HTTPClient,
	}, nil
}

// Name returns ProviderGoogle.
func (g *Google) Name() string { return ProviderGoogle }

// NewState returns a fresh state value for one login attempt.
func NewState() (string, error) {
	return internal.NewStateValue()
}

// CheckState compares the state returned by the provider with the one
// issued for this browser.
func CheckState(got, want string) error {
	if internal.DecodeStateValue(got) != nil || internal.DecodeStateValue(want) != nil {
		return ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// AuthCodeURL returns the consent-screen URL for state.
func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type userInfo struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	// verified_email is the v2 endpoint's spelling.
	VerifiedEmail *bool  `json:"verified_email"`
	Name          string `json:"name"`
	ID            string `json:"id"`
}

// Exchange trades code for tokens and fetches the user's profile.
func (g *Google) Exchange(ctx context.Context, code string) (*blogauth.FederatedProfile, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing code", ErrExchangeFailed)
	}
	if g.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	}

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	subject := info.Subject
	if subject == "" {
		subject = info.ID
	}
	verified := false
	if info.EmailVerified != nil {
		verified = *info.EmailVerified
	} else if info.VerifiedEmail != nil {
		verified = *info.VerifiedEmail
	}

	profile := &blogauth.FederatedProfile{
		Provider:      ProviderGoogle,
		Subject:       subject,
		Email:         info.Email,
		EmailVerified: verified,
		Name:          info.Name,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		TokenType:     token.Type(),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		profile.IDToken = idToken
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		profile.ExpiresAt = &expiry
	}
	return profile, nil
}

func (g *Google) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	client := g.config.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUserInfo, err)
	}
	return &info, nil
}
