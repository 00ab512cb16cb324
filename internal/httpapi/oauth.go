package httpapi

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/oauth"
	"go.uber.org/zap"
)

// Error codes the login page understands.
const (
	oauthErrNotLinked    = "OAuthAccountNotLinked"
	oauthErrAccessDenied = "AccessDenied"
	oauthErrCallback     = "OAuthCallback"
)

func (a *api) oauthLogin(w http.ResponseWriter, r *http.Request) {
	if a.google == nil {
		http.NotFound(w, r)
		return
	}
	state, err := oauth.NewState()
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.cookies.setState(w, state)
	http.Redirect(w, r, a.google.AuthCodeURL(state), http.StatusFound)
}

func (a *api) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if a.google == nil {
		http.NotFound(w, r)
		return
	}

	var want string
	if c, err := r.Cookie(stateCookieName); err == nil {
		want = c.Value
	}
	a.cookies.clearState(w)

	q := r.URL.Query()
	if err := oauth.CheckState(q.Get("state"), want); err != nil {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	if q.Get("error") != "" {
		a.loginError(w, r, oauthErrAccessDenied)
		return
	}

	profile, err := a.google.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		a.logger.Warn("oauth exchange failed",
			zap.String("provider", a.google.Name()),
			zap.Error(err),
		)
		a.loginError(w, r, oauthErrCallback)
		return
	}

	res, err := a.engine.CompleteFederatedSignIn(r.Context(), *profile)
	switch {
	case err == nil:
	case errors.Is(err, blogauth.ErrFederatedAccountNotLinked):
		a.loginError(w, r, oauthErrNotLinked)
		return
	case errors.Is(err, blogauth.ErrFederatedEmailUnverified),
		errors.Is(err, blogauth.ErrFederatedProfileInvalid):
		a.loginError(w, r, oauthErrAccessDenied)
		return
	default:
		a.fail(w, r, err)
		return
	}

	a.cookies.setSession(w, res.SessionToken, res.ExpiresAt)
	http.Redirect(w, r, a.siteURL("/"), http.StatusFound)
}

func (a *api) loginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, a.siteURL("/login?error="+url.QueryEscape(code)), http.StatusFound)
}
