// Package httpapi exposes the Engine over HTTP with a chi router.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Provider is a federated sign-in provider. *oauth.Google implements it.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*blogauth.FederatedProfile, error)
}

// Options configures the router.
type Options struct {
	Engine *blogauth.Engine
	Logger *zap.Logger

	// Google is optional; without it the oauth routes answer 404.
	Google Provider
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// BaseURL is the public site origin used for browser redirects.
	BaseURL string
	// CookieName defaults to middleware.DefaultCookieName.
	CookieName string
	// SecureCookies sets the Secure attribute on every cookie.
	SecureCookies bool
	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

type api struct {
	engine  *blogauth.Engine
	logger  *zap.Logger
	google  Provider
	baseURL string
	cookies cookieJar
}

// NewRouter wires every route onto a chi router.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = middleware.DefaultCookieName
	}

	a := &api{
		engine:  opts.Engine,
		logger:  logger.Named("http"),
		google:  opts.Google,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		cookies: cookieJar{session: cookieName, secure: opts.SecureCookies},
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(recoverer(a.logger))
	r.Use(accessLog(a.logger))
	r.Use(clientContext)

	r.Get("/healthz", a.healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", a.register)
		r.Post("/login", a.login)
		r.Post("/logout", a.logout)
		r.Get("/verify-email", a.verifyEmail)
		r.Post("/resend-verification", a.resendVerification)
		r.Post("/forgot-password", a.forgotPassword)
		r.Post("/reset-password", a.resetPassword)
		r.With(middleware.RequireSession(a.engine, cookieName)).Get("/session", a.session)

		r.Get("/oauth/google/login", a.oauthLogin)
		r.Get("/oauth/google/callback", a.oauthCallback)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(a.engine, cookieName))
		r.Get("/ping", a.adminPing)
	})

	return r
}

// NewServer returns an http.Server with the timeouts used in production.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}

func (a *api) siteURL(path string) string {
	return a.baseURL + path
}
