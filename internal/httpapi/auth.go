package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/OmorFaruk63/blogauth/middleware"
	"go.uber.org/zap"
)

const (
	verifyEmailPath   = "/verify-email"
	loginVerifiedPath = "/login?verified=true"

	forgotPasswordMessage = "If an account exists for that email, a reset link has been sent."
	resendMessage         = "If the address needs verification, a new link has been sent."
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name,omitempty"`
	Role          string    `json:"role"`
	EmailVerified bool      `json:"email_verified"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type messageResponse struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := a.engine.Register(r.Context(), blogauth.RegisterRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, messageResponse{
			Message:  "Account created. Check your email to verify it.",
			Redirect: res.Redirect,
		})
	case errors.Is(err, blogauth.ErrAccountExists):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, blogauth.ErrAccountPendingVerification):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:    "email registered and pending verification",
			Redirect: verifyEmailPath,
		})
	default:
		a.fail(w, r, err)
	}
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusUnauthorized, blogauth.ErrInvalidCredentials.Error())
		return
	}

	res, err := a.engine.Login(r.Context(), body.Email, body.Password)
	var locked *blogauth.LockedError
	switch {
	case err == nil:
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(locked.Until, time.Now())))
		writeError(w, http.StatusLocked, blogauth.ErrAccountLocked.Error())
		return
	case errors.Is(err, blogauth.ErrAccountLocked):
		writeError(w, http.StatusLocked, blogauth.ErrAccountLocked.Error())
		return
	case errors.Is(err, blogauth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, blogauth.ErrInvalidCredentials.Error())
		return
	case errors.Is(err, blogauth.ErrEmailNotVerified):
		writeJSON(w, http.StatusForbidden, errorBody{
			Error:    blogauth.ErrEmailNotVerified.Error(),
			Redirect: verifyEmailPath,
		})
		return
	default:
		a.fail(w, r, err)
		return
	}

	a.cookies.setSession(w, res.SessionToken, res.ExpiresAt)
	writeJSON(w, http.StatusOK, toAccountResponse(res))
}

func (a *api) logout(w http.ResponseWriter, _ *http.Request) {
	a.cookies.clearSession(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "signed out"})
}

func (a *api) session(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:        claims.AccountID,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      string(claims.Role),
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	})
}

func (a *api) verifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email, token := q.Get("email"), q.Get("token")
	if email == "" || token == "" {
		writeError(w, http.StatusBadRequest, blogauth.ErrVerificationInvalid.Error())
		return
	}

	err := a.engine.ConfirmEmailVerification(r.Context(), email, token)
	switch {
	case err == nil:
		http.Redirect(w, r, a.siteURL(loginVerifiedPath), http.StatusSeeOther)
	case errors.Is(err, blogauth.ErrVerificationExpired):
		writeError(w, http.StatusGone, blogauth.ErrVerificationExpired.Error())
	case errors.Is(err, blogauth.ErrVerificationInvalid):
		writeError(w, http.StatusBadRequest, blogauth.ErrVerificationInvalid.Error())
	default:
		a.fail(w, r, err)
	}
}

// resendVerification answers the same way for unknown, verified, throttled
// and failing addresses.
func (a *api) resendVerification(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := blogauth.ValidateEmail(body.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.ResendVerification(r.Context(), body.Email); err != nil {
		a.logger.Warn("verification resend failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: resendMessage})
}

// forgotPassword answers the same way whether or not the account exists.
// Backend failures are logged but not surfaced.
func (a *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body emailRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := blogauth.ValidateEmail(body.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		a.logger.Warn("password reset request failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: forgotPasswordMessage})
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Token) == "" || strings.TrimSpace(body.Email) == "" {
		writeError(w, http.StatusBadRequest, blogauth.ErrPasswordResetInvalid.Error())
		return
	}

	err := a.engine.ResetPassword(r.Context(), body.Email, body.Token, body.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated. You can now sign in."})
	case errors.Is(err, blogauth.ErrPasswordResetInvalid):
		writeError(w, http.StatusBadRequest, blogauth.ErrPasswordResetInvalid.Error())
	default:
		a.fail(w, r, err)
	}
}

func toAccountResponse(res *blogauth.LoginResult) accountResponse {
	return accountResponse{
		ID:            res.Account.ID,
		Email:         res.Account.Email,
		Name:          res.Account.Name,
		Role:          string(res.Account.Role),
		EmailVerified: res.Account.EmailVerified(),
		ExpiresAt:     res.ExpiresAt,
	}
}
