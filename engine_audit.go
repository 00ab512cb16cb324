package blogauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventAccountLocked              = "account_locked"
	auditEventPasswordHashUpgraded       = "password_hash_upgraded"
	auditEventAccountCreationSuccess     = "account_creation_success"
	auditEventAccountCreationDuplicate   = "account_creation_duplicate"
	auditEventAccountCreationFailure     = "account_creation_failure"
	auditEventEmailVerificationRequest   = "email_verification_request"
	auditEventEmailVerificationConfirm   = "email_verification_confirm"
	auditEventPasswordResetRequest       = "password_reset_request"
	auditEventPasswordResetConfirm       = "password_reset_confirm"
	auditEventEmailDeliveryFailure       = "email_delivery_failure"
	auditEventFederatedSignIn            = "federated_sign_in"
	auditEventFederatedLinked            = "federated_linked"
	auditEventFederatedAccountCreated    = "federated_account_created"
	auditEventFederatedRejected          = "federated_rejected"
	auditEventRateLimitTriggered         = "rate_limit_triggered"
	auditEventSessionIssued              = "session_issued"
)

// AuditErrorCode is the coarse reason recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrEmailNotVerified   AuditErrorCode = "email_not_verified"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredToken       AuditErrorCode = "expired_token"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrFederatedRejected  AuditErrorCode = "federated_rejected"
	auditErrSessionInvalid     AuditErrorCode = "session_invalid"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["user_agent"] = ua
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope, email string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", email, ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return auditErrValidation
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrVerificationExpired):
		return auditErrExpiredToken
	case errors.Is(err, ErrVerificationInvalid),
		errors.Is(err, ErrPasswordResetInvalid),
		errors.Is(err, ErrTokenNotFound):
		return auditErrInvalidToken
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrAccountPendingVerification),
		errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrFederatedAccountNotLinked),
		errors.Is(err, ErrFederatedEmailUnverified),
		errors.Is(err, ErrFederatedProfileInvalid):
		return auditErrFederatedRejected
	case errors.Is(err, ErrSessionInvalid):
		return auditErrSessionInvalid
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
