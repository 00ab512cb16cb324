package blogauth

import (
	"context"

	internalflows "github.com/OmorFaruk63/blogauth/internal/flows"
	"go.uber.org/zap"
)

// sendMail bounds one delivery by Mail.SendTimeout. The caller decides what
// a failure means; account flows log and swallow it.
func (e *Engine) sendMail(ctx context.Context, msg internalflows.EmailMessage, send func(context.Context, EmailMessage) error) error {
	if e.config.Mail.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Mail.SendTimeout)
		defer cancel()
	}
	return send(ctx, EmailMessage{
		To:        msg.To,
		Name:      msg.Name,
		URL:       msg.URL,
		ExpiresAt: msg.ExpiresAt,
	})
}

func (e *Engine) notifierOrNop() Notifier {
	if e.notifier == nil {
		return logNotifier{logger: e.log()}
	}
	return e.notifier
}

// logNotifier is used when no mail transport is configured. It records that
// a message would have been sent without the link itself.
type logNotifier struct {
	logger *zap.Logger
}

func (n logNotifier) SendVerificationEmail(_ context.Context, msg EmailMessage) error {
	n.logger.Info("mail transport not configured, verification email skipped", zap.String("to", msg.To))
	return nil
}

func (n logNotifier) SendPasswordResetEmail(_ context.Context, msg EmailMessage) error {
	n.logger.Info("mail transport not configured, password reset email skipped", zap.String("to", msg.To))
	return nil
}
