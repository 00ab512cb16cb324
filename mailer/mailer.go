package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Config describes the SMTP relay.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender address.
	From     string
	FromName string
	// TLS is "mandatory" (default), "opportunistic", "none" or "implicit"
	// (SMTPS, usually port 465).
	TLS     string
	Timeout time.Duration
}

// Sender delivers composed messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer implements blogauth.Notifier by rendering the embedded templates
// and handing the result to a Sender.
type Mailer struct {
	sender   Sender
	from     string
	fromName string
	render   *renderer
	logger   *zap.Logger
	now      func() time.Time
}

var _ blogauth.Notifier = (*Mailer)(nil)

// Option customizes a Mailer.
type Option func(*Mailer)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(m *Mailer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now when describing link lifetimes.
func WithClock(now func() time.Time) Option {
	return func(m *Mailer) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Mailer on top of sender.
func New(sender Sender, from, fromName string, opts ...Option) (*Mailer, error) {
	if sender == nil {
		return nil, errors.New("mailer: sender is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("mailer: from address is required")
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	m := &Mailer{
		sender:   sender,
		from:     from,
		fromName: fromName,
		render:   r,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// NewSMTP creates a Mailer that delivers through the relay in cfg.
func NewSMTP(cfg Config, opts ...Option) (*Mailer, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.From, cfg.FromName, opts...)
}

// NewClient builds the go-mail client for cfg.
func NewClient(cfg Config) (*mail.Client, error) {
	clientOpts := []mail.Option{}
	if cfg.Port > 0 {
		clientOpts = append(clientOpts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		clientOpts = append(clientOpts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	switch strings.ToLower(cfg.TLS) {
	case "", "mandatory":
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSMandatory))
	case "opportunistic":
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	case "none":
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.NoTLS))
	case "implicit":
		clientOpts = append(clientOpts, mail.WithSSL())
	default:
		return nil, fmt.Errorf("mailer: unknown TLS mode %q", cfg.TLS)
	}

	client, err := mail.NewClient(cfg.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("mailer: smtp client: %w", err)
	}
	return client, nil
}

// SendVerificationEmail implements blogauth.Notifier.
func (m *Mailer) SendVerificationEmail(ctx context.Context, msg blogauth.EmailMessage) error {
	return m.send(ctx, KindVerify, msg)
}

// SendPasswordResetEmail implements blogauth.Notifier.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, msg blogauth.EmailMessage) error {
	return m.send(ctx, KindReset, msg)
}

func (m *Mailer) send(ctx context.Context, kind Kind, msg blogauth.EmailMessage) error {
	out, err := m.compose(kind, msg)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.sender.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mailer: send %s email: %w", kind, err)
	}
	// Never log msg.URL; it carries the raw token.
	m.logger.Debug("email sent",
		zap.String("kind", string(kind)),
		zap.String("to", msg.To),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (m *Mailer) compose(kind Kind, msg blogauth.EmailMessage) (*mail.Msg, error) {
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "there"
	}
	text, html, err := m.render.render(kind, templateData{
		Name:     name,
		URL:      msg.URL,
		ValidFor: validFor(msg.ExpiresAt, m.now()),
	})
	if err != nil {
		return nil, err
	}

	out := mail.NewMsg()
	if m.fromName != "" {
		err = out.FromFormat(m.fromName, m.from)
	} else {
		err = out.From(m.from)
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: recipient: %w", err)
	}
	out.Subject(subjects[kind])
	out.SetDate()
	out.SetMessageID()
	out.SetBodyString(mail.TypeTextPlain, text)
	out.AddAlternativeString(mail.TypeTextHTML, html)
	return out, nil
}
