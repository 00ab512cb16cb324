package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type captureSender struct {
	msgs []*mail.Msg
	err  error
}

func (c *captureSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()
	m, err := New(sender, "noreply@blog.test", "Blog", WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return m
}

func TestSendVerificationEmail(t *testing.T) {
	sender := &captureSender{}
	m := newTestMailer(t, sender)

	err := m.SendVerificationEmail(context.Background(), blogauth.EmailMessage{
		To:        "ada@x.com",
		Name:      "Ada",
		URL:       "https://blog.test/api/auth/verify-email?email=ada%40x.com&token=abc",
		ExpiresAt: now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)

	msg := sender.msgs[0]
	assert.Equal(t, []string{"<ada@x.com>"}, msg.GetToString())
	assert.Equal(t, []string{"Verify Your Email"}, msg.GetGenHeader(mail.HeaderSubject))
}

func TestSendPasswordResetEmail(t *testing.T) {
	sender := &captureSender{}
	m := newTestMailer(t, sender)

	err := m.SendPasswordResetEmail(context.Background(), blogauth.EmailMessage{
		To:        "ada@x.com",
		URL:       "https://blog.test/reset-password?token=abc&email=ada%40x.com",
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, sender.msgs, 1)
	assert.Equal(t, []string{"Reset Your Password"}, sender.msgs[0].GetGenHeader(mail.HeaderSubject))
}

func TestSendWrapsTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	m := newTestMailer(t, &captureSender{err: boom})

	err := m.SendVerificationEmail(context.Background(), blogauth.EmailMessage{To: "ada@x.com", URL: "https://x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSendRejectsBadRecipient(t *testing.T) {
	sender := &captureSender{}
	m := newTestMailer(t, sender)

	err := m.SendVerificationEmail(context.Background(), blogauth.EmailMessage{To: "not an address", URL: "https://x"})
	require.Error(t, err)
	assert.Empty(t, sender.msgs)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "a@x.com", "")
	require.Error(t, err)

	_, err = New(&captureSender{}, " ", "")
	require.Error(t, err)
}

func TestNewClientRejectsUnknownTLSMode(t *testing.T) {
	_, err := NewClient(Config{Host: "smtp.blog.test", TLS: "sometimes"})
	require.Error(t, err)

	c, err := NewClient(Config{Host: "smtp.blog.test", Port: 587, Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRenderTemplates(t *testing.T) {
	r, err := newRenderer()
	require.NoError(t, err)

	text, html, err := r.render(KindReset, templateData{
		Name:     "<Ada>",
		URL:      "https://blog.test/reset-password?token=abc&email=a%40x.com",
		ValidFor: "1 hour",
	})
	require.NoError(t, err)

	assert.Contains(t, text, "https://blog.test/reset-password?token=abc&email=a%40x.com")
	assert.Contains(t, text, "expires in 1 hour")
	assert.Contains(t, html, "&lt;Ada&gt;", "names must be escaped in html")
	assert.Contains(t, html, `href="https://blog.test/reset-password?token=abc&amp;email=a%40x.com"`)
	assert.False(t, strings.Contains(html, "<Ada>"))

	_, _, err = r.render(Kind("welcome"), templateData{})
	require.Error(t, err)
}

func TestValidFor(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{24 * time.Hour, "24 hours"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "2 hours"},
		{15 * time.Minute, "15 minutes"},
		{20 * time.Second, "1 minute"},
		{-time.Minute, "a few minutes"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, validFor(now.Add(tc.in), now), tc.in.String())
	}
}
