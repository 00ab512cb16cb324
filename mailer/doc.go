// Package mailer delivers verification and password-reset email over SMTP
// using go-mail. Bodies are rendered from embedded templates as a plain-text
// part with an HTML alternative.
package mailer
