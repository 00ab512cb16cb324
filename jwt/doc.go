// Package jwt signs and parses session tokens. A session token carries the
// account ID as subject plus the account's role, and is verified with a
// strict algorithm allow-list.
package jwt
