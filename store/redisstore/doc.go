// Package redisstore provides Redis-backed implementations of
// blogauth.TokenStore and blogauth.RateLimiter for deployments that run more
// than one process.
//
// Token records are versioned binary values. Consume and purge run as Lua
// scripts so a token cannot be consumed twice. Accounts stay in a SQL store;
// see package sqlstore.
package redisstore
