// Package security derives a security-posture summary from engine settings.
// The root package copies it into the public SecurityReport type; the CLI
// prints it so operators can check a deployment before serving traffic.
package security
