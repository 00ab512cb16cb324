package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/OmorFaruk63/blogauth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newCreateAdminCmd(c *cli) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}
			password, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.store.Migrate(cmd.Context()); err != nil {
				return err
			}

			acc, err := a.engine.CreateAccount(cmd.Context(), blogauth.RegisterRequest{
				Name:     name,
				Email:    email,
				Password: password,
			}, blogauth.RoleAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", acc.Email, acc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	return cmd
}

// promptPassword reads a password twice without echo on a terminal, or one
// line from in otherwise.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !isTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		pw := strings.TrimRight(line, "\r\n")
		if pw == "" {
			return "", errors.New("empty password")
		}
		return pw, nil
	}

	fd := int(f.Fd())
	fmt.Fprint(out, "Password: ")
	first, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Repeat password: ")
	second, err := readPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func newPruneTokensCmd(c *cli) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "prune-tokens",
		Short: "Delete expired verification and reset tokens from the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.PruneExpiredTokens(cmd.Context(), time.Now().Add(-grace))
			if err != nil {
				return err
			}
			c.logger.Info("expired tokens pruned", zap.Int64("removed", n))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired tokens\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "keep tokens that expired less than this long ago")
	return cmd
}

func newSecurityReportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "security-report",
		Short: "Print the effective security posture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reportView(a.engine.SecurityReport()))
		},
	}
}

type securityReportView struct {
	SigningAlgorithm        string   `json:"signing_algorithm"`
	SessionTTL              string   `json:"session_ttl"`
	Argon2                  string   `json:"argon2"`
	PasswordMinLength       int      `json:"password_min_length"`
	LockoutThreshold        int      `json:"lockout_threshold"`
	LockoutDuration         string   `json:"lockout_duration"`
	VerificationTokenTTL    string   `json:"verification_token_ttl"`
	ResendLimit             int      `json:"resend_limit"`
	ResendWindow            string   `json:"resend_window"`
	ResetTokenTTL           string   `json:"reset_token_ttl"`
	ResetThrottleActive     bool     `json:"reset_throttle_active"`
	RegisterThrottleActive  bool     `json:"register_throttle_active"`
	FederatedRequiresVerify bool     `json:"federated_requires_verified_email"`
	AuditEnabled            bool     `json:"audit_enabled"`
	Warnings                []string `json:"warnings"`
}

func reportView(r blogauth.SecurityReport) securityReportView {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return securityReportView{
		SigningAlgorithm: r.SigningAlgorithm,
		SessionTTL:       r.SessionTTL.String(),
		Argon2: fmt.Sprintf("m=%d,t=%d,p=%d,salt=%d,key=%d",
			r.Argon2.Memory, r.Argon2.Time, r.Argon2.Parallelism, r.Argon2.SaltLength, r.Argon2.KeyLength),
		PasswordMinLength:       r.Argon2.MinLength,
		LockoutThreshold:        r.LockoutThreshold,
		LockoutDuration:         r.LockoutDuration.String(),
		VerificationTokenTTL:    r.VerificationTokenTTL.String(),
		ResendLimit:             r.ResendLimit,
		ResendWindow:            r.ResendWindow.String(),
		ResetTokenTTL:           r.ResetTokenTTL.String(),
		ResetThrottleActive:     r.ResetThrottleActive,
		RegisterThrottleActive:  r.RegisterThrottleActive,
		FederatedRequiresVerify: r.FederatedRequiresVerify,
		AuditEnabled:            r.AuditEnabled,
		Warnings:                warnings,
	}
}
