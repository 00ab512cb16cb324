package blogauth

import (
	"strings"
	"testing"
	"time"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	h := newTestHarness(t, nil)
	report := h.engine.SecurityReport()

	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256, got %q", report.SigningAlgorithm)
	}
	if report.LockoutThreshold != 5 || report.LockoutDuration != 15*time.Minute {
		t.Fatalf("unexpected lockout posture %d/%v", report.LockoutThreshold, report.LockoutDuration)
	}
	if report.ResendLimit != 2 || report.ResendWindow != time.Minute {
		t.Fatalf("unexpected resend posture %d/%v", report.ResendLimit, report.ResendWindow)
	}
	if report.VerificationTokenTTL != 24*time.Hour || report.ResetTokenTTL != time.Hour {
		t.Fatalf("unexpected token ttls %v/%v", report.VerificationTokenTTL, report.ResetTokenTTL)
	}
	if report.Argon2.MinLength != 3 {
		t.Fatalf("expected min length 3, got %d", report.Argon2.MinLength)
	}

	joined := strings.Join(report.Warnings, "\n")
	for _, want := range []string{"shared secret", "argon2 cost", "below 8"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning containing %q in %q", want, joined)
		}
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if r := e.SecurityReport(); r.LockoutThreshold != 0 || r.Warnings != nil {
		t.Fatalf("expected zero report, got %+v", r)
	}
}
