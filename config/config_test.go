package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Fatalf("expected nil config on error, got %v", cfg)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpfile := writeTemp(t, "not valid yaml: [")
	cfg, err := LoadConfig(tmpfile)
	if err == nil {
		t.Fatal("expected YAML parse error, got nil")
	}
	if cfg != nil {
		t.Fatalf("expected nil config on error, got %v", cfg)
	}
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	tmpfile := writeTemp(t, `
global:
  unknown_field: true
endpoints: {}
`)
	if _, err := LoadConfig(tmpfile); err == nil {
		t.Fatal("expected error for unknown key under global, got nil")
	}
}

func TestLoadConfig_Success(t *testing.T) {
	content := `
global:
  listen_address: ":8080"
  max_concurrent_checks: 3
  database:
    driver: sqlite
    dsn: "test.db"
  email_notifications:
    smtp_host: "smtp.example.com"
    smtp_port: 587
    events: both
    recipients: ["g@example.com"]
endpoints:
  ep1:
    kind: http
    interval_seconds: 30
    http:
      url: "http://example.com"
      expected_status: [200]
    email_override:
      recipients: ["o@example.com"]
      failure_threshold: 1
`
	tmpfile := writeTemp(t, content)

	cfg, err := LoadConfig(tmpfile)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Global.ListenAddress != ":8080" {
		t.Errorf("expected ListenAddress ':8080', got %q", cfg.Global.ListenAddress)
	}
	if cfg.Global.MaxConcurrentChecks != 3 {
		t.Errorf("expected MaxConcurrentChecks 3, got %d", cfg.Global.MaxConcurrentChecks)
	}

	ep, ok := cfg.Endpoints["ep1"]
	if !ok {
		t.Fatal("expected Endpoints['ep1'] present")
	}
	if ep.Kind != "http" {
		t.Errorf("expected kind 'http', got %q", ep.Kind)
	}
	if ep.Interval() != 30*time.Second {
		t.Errorf("expected interval 30s, got %v", ep.Interval())
	}
	if ep.HTTP.URL != "http://example.com" {
		t.Errorf("expected URL 'http://example.com', got %q", ep.HTTP.URL)
	}

	eff := cfg.EffectiveEmail(ep)
	if eff.SMTPHost != "smtp.example.com" {
		t.Errorf("expected inherited SMTPHost, got %q", eff.SMTPHost)
	}
	if len(eff.Recipients) != 1 || eff.Recipients[0] != "o@example.com" {
		t.Errorf("expected overridden recipients, got %v", eff.Recipients)
	}
	if eff.FailureThreshold != 1 {
		t.Errorf("expected overridden threshold 1, got %d", eff.FailureThreshold)
	}
	if !eff.Events.Failure || !eff.Events.Recovery {
		t.Errorf("expected inherited events {failure,recovery}, got %+v", eff.Events)
	}
}

func TestValidate_RejectsIsolatedOverride(t *testing.T) {
	tmpfile := writeTemp(t, `
global: {}
endpoints:
  ep1:
    kind: http
    http:
      url: "http://example.com"
    email_override:
      recipients: ["o@example.com"]
`)
	if _, err := LoadConfig(tmpfile); err == nil {
		t.Fatal("expected error for override without configured global channel")
	}
}

func TestValidate_RejectsMismatchedKind(t *testing.T) {
	tmpfile := writeTemp(t, `
global: {}
endpoints:
  ep1:
    kind: tcp
    http:
      url: "http://example.com"
`)
	if _, err := LoadConfig(tmpfile); err == nil {
		t.Fatal("expected error for kind/payload mismatch")
	}
}

func TestEffectiveEmail_MergeIsIdempotent(t *testing.T) {
	tmpfile := writeTemp(t, `
global:
  email_notifications:
    smtp_host: "smtp.example.com"
    failure_threshold: 3
endpoints:
  ep1:
    kind: http
    http:
      url: "http://example.com"
    email_override:
      failure_threshold: 1
`)
	cfg, err := LoadConfig(tmpfile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ep := cfg.Endpoints["ep1"]

	once := cfg.EffectiveEmail(ep)
	twice := cfg.EffectiveEmail(ep)
	if once.SMTPHost != twice.SMTPHost || once.FailureThreshold != twice.FailureThreshold {
		t.Errorf("expected idempotent merge, got %+v vs %+v", once, twice)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpfile.Name()
}
