package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("PRONOTE_URL", "https://school.example.com/pronote")
	t.Setenv("PRONOTE_USERNAME", "parent")
	t.Setenv("PRONOTE_PASSWORD", "secret")
	t.Setenv("EMAIL_BACKEND", "console")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com")

	cfg := LoadConfig()

	if cfg.PronoteURL != "https://school.example.com/pronote" {
		t.Fatalf("unexpected pronote url: %q", cfg.PronoteURL)
	}
	if cfg.GradeWindowDays != 14 {
		t.Fatalf("unexpected grade window default: %d", cfg.GradeWindowDays)
	}
	if cfg.LookaheadDays != 7 {
		t.Fatalf("unexpected lookahead default: %d", cfg.LookaheadDays)
	}
	if cfg.SMTPHost != "smtp.gmail.com" || cfg.SMTPPort != 465 {
		t.Fatalf("unexpected SMTP defaults: %s:%d", cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.ExternalHTTPTimeoutSeconds != defaultExternalHTTPTimeoutSeconds {
		t.Fatalf("unexpected HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if len(cfg.EmailTo) != 2 || cfg.EmailTo[0] != "a@example.com" || cfg.EmailTo[1] != "b@example.com" {
		t.Fatalf("comma-separated recipients not parsed: %v", cfg.EmailTo)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.WhatsAppEnabled {
		t.Fatal("whatsapp must default to disabled")
	}
	if cfg.Schedule != "" {
		t.Fatalf("schedule must default to empty (run once), got %q", cfg.Schedule)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
pronote_url: "https://yaml.example.com/pronote"
pronote_username: "yaml-parent"
pronote_password: "yaml-secret"
grade_window_days: 21
email_backend: "console"
email_to:
  - yaml@example.com
whatsapp_enabled: true
meta_access_token: "yaml-meta"
meta_phone_number_id: "99999"
whatsapp_group_numbers:
  - "+33111111111"
  - "+33222222222"
timezone: "Europe/Paris"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("PRONOTE_USERNAME", "env-parent")
	t.Setenv("GRADE_WINDOW_DAYS", "30")

	cfg := LoadConfig()

	if cfg.PronoteUsername != "env-parent" {
		t.Fatalf("env must override yaml, got %q", cfg.PronoteUsername)
	}
	if cfg.PronoteURL != "https://yaml.example.com/pronote" {
		t.Fatalf("yaml value lost: %q", cfg.PronoteURL)
	}
	if cfg.GradeWindowDays != 30 {
		t.Fatalf("env int override failed: %d", cfg.GradeWindowDays)
	}
	if len(cfg.WhatsAppGroupNumbers) != 2 {
		t.Fatalf("yaml list not parsed: %v", cfg.WhatsAppGroupNumbers)
	}
	if cfg.Location == nil || cfg.Location.String() != "Europe/Paris" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestChatDestinationsPrecedence(t *testing.T) {
	cfg := Config{WhatsAppPhoneNumber: "+331", WhatsAppGroupNumbers: []string{"+332", "+333"}}
	dests := cfg.ChatDestinations()
	if len(dests) != 2 || dests[0] != "+332" {
		t.Fatalf("group numbers must take precedence: %v", dests)
	}

	cfg = Config{WhatsAppPhoneNumber: "+331"}
	dests = cfg.ChatDestinations()
	if len(dests) != 1 || dests[0] != "+331" {
		t.Fatalf("single recipient fallback failed: %v", dests)
	}

	if dests := (Config{}).ChatDestinations(); dests != nil {
		t.Fatalf("expected nil destinations, got %v", dests)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("PR_TEST_STR", "value")
	envOverride(&s, "PR_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("PR_TEST_INT", "42")
	envOverrideInt(&i, "PR_TEST_INT")
	if i != 42 {
		t.Fatalf("envOverrideInt failed, got %d", i)
	}

	b := false
	t.Setenv("PR_TEST_BOOL", "true")
	envOverrideBool(&b, "PR_TEST_BOOL")
	if !b {
		t.Fatalf("envOverrideBool failed, got %v", b)
	}

	var list []string
	t.Setenv("PR_TEST_LIST", " a@x.com ,, b@y.com ")
	envOverrideList(&list, "PR_TEST_LIST")
	if len(list) != 2 || list[0] != "a@x.com" || list[1] != "b@y.com" {
		t.Fatalf("envOverrideList failed, got %v", list)
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("PRONOTE_URL", "https://school.example.com/pronote")
		_ = os.Setenv("PRONOTE_USERNAME", "parent")
		_ = os.Setenv("PRONOTE_PASSWORD", "secret")
		_ = os.Setenv("EMAIL_BACKEND", "console")
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidTimezoneFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_TZ_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigMissingCredentialFatal(t *testing.T) {
	if os.Getenv("TEST_MISSING_CRED_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("PRONOTE_URL", "https://school.example.com/pronote")
		_ = os.Setenv("PRONOTE_USERNAME", "parent")
		// password deliberately unset
		_ = os.Setenv("EMAIL_BACKEND", "console")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigMissingCredentialFatal")
	cmd.Env = append(os.Environ(), "TEST_MISSING_CRED_FATAL=1")
	if err := cmd.Run(); err == nil {
		t.Fatal("expected missing credential to be fatal before any network call")
	}
}
