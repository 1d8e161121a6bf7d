package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.App.Env != "local" || c.App.Port != 8000 {
		t.Fatalf("unexpected app defaults: %+v", c.App)
	}
	if c.DB.URL != "sqlite://waasp.db" {
		t.Fatalf("expected sqlite default, got %q", c.DB.URL)
	}
	if c.Audit.RetentionDays != 90 || c.Audit.CleanupInterval != 24*time.Hour {
		t.Fatalf("unexpected audit defaults: %+v", c.Audit)
	}
	if c.Redis.NotifyChannel != "waasp:blocked" {
		t.Fatalf("unexpected notify channel %q", c.Redis.NotifyChannel)
	}
	if c.Retention() != 90*24*time.Hour {
		t.Fatalf("unexpected retention %s", c.Retention())
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	c := Config{App: AppConfig{Env: "production", Port: 8080}}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"DATABASE_URL", "API_TOKEN or JWT_SECRET"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestValidate_ProductionJWTNeedsIssuerAndAudience(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080},
		DB:   DBConfig{URL: "postgres://localhost/waasp"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production JWT without issuer/audience")
	}

	c.Auth.JWTIssuer = "waasp"
	c.Auth.JWTAudience = "waasp-admin"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	c := Config{App: AppConfig{Env: "qa", Port: 70000}, Audit: AuditConfig{RetentionDays: -1}}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.HasPrefix(err.Error(), "config errors:") {
		t.Fatalf("expected aggregated errors, got %q", err.Error())
	}
}

func TestFromEnv_ParseErrors(t *testing.T) {
	t.Setenv("APP_PORT", "eighty")
	t.Setenv("AUDIT_CLEANUP_INTERVAL", "daily")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected parse errors")
	}
}

func TestFromEnv_ReadsValues(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DATABASE_URL", "sqlite://test.db")
	t.Setenv("API_TOKEN", "token")
	t.Setenv("AUDIT_RETENTION_DAYS", "30")
	t.Setenv("AUDIT_CLEANUP_INTERVAL", "1h")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.App.Port != 9000 || c.DB.URL != "sqlite://test.db" || c.Audit.RetentionDays != 30 || c.Audit.CleanupInterval != time.Hour {
		t.Fatalf("unexpected config: %+v", c)
	}
	if !c.AdminAuthConfigured() {
		t.Fatalf("expected admin auth configured")
	}
	if c.HTTPAddr() != ":9000" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
}
