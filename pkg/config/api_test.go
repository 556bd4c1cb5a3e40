package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("MEMBERS_REQUIRED_OCCUPATION_ID", "7")
	t.Setenv("MEMBERS_REQUIRED_CONTRACT_ID", "2")

	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.Members.RequiredOccupationID != 7 || cfg.Members.RequiredContractID != 2 {
		t.Fatalf("unexpected required ids: %+v", cfg.Members)
	}
	if cfg.Members.Timeout != 5*time.Second {
		t.Fatalf("expected 5s identity timeout, got %s", cfg.Members.Timeout)
	}
	if cfg.RateLimit.Read != 120 || cfg.RateLimit.Write != 60 {
		t.Fatalf("unexpected rate limits: %+v", cfg.RateLimit)
	}
	if cfg.MigrationsDir != "db/migrations" {
		t.Fatalf("unexpected migrations dir %q", cfg.MigrationsDir)
	}
}

func TestLoadAPIConfigRequiresEligibilityIDs(t *testing.T) {
	t.Setenv("MEMBERS_REQUIRED_CONTRACT_ID", "2")

	_, err := LoadAPIConfig()
	if err == nil {
		t.Fatal("expected error when occupation id is missing")
	}
	if !strings.Contains(err.Error(), "MEMBERS_REQUIRED_OCCUPATION_ID") {
		t.Fatalf("expected missing variable in error, got %v", err)
	}
}

func TestLoadAPIConfigTrimsBaseURL(t *testing.T) {
	t.Setenv("MEMBERS_REQUIRED_OCCUPATION_ID", "1")
	t.Setenv("MEMBERS_REQUIRED_CONTRACT_ID", "1")
	t.Setenv("MEMBERS_API_BASE_URL", " http://members.local/ ")

	cfg, err := LoadAPIConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Members.BaseURL != "http://members.local" {
		t.Fatalf("unexpected base url %q", cfg.Members.BaseURL)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("RATE_LIMIT_READ", "lots")
	var cfg RateLimitConfig
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
