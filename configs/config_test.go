package configs

import (
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", 30 * time.Second},
		{"go duration", "45s", 45 * time.Second},
		{"plain seconds", "12", 12 * time.Second},
		{"garbage uses default", "soon", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)
			if got := getEnvDuration("TEST_TIMEOUT", 30*time.Second); got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_DOMAINS", " amazon.in, ,flipkart.com ")
	got := getEnvList("TEST_DOMAINS", nil)
	if len(got) != 2 || got[0] != "amazon.in" || got[1] != "flipkart.com" {
		t.Errorf("getEnvList() = %v", got)
	}

	t.Setenv("TEST_DOMAINS", "")
	if got := getEnvList("TEST_DOMAINS", DefaultAllowedDomains); len(got) != len(DefaultAllowedDomains) {
		t.Errorf("expected defaults, got %v", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("PRIMARY_TIMEOUT", "")

	cfg := Load()
	if cfg.CacheBackend != "redis" {
		t.Errorf("CacheBackend = %q, want redis", cfg.CacheBackend)
	}
	if !cfg.AuthRequired {
		t.Error("AuthRequired should be true")
	}
	if cfg.PrimaryTimeout != 30*time.Second {
		t.Errorf("PrimaryTimeout = %v, want 30s", cfg.PrimaryTimeout)
	}
	if cfg.MultiTimeout != 45*time.Second {
		t.Errorf("MultiTimeout = %v, want 45s", cfg.MultiTimeout)
	}
}
