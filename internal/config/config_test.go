package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadHTTPMode(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
gatewayMode: http
gatewayURL: https://platform.example.com
gatewayApiKey: anon-key
singleProposalPerProvider: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.GatewayMode != ModeHTTP {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.GatewayURL != "https://platform.example.com" || cfg.GatewayAPIKey != "anon-key" {
		t.Fatalf("gateway fields = %q %q", cfg.GatewayURL, cfg.GatewayAPIKey)
	}
	if !cfg.SingleProposalPerProvider {
		t.Fatalf("policy flag not read")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
gatewayMode: memory
logLevel: info
`)
	t.Setenv("TAXMATCH_LOG_LEVEL", "warn")
	t.Setenv("TAXMATCH_GATEWAY_MODE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/taxmatch")
	t.Setenv("TAXMATCH_JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("TAXMATCH_SINGLE_PROPOSAL_PER_PROVIDER", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("logLevel = %q", cfg.LogLevel)
	}
	if cfg.GatewayMode != ModePostgres || cfg.DatabaseURL != "postgres://localhost/taxmatch" {
		t.Fatalf("gateway = %q db = %q", cfg.GatewayMode, cfg.DatabaseURL)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("redisAddr = %q", cfg.RedisAddr)
	}
	if !cfg.SingleProposalPerProvider {
		t.Fatalf("policy override not applied")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing mode", "logLevel: info\n"},
		{"unknown mode", "gatewayMode: carrier-pigeon\n"},
		{"http without url", "gatewayMode: http\ngatewayApiKey: k\n"},
		{"http without key", "gatewayMode: http\ngatewayURL: https://x\n"},
		{"postgres without dsn", "gatewayMode: postgres\njwtSecret: s\n"},
		{"postgres without secret", "gatewayMode: postgres\ndatabaseURL: postgres://x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestParseSessionTTL(t *testing.T) {
	if d, err := ParseSessionTTL(""); err != nil || d != 0 {
		t.Fatalf("empty ttl: %v %v", d, err)
	}
	if d, err := ParseSessionTTL("24h"); err != nil || d != 24*time.Hour {
		t.Fatalf("24h ttl: %v %v", d, err)
	}
	if _, err := ParseSessionTTL("soon"); err == nil {
		t.Fatalf("expected parse error")
	}
}
