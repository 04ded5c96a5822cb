package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := LoadFrom(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.Database.Type != "sqlite" {
		t.Errorf("unexpected server/database defaults: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.LLM.MaxTokens != 1000 || cfg.LLM.Temperature != 0.7 || cfg.LLM.MaxToolRoundTrips != 5 {
		t.Errorf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.LLM.ToolTimeout != 30*time.Second {
		t.Errorf("tool timeout: got %v", cfg.LLM.ToolTimeout)
	}
	if cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.Window != time.Minute || cfg.RateLimit.Store != "memory" {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if len(cfg.LLM.Providers) != 0 {
		t.Errorf("expected no providers without a key, got %d", len(cfg.LLM.Providers))
	}
}

func TestLoadFrom_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
rate_limit:
  max_requests: 3
llm:
  providers:
    - name: primary
      base_url: http://localhost:1234/v1
      models: [gpt-4o-mini]
`)
	t.Setenv("SUPPORT_SERVER_PORT", "9100")
	t.Setenv("SUPPORT_RATE_LIMIT_WINDOW", "5s")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env should override file: port %d", cfg.Server.Port)
	}
	if cfg.RateLimit.MaxRequests != 3 || cfg.RateLimit.Window != 5*time.Second {
		t.Errorf("rate limit not merged: %+v", cfg.RateLimit)
	}
	if len(cfg.LLM.Providers) != 1 || cfg.LLM.Providers[0].Name != "primary" {
		t.Errorf("providers not loaded: %+v", cfg.LLM.Providers)
	}
}

func TestLoadFrom_OpenAIKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := LoadFrom(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(cfg.LLM.Providers) != 1 || cfg.LLM.Providers[0].APIKey != "sk-test" {
		t.Fatalf("expected an openai provider from the environment, got %+v", cfg.LLM.Providers)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Fatalf("embedding key not defaulted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown database", "database:\n  type: oracle\n"},
		{"redis without addr", "rate_limit:\n  store: redis\n"},
		{"zero window", "rate_limit:\n  window: 0s\n"},
		{"unnamed provider", "llm:\n  providers:\n    - base_url: http://x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFrom(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBootstrap(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "home")
	path, err := Bootstrap(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("unexpected port %d", cfg.Server.Port)
	}

	if err := os.WriteFile(path, []byte("server:\n  port: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Bootstrap(dir, zap.NewNop()); err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "server:\n  port: 1\n" {
		t.Fatal("Bootstrap must not overwrite an existing config")
	}
}
