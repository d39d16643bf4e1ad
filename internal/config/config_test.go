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
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_DefaultsAndOverrides(t *testing.T) {
	clearProviderEnv(t)

	path := writeConfig(t, `
log:
  level: debug
server:
  port: 9090
ai:
  openai_key: file-key
worker:
  workers: 2
hitl:
  max_feedback_rounds: 3
`)
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if cfg.AI.OpenAIKey != "file-key" {
		t.Fatalf("openai key = %q", cfg.AI.OpenAIKey)
	}
	if cfg.AI.DefaultModel != "gpt-4o-mini" {
		t.Fatalf("default model = %q", cfg.AI.DefaultModel)
	}
	if cfg.Worker.Workers != 2 || cfg.Worker.QueueSize != 8 {
		t.Fatalf("worker = %+v", cfg.Worker)
	}
	if cfg.HITL.MaxFeedbackRounds != 3 {
		t.Fatalf("max_feedback_rounds = %d", cfg.HITL.MaxFeedbackRounds)
	}
	if cfg.Webhook.Timeout != 10*time.Second {
		t.Fatalf("webhook timeout = %s", cfg.Webhook.Timeout)
	}
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		if old, had := os.LookupEnv(k); had {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, old) })
		}
	}
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := writeConfig(t, `
ai:
  openai_key: file-key
`)
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AI.OpenAIKey != "env-key" {
		t.Fatalf("openai key = %q, want env override", cfg.AI.OpenAIKey)
	}
}

func TestLoadConfig_RequiresProvider(t *testing.T) {
	clearProviderEnv(t)

	path := writeConfig(t, "server:\n  port: 8080\n")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error when no provider key is set")
	}
}

func TestLoadConfig_DevModeNeedsNoProvider(t *testing.T) {
	clearProviderEnv(t)

	// Dev mode swaps in the noop adapter, so a clean machine with no keys
	// anywhere must still start.
	path := writeConfig(t, "server:\n  port: 8080\n")
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Runtime.Dev {
		t.Fatal("dev flag not carried into config")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml", false); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected parse error")
	}
}
