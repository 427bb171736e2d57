package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// TestLoadAppliesDefaults verifies unspecified fields keep their defaults.
func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, `
worker:
  command: node
  args: ["worker.js"]
server:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Worker.Command != "node" || len(cfg.Worker.Args) != 1 {
		t.Fatalf("worker = %+v", cfg.Worker)
	}
	if cfg.Defaults.Model != "Xenova/whisper-tiny" || cfg.Defaults.Subtask != "transcribe" {
		t.Fatalf("defaults = %+v", cfg.Defaults)
	}
	if cfg.Completion.Model != "gpt-4o-mini" || cfg.Completion.Temperature != 0.7 {
		t.Fatalf("completion = %+v", cfg.Completion)
	}
}

// TestLoadMissingFileNeedsWorker checks that defaults alone do not validate.
func TestLoadMissingFileNeedsWorker(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected validation error without worker.command")
	}
}

// TestLoadInvalidYAML checks parse error handling.
func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "worker: [unterminated")
	if _, err := Load(path); err == nil {
		t.Fatal("expected yaml parse error")
	}
}

// TestLoadAPIKeyFromEnv verifies the environment fallback for the sink key.
func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := writeConfig(t, `
worker:
  command: node
completion:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Completion.APIKey != "sk-test" {
		t.Fatalf("api key = %q, want sk-test", cfg.Completion.APIKey)
	}
}

// TestValidate covers the rejected configurations.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no model", func(c *Config) { c.Defaults.Model = "" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"no pipeline workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"no cleanup interval", func(c *Config) { c.Cleanup.IntervalMinutes = 0 }},
		{"no size limit", func(c *Config) { c.Limits.MaxFileSizeMB = 0 }},
		{"completion without key", func(c *Config) { c.Completion.Enabled = true; c.Completion.APIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Worker.Command = "node"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
