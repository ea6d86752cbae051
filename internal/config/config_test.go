package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/orchestrator/internal/engineerr"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := "workspace: ./workspace\ndefault_model: claude-sonnet-4-20250514\nprovider: anthropic\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxTransitions != DefaultMaxTransitions {
		t.Errorf("MaxTransitions = %d, want %d", cfg.MaxTransitions, DefaultMaxTransitions)
	}
	if cfg.StructuredRetries != DefaultStructuredRetries {
		t.Errorf("StructuredRetries = %d, want %d", cfg.StructuredRetries, DefaultStructuredRetries)
	}
	if cfg.RetryBaseDelayMs != DefaultRetryBaseDelayMs {
		t.Errorf("RetryBaseDelayMs = %d, want %d", cfg.RetryBaseDelayMs, DefaultRetryBaseDelayMs)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q, want %q", cfg.Provider, "anthropic")
	}
}

func TestLoad_HonorsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := "max_transitions: 10\nstructured_retries: 5\nretry_base_delay_ms: 250\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxTransitions != 10 {
		t.Errorf("MaxTransitions = %d, want 10", cfg.MaxTransitions)
	}
	if cfg.StructuredRetries != 5 {
		t.Errorf("StructuredRetries = %d, want 5", cfg.StructuredRetries)
	}
	if cfg.RetryBaseDelayMs != 250 {
		t.Errorf("RetryBaseDelayMs = %d, want 250", cfg.RetryBaseDelayMs)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	body := "nonexistent_field: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if kind, ok := engineerr.KindOf(err); !ok || kind != engineerr.KindConfigMalformed {
		t.Errorf("kind = %v, ok = %v, want %v", kind, ok, engineerr.KindConfigMalformed)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	err := errLoad(t, filepath.Join(t.TempDir(), "missing.yaml"))
	if kind, ok := engineerr.KindOf(err); !ok || kind != engineerr.KindConfigMissing {
		t.Errorf("kind = %v, ok = %v, want %v", kind, ok, engineerr.KindConfigMissing)
	}
}

func errLoad(t *testing.T, path string) error {
	t.Helper()
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	return err
}
