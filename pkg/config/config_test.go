package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestConfigUsesFileAPIKeys(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	writeConfig(t, dir, "api_keys:\n  anthropic: file-ant\n  openai: file-openai\n  google: file-google\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "file-ant" || cfg.OpenAIAPIKey != "file-openai" || cfg.GoogleAPIKey != "file-google" {
		t.Fatalf("file keys not loaded: %+v", cfg)
	}
}

func TestConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)
	t.Setenv("ANTHROPIC_API_KEY", "env-ant")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	writeConfig(t, dir, "api_keys:\n  anthropic: file-ant\n  openai: file-openai\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" {
		t.Fatalf("env key not preferred: %q", cfg.AnthropicAPIKey)
	}
	if cfg.OpenAIAPIKey != "file-openai" {
		t.Fatalf("file key lost: %q", cfg.OpenAIAPIKey)
	}
}

func TestConfigMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HasProvider("anthropic") || cfg.HasProvider("openai") || cfg.HasProvider("google") {
		t.Fatalf("no keys expected: %+v", cfg)
	}
	if cfg.HasProvider("unknown") {
		t.Fatalf("unknown provider reported as configured")
	}
}

func TestConfigClassifyAndStreamTimeouts(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)
	writeConfig(t, dir, "classify:\n  verifier_model: tiny-check\n  verify_timeout_ms: 1500\nstream:\n  idle_timeout_ms: 45000\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VerifierModel != "tiny-check" {
		t.Fatalf("verifier model: %q", cfg.VerifierModel)
	}
	if cfg.VerifyTimeout != 1500*time.Millisecond {
		t.Fatalf("verify timeout: %v", cfg.VerifyTimeout)
	}
	if cfg.IdleTimeout != 45*time.Second {
		t.Fatalf("idle timeout: %v", cfg.IdleTimeout)
	}
}

func TestConfigDefaultRegistry(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if len(reg.Models()) == 0 {
		t.Fatalf("default catalogue is empty")
	}
}

func TestConfigRegistryFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGENTGATE_CONFIG_DIR", dir)
	modelsPath := filepath.Join(dir, "models.yaml")
	body := "models:\n  - id: only-model\n    provider: openai\n    task_categories: [general_text]\n    priority: 1\n"
	if err := os.WriteFile(modelsPath, []byte(body), 0600); err != nil {
		t.Fatalf("write models: %v", err)
	}
	t.Setenv("AGENTGATE_MODELS", modelsPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	models := reg.Models()
	if len(models) != 1 || models[0].ID != "only-model" {
		t.Fatalf("models: %+v", models)
	}
}

func TestLoggerLevelParsing(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	logger := cfg.Logger(false)
	if logger.GetLevel().String() != "debug" {
		t.Fatalf("level: %s", logger.GetLevel())
	}

	cfg = &Config{LogLevel: "nonsense"}
	logger = cfg.Logger(false)
	if logger.GetLevel().String() != "info" {
		t.Fatalf("fallback level: %s", logger.GetLevel())
	}
}
