package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Retrieval.MaxFragmentLines != 160 {
		t.Errorf("max_fragment_lines = %d", cfg.Retrieval.MaxFragmentLines)
	}
	if cfg.Budget.TokenRate != 0.35 {
		t.Errorf("token_rate = %f", cfg.Budget.TokenRate)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Budget.MaxPromptTokens != 120000 {
		t.Errorf("max_prompt_tokens = %d", cfg.Budget.MaxPromptTokens)
	}
}

func TestLoadMergesWithDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
gitlab:
  base_url: https://gitlab.example.com
llm:
  provider: groq
retrieval:
  max_fragment_lines: 100
  trigger_words: [sql]
`
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitLab.BaseURL != "https://gitlab.example.com" {
		t.Errorf("base_url = %q", cfg.GitLab.BaseURL)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Retrieval.MaxFragmentLines != 100 {
		t.Errorf("max_fragment_lines = %d", cfg.Retrieval.MaxFragmentLines)
	}
	if len(cfg.Retrieval.TriggerWords) != 1 || cfg.Retrieval.TriggerWords[0] != "sql" {
		t.Errorf("trigger_words = %v", cfg.Retrieval.TriggerWords)
	}
	// Unset sections fall back to defaults.
	if cfg.Budget.MaxContextTokens != 60000 {
		t.Errorf("max_context_tokens = %d", cfg.Budget.MaxContextTokens)
	}
	if cfg.Review.MaxBlockers != 10 {
		t.Errorf("max_blockers = %d", cfg.Review.MaxBlockers)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("llm: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad provider", func(c *Config) { c.LLM.Provider = "carrier-pigeon" }},
		{"fragment lines too small", func(c *Config) { c.Retrieval.MaxFragmentLines = 5 }},
		{"fragment lines too large", func(c *Config) { c.Retrieval.MaxFragmentLines = 9999 }},
		{"zero prompt tokens", func(c *Config) { c.Budget.MaxPromptTokens = 0 }},
		{"zero context tokens", func(c *Config) { c.Budget.MaxContextTokens = 0 }},
		{"token rate over one", func(c *Config) { c.Budget.TokenRate = 1.5 }},
		{"zero blockers", func(c *Config) { c.Review.MaxBlockers = 0 }},
		{"tiny full-mode limit", func(c *Config) { c.Review.MaxDiffLinesFullMode = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "glpat-test")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg := DefaultConfig()
	cfg.LLM.Provider = "groq"
	applyEnv(cfg)

	if cfg.GitLab.Token != "glpat-test" {
		t.Errorf("gitlab token = %q", cfg.GitLab.Token)
	}
	if cfg.LLM.APIKey != "gsk-test" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
}

func TestEffectiveWorkdir(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.EffectiveWorkdir("https://gitlab.example.com/group/repo.git")
	if got != filepath.Join("repos", "repo") {
		t.Errorf("workdir = %q", got)
	}

	cfg.GitLab.Workdir = "/tmp/custom"
	if got := cfg.EffectiveWorkdir("anything"); got != "/tmp/custom" {
		t.Errorf("explicit workdir = %q", got)
	}
}
