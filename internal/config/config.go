// Package config loads and validates the review pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the mrlead configuration file.
const ConfigFileName = "mrlead.yaml"

// ErrInvalidConfig is returned when config validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all mrlead configuration.
type Config struct {
	GitLab    GitLabConfig    `yaml:"gitlab"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Budget    BudgetConfig    `yaml:"budget"`
	Review    ReviewConfig    `yaml:"review"`
	Output    OutputConfig    `yaml:"output"`
}

// GitLabConfig holds API and clone settings. The token is never read from
// the file; it comes from the GITLAB_TOKEN environment variable.
type GitLabConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"-"`
	Workdir string `yaml:"workdir"`
}

// LLMConfig selects the provider and model. API keys come from the
// environment (ANTHROPIC_API_KEY, DEEPSEEK_API_KEY, OPENROUTER_API_KEY,
// GROQ_API_KEY).
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
}

// RetrievalConfig holds context-search settings.
type RetrievalConfig struct {
	MaxFragmentLines int      `yaml:"max_fragment_lines"`
	TriggerWords     []string `yaml:"trigger_words"`
	AllowDirs        []string `yaml:"allow_dirs"`
	DenyGlobs        []string `yaml:"deny_globs"`
	SearchWorkers    int      `yaml:"search_workers"`
}

// BudgetConfig holds the prompt sizing knobs. TokenRate converts
// characters to tokens.
type BudgetConfig struct {
	MaxPromptTokens  int     `yaml:"max_prompt_tokens"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
	TokenRate        float64 `yaml:"token_rate"`
}

// ReviewConfig holds review-shape settings.
type ReviewConfig struct {
	MaxBlockers          int      `yaml:"max_blockers"`
	MaxDiffLinesFullMode int      `yaml:"max_diff_lines_full_mode"`
	InternalURLDomains   []string `yaml:"internal_url_domains"`
}

// OutputConfig holds run-archive settings.
type OutputConfig struct {
	SaveRuns bool   `yaml:"save_runs"`
	RunsDir  string `yaml:"runs_dir"`
}

// Load reads config from workDir/mrlead.yaml, falling back to defaults
// when the file does not exist. Environment secrets are applied last.
func Load(workDir string) (*Config, error) {
	return LoadFromPath(filepath.Join(workDir, ConfigFileName))
}

// LoadFromPath reads config from a specific path, merges it with defaults,
// applies environment secrets, and validates the result.
func LoadFromPath(path string) (*Config, error) {
	loaded := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, loaded); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	applyEnv(merged)

	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// applyEnv fills in secrets from the environment. The provider's API key
// variable is chosen by the configured provider.
func applyEnv(cfg *Config) {
	if tok := os.Getenv("GITLAB_TOKEN"); tok != "" {
		cfg.GitLab.Token = tok
	}
	keyVar := map[string]string{
		"anthropic":  "ANTHROPIC_API_KEY",
		"deepseek":   "DEEPSEEK_API_KEY",
		"openrouter": "OPENROUTER_API_KEY",
		"groq":       "GROQ_API_KEY",
	}[cfg.LLM.Provider]
	if keyVar != "" {
		if key := os.Getenv(keyVar); key != "" {
			cfg.LLM.APIKey = key
		}
	}
}

// ValidProviders lists the supported LLM providers.
var ValidProviders = []string{"anthropic", "deepseek", "openrouter", "groq"}

// IsValidProvider checks if the given provider name is supported.
func IsValidProvider(provider string) bool {
	for _, valid := range ValidProviders {
		if provider == valid {
			return true
		}
	}
	return false
}

// Validate checks that config values are valid.
func Validate(cfg *Config) error {
	if !IsValidProvider(cfg.LLM.Provider) {
		return fmt.Errorf("%w: llm provider must be one of %v, got %q",
			ErrInvalidConfig, ValidProviders, cfg.LLM.Provider)
	}
	if cfg.Retrieval.MaxFragmentLines < 10 || cfg.Retrieval.MaxFragmentLines > 500 {
		return fmt.Errorf("%w: max_fragment_lines must be between 10 and 500, got %d",
			ErrInvalidConfig, cfg.Retrieval.MaxFragmentLines)
	}
	if cfg.Budget.MaxPromptTokens <= 0 {
		return fmt.Errorf("%w: max_prompt_tokens must be positive, got %d",
			ErrInvalidConfig, cfg.Budget.MaxPromptTokens)
	}
	if cfg.Budget.MaxContextTokens <= 0 {
		return fmt.Errorf("%w: max_context_tokens must be positive, got %d",
			ErrInvalidConfig, cfg.Budget.MaxContextTokens)
	}
	if cfg.Budget.TokenRate <= 0 || cfg.Budget.TokenRate > 1 {
		return fmt.Errorf("%w: token_rate must be in (0, 1], got %f",
			ErrInvalidConfig, cfg.Budget.TokenRate)
	}
	if cfg.Review.MaxBlockers < 1 || cfg.Review.MaxBlockers > 50 {
		return fmt.Errorf("%w: max_blockers must be between 1 and 50, got %d",
			ErrInvalidConfig, cfg.Review.MaxBlockers)
	}
	if cfg.Review.MaxDiffLinesFullMode < 100 {
		return fmt.Errorf("%w: max_diff_lines_full_mode must be at least 100, got %d",
			ErrInvalidConfig, cfg.Review.MaxDiffLinesFullMode)
	}
	return nil
}

// EffectiveWorkdir computes the clone directory for a repository URL when
// no workdir is configured: ./repos/<repo-name>.
func (c *Config) EffectiveWorkdir(repoURL string) string {
	if c.GitLab.Workdir != "" {
		return c.GitLab.Workdir
	}
	name := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return filepath.Join("repos", name)
}
