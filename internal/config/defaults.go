package config

// DefaultConfig returns configuration with sensible defaults. These are
// used when no config file exists or when the file omits fields.
func DefaultConfig() *Config {
	return &Config{
		GitLab: GitLabConfig{},
		LLM: LLMConfig{
			Provider: "anthropic",
		},
		Retrieval: RetrievalConfig{
			MaxFragmentLines: 160,
			TriggerWords: []string{
				"timeout", "retry", "transaction", "alembic", "migration",
				"auth", "permission", "token", "secret", "sql", "kafka",
			},
			SearchWorkers: 4,
		},
		Budget: BudgetConfig{
			MaxPromptTokens:  120000,
			MaxContextTokens: 60000,
			TokenRate:        0.35,
		},
		Review: ReviewConfig{
			MaxBlockers:          10,
			MaxDiffLinesFullMode: 3000,
		},
		Output: OutputConfig{
			SaveRuns: true,
			RunsDir:  "runs",
		},
	}
}

// Merge merges loaded config with defaults. Values from the loaded config
// take precedence.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}
	result.GitLab = mergeGitLabConfig(loaded.GitLab, defaults.GitLab)
	result.LLM = mergeLLMConfig(loaded.LLM, defaults.LLM)
	result.Retrieval = mergeRetrievalConfig(loaded.Retrieval, defaults.Retrieval)
	result.Budget = mergeBudgetConfig(loaded.Budget, defaults.Budget)
	result.Review = mergeReviewConfig(loaded.Review, defaults.Review)
	result.Output = mergeOutputConfig(loaded.Output, defaults.Output)
	return result
}

func mergeGitLabConfig(loaded, defaults GitLabConfig) GitLabConfig {
	result := GitLabConfig{}
	if loaded.BaseURL != "" {
		result.BaseURL = loaded.BaseURL
	} else {
		result.BaseURL = defaults.BaseURL
	}
	if loaded.Workdir != "" {
		result.Workdir = loaded.Workdir
	} else {
		result.Workdir = defaults.Workdir
	}
	return result
}

func mergeLLMConfig(loaded, defaults LLMConfig) LLMConfig {
	result := LLMConfig{}
	if loaded.Provider != "" {
		result.Provider = loaded.Provider
	} else {
		result.Provider = defaults.Provider
	}
	if loaded.Model != "" {
		result.Model = loaded.Model
	} else {
		result.Model = defaults.Model
	}
	return result
}

func mergeRetrievalConfig(loaded, defaults RetrievalConfig) RetrievalConfig {
	result := RetrievalConfig{}
	if loaded.MaxFragmentLines != 0 {
		result.MaxFragmentLines = loaded.MaxFragmentLines
	} else {
		result.MaxFragmentLines = defaults.MaxFragmentLines
	}
	if len(loaded.TriggerWords) > 0 {
		result.TriggerWords = loaded.TriggerWords
	} else {
		result.TriggerWords = defaults.TriggerWords
	}
	// Allow dirs and deny globs are additive settings the user owns
	// entirely; no defaults to merge.
	result.AllowDirs = loaded.AllowDirs
	result.DenyGlobs = loaded.DenyGlobs
	if loaded.SearchWorkers != 0 {
		result.SearchWorkers = loaded.SearchWorkers
	} else {
		result.SearchWorkers = defaults.SearchWorkers
	}
	return result
}

func mergeBudgetConfig(loaded, defaults BudgetConfig) BudgetConfig {
	result := BudgetConfig{}
	if loaded.MaxPromptTokens != 0 {
		result.MaxPromptTokens = loaded.MaxPromptTokens
	} else {
		result.MaxPromptTokens = defaults.MaxPromptTokens
	}
	if loaded.MaxContextTokens != 0 {
		result.MaxContextTokens = loaded.MaxContextTokens
	} else {
		result.MaxContextTokens = defaults.MaxContextTokens
	}
	if loaded.TokenRate != 0 {
		result.TokenRate = loaded.TokenRate
	} else {
		result.TokenRate = defaults.TokenRate
	}
	return result
}

func mergeReviewConfig(loaded, defaults ReviewConfig) ReviewConfig {
	result := ReviewConfig{}
	if loaded.MaxBlockers != 0 {
		result.MaxBlockers = loaded.MaxBlockers
	} else {
		result.MaxBlockers = defaults.MaxBlockers
	}
	if loaded.MaxDiffLinesFullMode != 0 {
		result.MaxDiffLinesFullMode = loaded.MaxDiffLinesFullMode
	} else {
		result.MaxDiffLinesFullMode = defaults.MaxDiffLinesFullMode
	}
	result.InternalURLDomains = loaded.InternalURLDomains
	return result
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	result := OutputConfig{}
	// YAML unmarshals a missing save_runs as false; disabling the archive
	// goes through the --no-save flag instead.
	result.SaveRuns = loaded.SaveRuns || defaults.SaveRuns
	if loaded.RunsDir != "" {
		result.RunsDir = loaded.RunsDir
	} else {
		result.RunsDir = defaults.RunsDir
	}
	return result
}
