// Package cmd implements the review command for mrlead.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlead/mrlead/internal/config"
	"github.com/mrlead/mrlead/internal/extract"
	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/llm"
	"github.com/mrlead/mrlead/internal/pipeline"
	"github.com/mrlead/mrlead/internal/prompt"
	"github.com/mrlead/mrlead/internal/redact"
	"github.com/mrlead/mrlead/internal/render"
	"github.com/mrlead/mrlead/internal/repo"
	"github.com/mrlead/mrlead/internal/retrieval"
	"github.com/mrlead/mrlead/internal/ripgrep"
	"github.com/mrlead/mrlead/internal/store"
)

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a GitLab merge request",
	Long: `Review fetches a merge request, retrieves related code from the
repository, and asks the configured model for a structured review.

The review pipeline:
  1. Fetches MR metadata and diffs from the GitLab API
  2. Clones or updates the repository and checks out the MR head
  3. Extracts identifiers from the diff and searches for their
     definitions and usages
  4. Redacts secrets and internal URLs from everything prompt-bound
  5. Packs the highest-priority fragments into the token budget and
     calls the model

Examples:
  mrlead review --repo-url https://gitlab.example.com/group/app --mr-iid 42
  mrlead review --repo-url ... --mr-iid 42 --provider deepseek
  mrlead review --repo-url ... --mr-iid 42 --dry-run
  mrlead review --repo-url ... --mr-iid 42 --no-save`,
	RunE: runReview,
}

// Command-line flags
var (
	reviewRepoURL      string
	reviewMRIID        int
	reviewBaseURL      string
	reviewWorkdir      string
	reviewProvider     string
	reviewModel        string
	reviewMaxBlockers  int
	reviewMaxFragLines int
	reviewAllowDirs    []string
	reviewDenyGlobs    []string
	reviewDryRun       bool
	reviewNoSave       bool
	reviewNoVerifySSL  bool
)

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVar(&reviewRepoURL, "repo-url", "", "HTTPS URL of the GitLab repository (required)")
	reviewCmd.Flags().IntVar(&reviewMRIID, "mr-iid", 0, "Merge request IID (required)")
	reviewCmd.Flags().StringVar(&reviewBaseURL, "gitlab-base-url", "", "GitLab instance base URL (default: derived from config)")
	reviewCmd.Flags().StringVar(&reviewWorkdir, "workdir", "", "Directory for local clones")
	reviewCmd.Flags().StringVar(&reviewProvider, "provider", "", "LLM provider (anthropic|deepseek|openrouter|groq)")
	reviewCmd.Flags().StringVar(&reviewModel, "model", "", "Model name override for the provider")
	reviewCmd.Flags().IntVar(&reviewMaxBlockers, "max-blockers", 0, "Maximum blockers reported")
	reviewCmd.Flags().IntVar(&reviewMaxFragLines, "max-fragment-lines", 0, "Maximum lines per context fragment")
	reviewCmd.Flags().StringSliceVar(&reviewAllowDirs, "allow-dirs", nil, "Restrict retrieval to these directories")
	reviewCmd.Flags().StringSliceVar(&reviewDenyGlobs, "deny-globs", nil, "Additional glob patterns excluded from retrieval")
	reviewCmd.Flags().BoolVar(&reviewDryRun, "dry-run", false, "Print the assembled prompt without calling the model")
	reviewCmd.Flags().BoolVar(&reviewNoSave, "no-save", false, "Skip archiving the run")
	reviewCmd.Flags().BoolVar(&reviewNoVerifySSL, "no-verify-ssl", false, "Skip TLS certificate verification for the GitLab API")

	reviewCmd.MarkFlagRequired("repo-url")
	reviewCmd.MarkFlagRequired("mr-iid")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyReviewFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if cfg.GitLab.Token == "" {
		return fmt.Errorf("GITLAB_TOKEN is not set")
	}
	if !reviewDryRun && cfg.LLM.APIKey == "" {
		return fmt.Errorf("no API key set for provider %q", cfg.LLM.Provider)
	}

	python, err := extract.NewPythonExtractor(logger)
	if err != nil {
		return fmt.Errorf("initializing parser: %w", err)
	}
	defer python.Close()

	policy, err := redact.NewPolicy(cfg.Retrieval.DenyGlobs, cfg.Retrieval.AllowDirs)
	if err != nil {
		return fmt.Errorf("building exclusion policy: %w", err)
	}

	retriever := retrieval.NewRetriever(python, ripgrep.NewSearcher(logger), policy, retrieval.Config{
		MaxFragmentLines: cfg.Retrieval.MaxFragmentLines,
		MaxContextTokens: cfg.Budget.MaxContextTokens,
		TokenRate:        cfg.Budget.TokenRate,
		SearchWorkers:    cfg.Retrieval.SearchWorkers,
	}, logger)

	builder := prompt.NewBuilder(prompt.BuilderParams{
		MaxDiffLinesFullMode: cfg.Review.MaxDiffLinesFullMode,
		MaxBlockers:          cfg.Review.MaxBlockers,
		Budget: prompt.BudgetParams{
			MaxPromptTokens:  cfg.Budget.MaxPromptTokens,
			MaxContextTokens: cfg.Budget.MaxContextTokens,
			TokenRate:        cfg.Budget.TokenRate,
		},
	}, logger)

	var provider llm.Provider
	if !reviewDryRun {
		provider, err = newProvider(cfg)
		if err != nil {
			return err
		}
	}

	var archiver pipeline.Archiver
	if cfg.Output.SaveRuns && !reviewNoSave && !reviewDryRun {
		runStore, err := store.Open(cfg.Output.RunsDir)
		if err != nil {
			return fmt.Errorf("opening run archive: %w", err)
		}
		defer runStore.Close()
		archiver = runStore
	}

	var clientOpts []gitlab.Option
	if reviewNoVerifySSL {
		clientOpts = append(clientOpts, gitlab.WithInsecureTLS())
	}

	p := pipeline.New(pipeline.Options{
		Config:   cfg,
		Fetcher:  gitlab.NewClient(cfg.GitLab.BaseURL, cfg.GitLab.Token, logger, clientOpts...),
		Syncer:   repo.NewManager(cfg.EffectiveWorkdir(reviewRepoURL), cfg.GitLab.Token, logger),
		Searcher: retriever,
		Builder:  builder,
		Provider: provider,
		Renderer: render.NewRenderer(os.Stdout),
		Archiver: archiver,
		Policy:   policy,
		Logger:   logger,
	})

	return p.Run(cmd.Context(), reviewRepoURL, reviewMRIID, reviewDryRun)
}

// applyReviewFlags overlays explicit command-line flags on the loaded
// configuration. Zero values mean the flag was not given.
func applyReviewFlags(cfg *config.Config) {
	if reviewBaseURL != "" {
		cfg.GitLab.BaseURL = reviewBaseURL
	}
	if reviewWorkdir != "" {
		cfg.GitLab.Workdir = reviewWorkdir
	}
	if reviewProvider != "" {
		cfg.LLM.Provider = reviewProvider
		cfg.LLM.APIKey = ""
	}
	if reviewModel != "" {
		cfg.LLM.Model = reviewModel
	}
	if reviewMaxBlockers > 0 {
		cfg.Review.MaxBlockers = reviewMaxBlockers
	}
	if reviewMaxFragLines > 0 {
		cfg.Retrieval.MaxFragmentLines = reviewMaxFragLines
	}
	if len(reviewAllowDirs) > 0 {
		cfg.Retrieval.AllowDirs = reviewAllowDirs
	}
	if len(reviewDenyGlobs) > 0 {
		cfg.Retrieval.DenyGlobs = append(cfg.Retrieval.DenyGlobs, reviewDenyGlobs...)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(cfg.LLM.Provider)
	}
}

func providerAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "deepseek":
		return os.Getenv("DEEPSEEK_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	}
	return ""
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "anthropic":
		return llm.NewAnthropicProvider(cfg.LLM.APIKey, cfg.LLM.Model, logger), nil
	case "deepseek":
		return llm.NewDeepSeekProvider(cfg.LLM.APIKey, cfg.LLM.Model, logger), nil
	case "openrouter":
		return llm.NewOpenRouterProvider(cfg.LLM.APIKey, cfg.LLM.Model, logger), nil
	case "groq":
		return llm.NewGroqProvider(cfg.LLM.APIKey, cfg.LLM.Model, logger), nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
}
