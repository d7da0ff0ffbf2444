// Package cmd contains all CLI commands for mrlead.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlead/mrlead/internal/config"
)

var (
	// Version is the current version of mrlead
	Version = "0.1.0"

	// Global flags
	configPath string
	logLevel   string

	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mrlead",
	Short: "Context-aware merge request reviewer for GitLab",
	Long: `mrlead reviews GitLab merge requests with an LLM, grounded in context
retrieved from the target repository.

For each merge request it fetches the diff, syncs a local clone to the MR
head, extracts identifiers from the changed lines, and searches the
repository for the definitions and usages those identifiers point at.
The highest-priority fragments that fit the prompt budget are packed
alongside the diff and sent to the configured model. Secrets and internal
URLs are redacted before anything leaves the machine.

Examples:
  mrlead review --repo-url https://gitlab.example.com/group/app --mr-iid 42
  mrlead review --repo-url ... --mr-iid 42 --dry-run     # print the prompt only
  mrlead runs list                                       # past review runs
  mrlead runs show 3                                     # one archived run

See 'mrlead <command> --help' for command-specific options.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./mrlead.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}

func setupLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the effective configuration for a command run.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.Load(cwd)
}
