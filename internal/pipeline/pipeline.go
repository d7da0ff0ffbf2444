// Package pipeline runs the end-to-end merge-request review: fetch, sync,
// retrieve, redact, prompt, complete, render, archive.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrlead/mrlead/internal/config"
	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/llm"
	"github.com/mrlead/mrlead/internal/prompt"
	"github.com/mrlead/mrlead/internal/redact"
	"github.com/mrlead/mrlead/internal/render"
	"github.com/mrlead/mrlead/internal/retrieval"
	"github.com/mrlead/mrlead/internal/review"
)

// MRFetcher supplies merge-request data. *gitlab.Client is the production
// implementation.
type MRFetcher interface {
	GetMRData(ctx context.Context, repoURL string, mrIID int) (*gitlab.MRData, error)
}

// RepoSyncer keeps the local clone in step with the merge request.
type RepoSyncer interface {
	EnsureRepo(ctx context.Context, repoURL string) (string, error)
	CheckoutSHA(ctx context.Context, sha string) error
	CheckoutBranch(ctx context.Context, branch string) error
}

// ContextSearcher produces ranked context fragments for a token set.
type ContextSearcher interface {
	SearchContext(ctx context.Context, root string, tokens, changedFiles []string) ([]retrieval.ContextFragment, error)
}

// Archiver stores completed runs. *store.Store is the production
// implementation.
type Archiver interface {
	SaveRun(mr *gitlab.MRData, provider string, result *review.Result, stats *review.PipelineStats) (int64, error)
}

// Pipeline wires the review stages together.
type Pipeline struct {
	cfg      *config.Config
	fetcher  MRFetcher
	syncer   RepoSyncer
	searcher ContextSearcher
	tokens   *retrieval.TokenExtractor
	builder  *prompt.Builder
	provider llm.Provider
	renderer *render.Renderer
	archiver Archiver
	policy   *redact.Policy
	logger   *slog.Logger
}

// Options carry the pipeline's collaborators. Archiver may be nil to skip
// the run archive; Provider may be nil only for dry runs.
type Options struct {
	Config   *config.Config
	Fetcher  MRFetcher
	Syncer   RepoSyncer
	Searcher ContextSearcher
	Builder  *prompt.Builder
	Provider llm.Provider
	Renderer *render.Renderer
	Archiver Archiver
	Policy   *redact.Policy
	Logger   *slog.Logger
}

// New assembles a pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      opts.Config,
		fetcher:  opts.Fetcher,
		syncer:   opts.Syncer,
		searcher: opts.Searcher,
		tokens:   retrieval.NewTokenExtractor(),
		builder:  opts.Builder,
		provider: opts.Provider,
		renderer: opts.Renderer,
		archiver: opts.Archiver,
		policy:   opts.Policy,
		logger:   logger,
	}
}

// Run executes the review for one merge request. When dryRun is set the
// assembled prompt is printed and no model call happens.
func (p *Pipeline) Run(ctx context.Context, repoURL string, mrIID int, dryRun bool) error {
	stats := &review.PipelineStats{}

	p.logger.Info("fetching merge request", "step", "1/5", "iid", mrIID)
	mr, err := p.fetcher.GetMRData(ctx, repoURL, mrIID)
	if err != nil {
		return fmt.Errorf("fetching merge request: %w", err)
	}
	stats.DiffLines = strings.Count(mr.Diff, "\n")
	stats.SummaryOnlyMode = stats.DiffLines > p.cfg.Review.MaxDiffLinesFullMode
	p.logger.Info("merge request loaded", "iid", mr.IID,
		"diff_lines", stats.DiffLines, "files", len(mr.ChangedFiles))

	p.logger.Info("syncing repository", "step", "2/5")
	repoPath, err := p.syncer.EnsureRepo(ctx, repoURL)
	if err != nil {
		return fmt.Errorf("syncing repository: %w", err)
	}
	if mr.SHA != "" {
		if err := p.syncer.CheckoutSHA(ctx, mr.SHA); err != nil {
			return fmt.Errorf("checking out %s: %w", mr.SHA, err)
		}
	} else if mr.TargetBranch != "" {
		// Some API responses omit the head SHA; review against the target
		// branch tip instead.
		if err := p.syncer.CheckoutBranch(ctx, mr.TargetBranch); err != nil {
			return fmt.Errorf("checking out %s: %w", mr.TargetBranch, err)
		}
	}

	p.logger.Info("retrieving context", "step", "3/5")
	fragments := p.retrieveContext(ctx, repoPath, mr, stats)

	p.logger.Info("applying redaction", "step", "4/5")
	fragments = p.redactFragments(fragments, stats)
	cleanDiff, secrets := redact.Secrets(mr.Diff)
	stats.Redaction.SecretsReplaced += secrets
	mr.Diff = cleanDiff

	stats.ContextFragments = len(fragments)
	stats.ContextFiles = countFiles(fragments)

	p.logger.Info("building prompt", "step", "5/5")
	promptText, selection := p.builder.Build(mr, fragments)
	stats.PromptChars = len(promptText)
	stats.FragmentsDropped = selection.Dropped

	if dryRun {
		p.renderer.DryRun(mr, promptText, stats)
		return nil
	}

	result := p.complete(ctx, promptText, stats)
	result.CapBlockers(p.cfg.Review.MaxBlockers)

	p.renderer.Report(mr, result, stats)

	if p.archiver != nil {
		id, err := p.archiver.SaveRun(mr, p.provider.Name(), result, stats)
		if err != nil {
			p.logger.Warn("saving run failed", "error", err)
		} else {
			p.logger.Info("run archived", "id", id)
		}
	}
	return nil
}

// retrieveContext runs token extraction and context search. Retrieval
// failure degrades to an empty context set instead of aborting the review.
func (p *Pipeline) retrieveContext(ctx context.Context, repoPath string, mr *gitlab.MRData, stats *review.PipelineStats) []retrieval.ContextFragment {
	tokens := p.tokens.Extract(mr.Diff, p.cfg.Retrieval.TriggerWords, mr.ChangedFiles)
	p.logger.Debug("tokens extracted", "count", len(tokens))

	fragments, err := p.searcher.SearchContext(ctx, repoPath, tokens, mr.ChangedFiles)
	if err != nil {
		p.logger.Warn("retrieval failed, continuing without context", "error", err)
		stats.RetrievalDegraded = true
		return nil
	}
	return fragments
}

// redactFragments drops excluded files and masks secrets and internal URLs
// in the survivors.
func (p *Pipeline) redactFragments(fragments []retrieval.ContextFragment, stats *review.PipelineStats) []retrieval.ContextFragment {
	safe := fragments[:0]
	for _, frag := range fragments {
		if p.policy != nil && p.policy.ShouldExclude(frag.FilePath) {
			stats.Redaction.FilesExcluded++
			continue
		}
		excerpt, secrets := redact.Secrets(frag.CodeExcerpt)
		stats.Redaction.SecretsReplaced += secrets
		excerpt, urls := redact.InternalURLs(excerpt, p.cfg.Review.InternalURLDomains)
		stats.Redaction.URLsReplaced += urls
		frag.CodeExcerpt = excerpt
		safe = append(safe, frag)
	}
	return safe
}

// complete calls the provider and parses its output; any failure produces
// a degraded result rather than an error.
func (p *Pipeline) complete(ctx context.Context, promptText string, stats *review.PipelineStats) *review.Result {
	p.logger.Info("calling model", "provider", p.provider.Name())
	raw, usage, err := p.provider.Complete(ctx, promptText)
	if err != nil {
		p.logger.Error("model call failed", "error", err)
		return llm.DegradedResult("model call failed: "+err.Error(), stats)
	}
	stats.PromptTokens = usage.PromptTokens
	stats.CompletionTokens = usage.CompletionTokens

	result, err := llm.ParseReviewResult(raw)
	if err != nil {
		p.logger.Error("parsing model response failed", "error", err)
		return llm.DegradedResult("response parse error: "+err.Error(), stats)
	}
	return result
}

func countFiles(fragments []retrieval.ContextFragment) int {
	files := make(map[string]struct{}, len(fragments))
	for _, f := range fragments {
		files[f.FilePath] = struct{}{}
	}
	return len(files)
}
