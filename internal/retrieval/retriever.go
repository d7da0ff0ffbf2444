package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mrlead/mrlead/internal/extract"
	"github.com/mrlead/mrlead/internal/redact"
	"github.com/mrlead/mrlead/internal/ripgrep"
)

// tinyFileLines is the size at or under which a package-marker file
// (__init__.py) is skipped; such files carry only re-exports.
const tinyFileLines = 10

// defaultSearchWorkers bounds the lexical-search fan-out. Each worker runs
// one external search process at a time.
const defaultSearchWorkers = 4

// Searcher issues one lexical search per token. *ripgrep.Searcher is the
// production implementation.
type Searcher interface {
	Search(ctx context.Context, token, root string) ([]ripgrep.Match, error)
}

// Config carries the retrieval limits handed down from the config loader.
type Config struct {
	// MaxFragmentLines bounds every excerpt; longer excerpts are cut with
	// a truncation marker. <= 0 disables the limit.
	MaxFragmentLines int
	// MaxContextTokens is the token budget for the whole context section.
	// A tenth of it, converted to characters, bounds a single structural
	// block before the extractor falls back to a fixed window.
	MaxContextTokens int
	// TokenRate converts characters to tokens (tokens per character).
	TokenRate float64
	// SearchWorkers bounds concurrent lexical searches. <= 0 means the
	// default of 4.
	SearchWorkers int
}

// perFragmentBudgetChars is the character bound on a single markup or
// build-recipe block.
func (c Config) perFragmentBudgetChars() int {
	rate := c.TokenRate
	if rate <= 0 {
		rate = 0.3
	}
	return int(float64(c.MaxContextTokens) / 10 / rate)
}

func (c Config) searchWorkers() int {
	if c.SearchWorkers <= 0 {
		return defaultSearchWorkers
	}
	return c.SearchWorkers
}

// Retriever runs the two-pass context search: structural extraction over
// every Python file first, lexical search for whatever the first pass did
// not cover.
type Retriever struct {
	python   *extract.PythonExtractor
	searcher Searcher
	policy   *redact.Policy
	cfg      Config
	logger   *slog.Logger
}

// NewRetriever wires a retriever from its collaborators. A nil searcher
// disables the lexical pass; a nil policy excludes nothing.
func NewRetriever(python *extract.PythonExtractor, searcher Searcher, policy *redact.Policy, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		python:   python,
		searcher: searcher,
		policy:   policy,
		cfg:      cfg,
		logger:   logger,
	}
}

// SearchContext returns the ranked, deduplicated fragment list for a token
// set. changedFiles are repository-relative paths from the diff; matches in
// those files are skipped since the diff already shows them. An inaccessible
// root is the one fatal condition.
func (r *Retriever) SearchContext(ctx context.Context, root string, tokens, changedFiles []string) ([]ContextFragment, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("repository root inaccessible: %w", err)
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}
	changedSet := make(map[string]struct{}, len(changedFiles))
	for _, cf := range changedFiles {
		changedSet[filepath.ToSlash(cf)] = struct{}{}
	}

	coverage := NewCoverageIndex()
	fragments := r.structuralPass(root, tokenSet, changedSet, coverage)
	fragments = append(fragments, r.lexicalPass(ctx, root, tokens, changedSet, coverage)...)

	sort.SliceStable(fragments, func(i, j int) bool {
		a, b := fragments[i], fragments[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.LineStart < b.LineStart
	})
	return Deduplicate(fragments), nil
}

// structuralPass walks every Python file under root and extracts full
// definitions whose names are in the token set.
func (r *Retriever) structuralPass(root string, tokens, changed map[string]struct{}, coverage *CoverageIndex) []ContextFragment {
	var fragments []ContextFragment
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		rel := relPath(root, path)
		if r.excluded(rel) {
			return nil
		}
		for _, def := range r.python.DefinitionsFromFile(path, tokens) {
			frag := r.definitionFragment(rel, def, changed)
			coverage.MarkPair(rel, def.Name)
			coverage.Register(rel, def.StartLine, def.EndLine)
			fragments = append(fragments, frag)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("structural walk aborted", "error", err)
	}
	return fragments
}

// lexicalPass fans searches out over a bounded worker pool and consumes the
// results in token order so output stays deterministic.
func (r *Retriever) lexicalPass(ctx context.Context, root string, tokens []string, changed map[string]struct{}, coverage *CoverageIndex) []ContextFragment {
	if r.searcher == nil {
		return nil
	}

	results := make([][]ripgrep.Match, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.searchWorkers())
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			matches, err := r.searcher.Search(gctx, token, root)
			if err != nil {
				r.logger.Warn("lexical search failed", "token", token, "error", err)
				return nil
			}
			results[i] = matches
			return nil
		})
	}
	// Workers never return errors; Wait only orders the joins.
	_ = g.Wait()

	var fragments []ContextFragment
	for i, token := range tokens {
		for _, m := range results[i] {
			frags := r.matchFragments(root, token, m, changed, coverage)
			fragments = append(fragments, frags...)
		}
	}
	return fragments
}

// matchFragments turns one lexical match into zero or more fragments,
// applying all skip rules and dispatching to the structural extractor the
// file type calls for.
func (r *Retriever) matchFragments(root, token string, m ripgrep.Match, changed map[string]struct{}, coverage *CoverageIndex) []ContextFragment {
	rel := relPath(root, m.Path)
	if r.excluded(rel) {
		return nil
	}
	if _, inDiff := changed[rel]; inDiff {
		return nil
	}
	if underTestDir(rel) {
		return nil
	}
	if coverage.HasPair(rel, token) {
		return nil
	}
	if strings.TrimSpace(m.Excerpt) == "" {
		return nil
	}

	abs := m.Path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, rel)
	}
	source, err := os.ReadFile(abs)
	if err != nil {
		r.logger.Debug("unreadable file", "path", rel, "error", err)
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(string(source), "\n"), "\n")
	if filepath.Base(rel) == "__init__.py" && len(lines) <= tinyFileLines {
		return nil
	}

	kind := extract.Classify(rel)
	var out []ContextFragment
	switch kind {
	case extract.KindPython:
		defs := r.python.Definitions(abs, source, map[string]struct{}{token: {}})
		for _, def := range defs {
			frag := r.definitionFragment(rel, def, changed)
			out = r.accept(out, frag, coverage)
		}
		if len(defs) > 0 {
			return out
		}
		// No named definition; the raw window still shows the usage.
		out = r.accept(out, r.usageFragment(rel, token, m), coverage)

	case extract.KindYAML, extract.KindDockerfile:
		extractor := extract.BlockExtractorFor(kind, r.cfg.perFragmentBudgetChars())
		block, ok := extractor.Extract(lines, m.MatchLine)
		if !ok {
			return nil
		}
		// A recovered block is a structural definition, not a raw usage
		// window, and ranks accordingly.
		frag := ContextFragment{
			FilePath:    rel,
			LineStart:   block.StartLine,
			LineEnd:     block.EndLine,
			CodeExcerpt: truncateExcerpt(block.Text, r.cfg.MaxFragmentLines),
			TokenMatch:  token,
			Type:        TypeDefinition,
			Priority:    definitionPriority(rel, changed),
		}
		out = r.accept(out, frag, coverage)

	default:
		out = r.accept(out, r.usageFragment(rel, token, m), coverage)
	}
	return out
}

// accept appends frag unless its range is already covered, registering the
// range otherwise.
func (r *Retriever) accept(out []ContextFragment, frag ContextFragment, coverage *CoverageIndex) []ContextFragment {
	if coverage.Covered(frag.FilePath, frag.LineStart, frag.LineEnd) {
		return out
	}
	coverage.Register(frag.FilePath, frag.LineStart, frag.LineEnd)
	return append(out, frag)
}

func (r *Retriever) definitionFragment(rel string, def extract.PythonDefinition, changed map[string]struct{}) ContextFragment {
	fragType := TypeDefinition
	priority := definitionPriority(rel, changed)
	if def.IsModel {
		fragType = TypePydanticModel
		priority = PriorityDataModel
	}
	return ContextFragment{
		FilePath:    rel,
		LineStart:   def.StartLine,
		LineEnd:     def.EndLine,
		CodeExcerpt: truncateExcerpt(def.Text, r.cfg.MaxFragmentLines),
		TokenMatch:  def.Name,
		Type:        fragType,
		Priority:    priority,
	}
}

func (r *Retriever) usageFragment(rel, token string, m ripgrep.Match) ContextFragment {
	return ContextFragment{
		FilePath:    rel,
		LineStart:   m.WindowStart,
		LineEnd:     m.WindowEnd,
		CodeExcerpt: truncateExcerpt(m.Excerpt, r.cfg.MaxFragmentLines),
		TokenMatch:  token,
		Type:        TypeUsage,
		Priority:    PriorityUsage,
	}
}

func (r *Retriever) excluded(rel string) bool {
	if r.policy == nil {
		return false
	}
	return r.policy.ShouldExclude(rel)
}

// underTestDir reports whether a repository-relative path sits in a test or
// example tree. Such files are noise for review context.
func underTestDir(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		switch seg {
		case "test", "tests", "testing", "example", "examples":
			return true
		}
		if strings.HasPrefix(seg, "test_") {
			return true
		}
	}
	return false
}

// relPath maps an absolute or root-joined path to a repository-relative
// slash path.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
