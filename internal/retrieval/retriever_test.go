package retrieval

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mrlead/mrlead/internal/extract"
	"github.com/mrlead/mrlead/internal/redact"
	"github.com/mrlead/mrlead/internal/ripgrep"
)

type fakeSearcher struct {
	matches map[string][]ripgrep.Match
}

func (f *fakeSearcher) Search(_ context.Context, token, _ string) ([]ripgrep.Match, error) {
	return f.matches[token], nil
}

func testConfig() Config {
	return Config{
		MaxFragmentLines: 80,
		MaxContextTokens: 9000,
		TokenRate:        0.3,
	}
}

func newTestRetriever(t *testing.T, searcher Searcher, policy *redact.Policy) *Retriever {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	python, err := extract.NewPythonExtractor(logger)
	if err != nil {
		t.Fatalf("NewPythonExtractor: %v", err)
	}
	t.Cleanup(python.Close)
	return NewRetriever(python, searcher, policy, testConfig(), logger)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSearchContextStructural(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/billing.py", `def compute_balance(account):
    return account.total


def unrelated():
    pass
`)
	r := newTestRetriever(t, &fakeSearcher{}, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatalf("SearchContext: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %d: %+v", len(frags), frags)
	}
	f := frags[0]
	if f.FilePath != "app/billing.py" {
		t.Errorf("path = %q", f.FilePath)
	}
	if f.Type != TypeDefinition || f.Priority != PriorityCrossModuleDefinition {
		t.Errorf("type/priority = %s/%d", f.Type, f.Priority)
	}
	if !strings.Contains(f.CodeExcerpt, "compute_balance") {
		t.Errorf("excerpt missing definition: %q", f.CodeExcerpt)
	}
	if strings.Contains(f.CodeExcerpt, "unrelated") {
		t.Errorf("excerpt includes unmatched definition: %q", f.CodeExcerpt)
	}
}

func TestSearchContextSameModulePriority(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/billing.py", "def compute_balance(account):\n    return account.total\n")
	r := newTestRetriever(t, &fakeSearcher{}, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, []string{"app/billing.py"})
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].Priority != PrioritySameModuleDefinition {
		t.Fatalf("expected same-module priority %d, got %+v", PrioritySameModuleDefinition, frags)
	}
}

func TestSearchContextModelPriority(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models.py", `class InvoiceRecord(BaseModel):
    amount: int
    currency: str
`)
	r := newTestRetriever(t, &fakeSearcher{}, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"InvoiceRecord"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %+v", frags)
	}
	if frags[0].Type != TypePydanticModel || frags[0].Priority != PriorityDataModel {
		t.Errorf("type/priority = %s/%d", frags[0].Type, frags[0].Priority)
	}
}

func TestSearchContextLexicalUsage(t *testing.T) {
	root := t.TempDir()
	content := "line one\nline two\ncalls compute_balance here\nline four\nline five\nline six\nline seven\nline eight\nline nine\nline ten\nline eleven\nline twelve\n"
	writeFile(t, root, "notes/usage.txt", content)
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "notes/usage.txt"),
			MatchLine:   3,
			WindowStart: 1,
			WindowEnd:   5,
			Excerpt:     "line one\nline two\ncalls compute_balance here\nline four\nline five",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 usage fragment, got %+v", frags)
	}
	f := frags[0]
	if f.Type != TypeUsage || f.Priority != PriorityUsage {
		t.Errorf("type/priority = %s/%d", f.Type, f.Priority)
	}
	if f.FilePath != "notes/usage.txt" {
		t.Errorf("path = %q", f.FilePath)
	}
}

func TestSearchContextYAMLBlockIsDefinition(t *testing.T) {
	root := t.TempDir()
	content := `services:
  billing:
    image: billing:latest
    environment:
      - COMPUTE_MODE=strict

  worker:
    image: worker:latest
`
	writeFile(t, root, "deploy/compose.yml", content)
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"billing": {{
			Path:        filepath.Join(root, "deploy/compose.yml"),
			MatchLine:   2,
			WindowStart: 1,
			WindowEnd:   5,
			Excerpt:     "services:\n  billing:\n    image: billing:latest",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"billing"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected 1 fragment, got %+v", frags)
	}
	f := frags[0]
	if f.Type != TypeDefinition || f.Priority != PriorityCrossModuleDefinition {
		t.Errorf("recovered block should rank as definition, got type/priority = %s/%d", f.Type, f.Priority)
	}
	if !strings.Contains(f.CodeExcerpt, "billing:") {
		t.Errorf("excerpt missing block content: %q", f.CodeExcerpt)
	}
}

func TestSearchContextSkipsEmptyExcerpt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes/blank.txt", "\n\n\n\n\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "notes/blank.txt"),
			MatchLine:   2,
			WindowStart: 1,
			WindowEnd:   4,
			Excerpt:     "  \n\n  ",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("whitespace-only match should be skipped, got %+v", frags)
	}
}

func TestSearchContextSkipsChangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "changed.txt", "compute_balance appears here\nmore\nlines\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "changed.txt"),
			MatchLine:   1,
			WindowStart: 1,
			WindowEnd:   3,
			Excerpt:     "compute_balance appears here\nmore\nlines",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, []string{"changed.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("changed file should be skipped, got %+v", frags)
	}
}

func TestSearchContextSkipsTestDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "tests/test_billing.txt", "compute_balance used in a test\nmore\nlines\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "tests/test_billing.txt"),
			MatchLine:   1,
			WindowStart: 1,
			WindowEnd:   3,
			Excerpt:     "compute_balance used in a test",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("test directory match should be skipped, got %+v", frags)
	}
}

func TestSearchContextSkipsTinyInit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/__init__.py", "from .billing import compute_balance\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "pkg/__init__.py"),
			MatchLine:   1,
			WindowStart: 1,
			WindowEnd:   1,
			Excerpt:     "from .billing import compute_balance",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("tiny package marker should be skipped, got %+v", frags)
	}
}

func TestSearchContextCoveredPairSkipsLexical(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/billing.py", "def compute_balance(account):\n    return account.total\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"compute_balance": {{
			Path:        filepath.Join(root, "app/billing.py"),
			MatchLine:   1,
			WindowStart: 1,
			WindowEnd:   2,
			Excerpt:     "def compute_balance(account):\n    return account.total",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected only the structural fragment, got %+v", frags)
	}
	if frags[0].Type != TypeDefinition {
		t.Errorf("type = %s", frags[0].Type)
	}
}

func TestSearchContextExclusionPolicy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "secrets/keys.py", "def compute_balance():\n    pass\n")
	policy, err := redact.NewPolicy(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRetriever(t, &fakeSearcher{}, policy)

	frags, err := r.SearchContext(context.Background(), root, []string{"compute_balance"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("file under secrets/ should be excluded, got %+v", frags)
	}
}

func TestSearchContextPriorityOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models.py", "class InvoiceRecord(BaseModel):\n    amount: int\n")
	writeFile(t, root, "other.txt", strings.Repeat("filler\n", 30)+"uses InvoiceRecord\n")
	searcher := &fakeSearcher{matches: map[string][]ripgrep.Match{
		"InvoiceRecord": {{
			Path:        filepath.Join(root, "other.txt"),
			MatchLine:   31,
			WindowStart: 28,
			WindowEnd:   31,
			Excerpt:     "filler\nfiller\nfiller\nuses InvoiceRecord",
		}},
	}}
	r := newTestRetriever(t, searcher, nil)

	frags, err := r.SearchContext(context.Background(), root, []string{"InvoiceRecord"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %+v", frags)
	}
	if frags[0].Type != TypePydanticModel || frags[1].Type != TypeUsage {
		t.Errorf("wrong order: %s then %s", frags[0].Type, frags[1].Type)
	}
}

func TestSearchContextEmptyTokens(t *testing.T) {
	root := t.TempDir()
	r := newTestRetriever(t, &fakeSearcher{}, nil)
	frags, err := r.SearchContext(context.Background(), root, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 0 {
		t.Fatalf("expected no fragments, got %+v", frags)
	}
}

func TestSearchContextInaccessibleRoot(t *testing.T) {
	r := newTestRetriever(t, &fakeSearcher{}, nil)
	_, err := r.SearchContext(context.Background(), "/nonexistent/repo/root", []string{"anything"}, nil)
	if err == nil {
		t.Fatal("expected error for inaccessible root")
	}
}
