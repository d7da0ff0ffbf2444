package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/retrieval"
)

const rolePolicy = `You are a senior tech-lead performing a code review of a merge request.
Your role:
- Be thorough and skeptical, but constructive.
- Do NOT comment on code style, formatting, or cosmetic issues.
- Every blocker MUST have a verifiable, specific rationale (not vague concerns).
- Do NOT invent context or assume things not present in the provided fragments.
- Prioritise security, correctness, and reliability issues.`

const outputSchema = `{
  "summary": ["string - 2 to 7 bullet points summarising the change"],
  "key_risks": [
    {
      "severity": "major | minor",
      "title": "short title",
      "details": "explanation"
    }
  ],
  "blockers": [
    {
      "severity": "blocker",
      "file": "path/to/file.py",
      "lines": "start-end",
      "title": "short title",
      "comment": "detailed comment",
      "suggested_fix": "suggested change (optional)",
      "verification": "how to verify this is fixed"
    }
  ],
  "questions_to_author": [
    {
      "file": "path/to/file.py or empty",
      "lines": "line range or empty",
      "question": "the question",
      "why_it_matters": "why this is important"
    }
  ]
}`

// BuilderParams carry the prompt-shape knobs from configuration.
type BuilderParams struct {
	// MaxDiffLinesFullMode switches the prompt to summary-only review
	// when the diff exceeds this many lines.
	MaxDiffLinesFullMode int
	// MaxBlockers caps the blocker list the model may return.
	MaxBlockers int
	Budget      BudgetParams
}

// Builder assembles the full review prompt.
type Builder struct {
	params BuilderParams
	logger *slog.Logger
}

// NewBuilder returns a prompt builder.
func NewBuilder(params BuilderParams, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{params: params, logger: logger}
}

// Build assembles the prompt from merge-request data and ranked context
// fragments, budgeting the context section against everything else.
func (b *Builder) Build(mr *gitlab.MRData, fragments []retrieval.ContextFragment) (string, SelectionStats) {
	diffLines := strings.Count(mr.Diff, "\n")
	summaryOnly := b.params.MaxDiffLinesFullMode > 0 && diffLines > b.params.MaxDiffLinesFullMode

	base := []string{
		"## ROLE & POLICY\n" + rolePolicy,
		b.metadataSection(mr),
		b.diffSection(mr.Diff, summaryOnly),
		b.outputSection(),
	}
	basePrompt := strings.Join(base, "\n\n")

	contextSection, stats := BuildContextSection(basePrompt, fragments, b.params.Budget)

	// Context goes between the diff and the output contract.
	parts := append([]string{}, base[:3]...)
	parts = append(parts, contextSection, base[3])
	promptText := strings.Join(parts, "\n\n")

	b.logger.Info("prompt built",
		"chars", len(promptText),
		"diff_lines", diffLines,
		"fragments_selected", stats.Selected,
		"fragments_dropped", stats.Dropped,
		"summary_only", summaryOnly)
	return promptText, stats
}

func (b *Builder) metadataSection(mr *gitlab.MRData) string {
	var sb strings.Builder
	sb.WriteString("## MR METADATA\n")
	fmt.Fprintf(&sb, "Title: %s\n", mr.Title)
	fmt.Fprintf(&sb, "Author: %s\n", mr.Author)
	fmt.Fprintf(&sb, "Source branch: %s -> %s\n", mr.SourceBranch, mr.TargetBranch)
	fmt.Fprintf(&sb, "URL: %s\n", mr.WebURL)
	fmt.Fprintf(&sb, "SHA: %s\n", mr.SHA)

	desc := mr.Description
	if desc == "" {
		desc = "(no description)"
	}
	fmt.Fprintf(&sb, "\nDescription:\n%s\n", desc)

	fmt.Fprintf(&sb, "\nChanged files (%d):\n", len(mr.ChangedFiles))
	for _, f := range mr.ChangedFiles {
		fmt.Fprintf(&sb, "  - %s\n", f)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (b *Builder) diffSection(diff string, summaryOnly bool) string {
	if summaryOnly {
		note := fmt.Sprintf(
			"NOTE: The diff is very large (>%d lines). Focus on the summary and key risks. Limit blockers to the most critical issues only.",
			b.params.MaxDiffLinesFullMode)
		return "## DIFF\n" + note + "\n\n" + diff
	}
	return "## DIFF\n" + diff
}

func (b *Builder) outputSection() string {
	return fmt.Sprintf(`## OUTPUT CONTRACT
Return ONLY valid JSON matching this schema (no markdown fences, no extra text):

%s

Constraints:
- blockers: at most %d items
- summary: 2-7 items
- questions_to_author: 0-10 items`, outputSchema, b.params.MaxBlockers)
}
