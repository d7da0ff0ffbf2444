package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/review"
)

func sampleMR() *gitlab.MRData {
	return &gitlab.MRData{
		Title:  "Add billing flow",
		Author: "dev1",
		WebURL: "https://gitlab.example.com/g/r/-/merge_requests/7",
		SHA:    "abc123def456789",
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)

	result := &review.Result{
		Summary:  []string{"adds invoice flow"},
		KeyRisks: []review.Risk{{Severity: "major", Title: "no idempotency", Details: "double charge"}},
		Blockers: []review.Blocker{{
			Severity: "blocker", File: "app/billing.py", Lines: "10-20",
			Title: "sql injection", Comment: "raw interpolation",
			SuggestedFix: "use parameters", Verification: "add a test",
		}},
		QuestionsToAuthor: []review.Question{{Question: "why no tests?", WhyItMatters: "regressions"}},
	}
	stats := &review.PipelineStats{DiffLines: 42, ContextFragments: 3, ContextFiles: 2, PromptTokens: 1200, CompletionTokens: 300}

	r.Report(sampleMR(), result, stats)
	out := buf.String()

	for _, want := range []string{
		"MR Review: Add billing flow",
		"abc123def456", // short SHA
		"adds invoice flow",
		"[MAJOR]",
		"sql injection",
		"app/billing.py:10-20",
		"use parameters",
		"why no tests?",
		"Prompt tokens",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestReportEmptySections(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	r.Report(sampleMR(), &review.Result{Summary: []string{"clean change"}}, &review.PipelineStats{})
	out := buf.String()

	for _, want := range []string{"(none identified)", "(no blockers)", "(none)"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing placeholder %q", want)
		}
	}
}

func TestDryRunTruncatesPrompt(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf)
	longPrompt := strings.Repeat("p", promptPreviewChars+500)
	r.DryRun(sampleMR(), longPrompt, &review.PipelineStats{DiffLines: 10})
	out := buf.String()

	if !strings.Contains(out, "DRY RUN") {
		t.Error("missing dry-run header")
	}
	if !strings.Contains(out, "500 more chars") {
		t.Errorf("missing truncation note:\n%s", out)
	}
}
