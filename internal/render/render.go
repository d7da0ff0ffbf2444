// Package render prints the review report to the terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrlead/mrlead/internal/gitlab"
	"github.com/mrlead/mrlead/internal/review"
)

const ruleWidth = 72

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("40"))

	riskStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	blockerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("40"))

	minorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// Renderer writes review reports. Out defaults to the caller's choice;
// tests pass a buffer.
type Renderer struct {
	out io.Writer
}

// NewRenderer returns a renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func severityStyle(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "blocker":
		return blockerStyle
	case "major":
		return riskStyle
	case "minor":
		return minorStyle
	default:
		return dimStyle
	}
}

func (r *Renderer) rule(style lipgloss.Style, title string) {
	if title == "" {
		fmt.Fprintln(r.out, dimStyle.Render(strings.Repeat("─", ruleWidth)))
		return
	}
	pad := ruleWidth - lipgloss.Width(title) - 4
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintln(r.out, style.Render("── "+title+" "+strings.Repeat("─", pad)))
}

// Report prints the full review to the renderer's writer.
func (r *Renderer) Report(mr *gitlab.MRData, result *review.Result, stats *review.PipelineStats) {
	fmt.Fprintln(r.out)
	r.rule(headerStyle, "MR Review: "+mr.Title)
	fmt.Fprintf(r.out, "%s %s\n", dimStyle.Render("URL:   "), mr.WebURL)
	fmt.Fprintf(r.out, "%s %s\n", dimStyle.Render("Author:"), mr.Author)
	fmt.Fprintf(r.out, "%s %s\n", dimStyle.Render("SHA:   "), shortSHA(mr.SHA))

	r.statsBlock(stats)

	r.rule(summaryStyle, "Summary")
	for _, point := range result.Summary {
		fmt.Fprintf(r.out, "  • %s\n", point)
	}

	if len(result.KeyRisks) > 0 {
		r.rule(riskStyle, "Key Risks")
		for _, risk := range result.KeyRisks {
			tag := severityStyle(risk.Severity).Render("[" + strings.ToUpper(risk.Severity) + "]")
			fmt.Fprintf(r.out, "  %s %s\n", tag, risk.Title)
			fmt.Fprintf(r.out, "         %s\n", dimStyle.Render(risk.Details))
		}
	} else {
		r.rule(dimStyle, "Key Risks")
		fmt.Fprintln(r.out, dimStyle.Render("  (none identified)"))
	}

	if len(result.Blockers) > 0 {
		r.rule(blockerStyle, "Blockers")
		for i, bl := range result.Blockers {
			fmt.Fprintf(r.out, "\n  %s  %s\n",
				blockerStyle.Render(fmt.Sprintf("[%d] %s", i+1, bl.Title)),
				dimStyle.Render(bl.File+":"+bl.Lines))
			fmt.Fprintf(r.out, "      %s\n", bl.Comment)
			if bl.SuggestedFix != "" {
				fmt.Fprintf(r.out, "      %s %s\n", minorStyle.Render("Fix:"), bl.SuggestedFix)
			}
			if bl.Verification != "" {
				fmt.Fprintf(r.out, "      %s\n", dimStyle.Render("Verify: "+bl.Verification))
			}
		}
	} else {
		r.rule(dimStyle, "Blockers")
		fmt.Fprintln(r.out, okStyle.Render("  (no blockers)"))
	}

	if len(result.QuestionsToAuthor) > 0 {
		r.rule(questionStyle, "Questions to Author")
		for i, q := range result.QuestionsToAuthor {
			loc := ""
			if q.File != "" {
				loc = dimStyle.Render(q.File+":"+q.Lines) + "  "
			}
			fmt.Fprintf(r.out, "\n  %s %s%s\n", questionStyle.Render(fmt.Sprintf("[%d]", i+1)), loc, q.Question)
			fmt.Fprintf(r.out, "      %s\n", dimStyle.Render("Why: "+q.WhyItMatters))
		}
	} else {
		r.rule(dimStyle, "Questions to Author")
		fmt.Fprintln(r.out, dimStyle.Render("  (none)"))
	}

	r.rule(dimStyle, "")
}

func (r *Renderer) statsBlock(stats *review.PipelineStats) {
	rows := [][2]string{
		{"Diff lines", fmt.Sprint(stats.DiffLines)},
		{"Context fragments", fmt.Sprint(stats.ContextFragments)},
		{"Context files", fmt.Sprint(stats.ContextFiles)},
		{"Secrets redacted", fmt.Sprint(stats.Redaction.SecretsReplaced)},
		{"URLs redacted", fmt.Sprint(stats.Redaction.URLsReplaced)},
		{"Files excluded", fmt.Sprint(stats.Redaction.FilesExcluded)},
	}
	if stats.PromptTokens > 0 {
		rows = append(rows,
			[2]string{"Prompt tokens", fmt.Sprint(stats.PromptTokens)},
			[2]string{"Completion tokens", fmt.Sprint(stats.CompletionTokens)},
			[2]string{"Total tokens", fmt.Sprint(stats.PromptTokens + stats.CompletionTokens)})
	}
	if stats.SummaryOnlyMode {
		rows = append(rows, [2]string{"Mode", "summary-only (large diff)"})
	}

	r.rule(dimStyle, "Pipeline Stats")
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %s %s\n", dimStyle.Render(fmt.Sprintf("%-20s", row[0])), row[1])
	}
}

// promptPreviewChars bounds how much of the prompt a dry run prints.
const promptPreviewChars = 3000

// DryRun prints the assembled prompt and stats without calling a model.
func (r *Renderer) DryRun(mr *gitlab.MRData, promptText string, stats *review.PipelineStats) {
	fmt.Fprintln(r.out)
	r.rule(riskStyle, "DRY RUN: Prompt Preview")
	fmt.Fprintf(r.out, "%s %s\n", dimStyle.Render("MR:"), mr.WebURL)
	fmt.Fprintf(r.out, "%s %d chars\n", dimStyle.Render("Prompt size:"), len(promptText))
	fmt.Fprintf(r.out, "%s %d\n", dimStyle.Render("Diff lines:"), stats.DiffLines)
	fmt.Fprintf(r.out, "%s %d\n", dimStyle.Render("Context fragments:"), stats.ContextFragments)
	r.rule(dimStyle, "Prompt (first 3000 chars)")
	if len(promptText) > promptPreviewChars {
		fmt.Fprintln(r.out, promptText[:promptPreviewChars])
		fmt.Fprintf(r.out, "\n%s\n", dimStyle.Render(fmt.Sprintf("... (%d more chars)", len(promptText)-promptPreviewChars)))
	} else {
		fmt.Fprintln(r.out, promptText)
	}
}

func shortSHA(sha string) string {
	if sha == "" {
		return "n/a"
	}
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
