// Package prompt assembles the review prompt and keeps it inside the
// model's context window. The budgeter owns fragment selection; the
// builder owns section layout.
package prompt

import (
	"fmt"
	"strings"

	"github.com/mrlead/mrlead/internal/retrieval"
)

// headerOverhead approximates the rendered cost of one fragment's header
// line and code-fence markers, in characters.
const headerOverhead = 100

// noContextMarker is rendered when no fragment fits or none were retrieved.
const noContextMarker = "(none)"

// BudgetParams are the sizing knobs from configuration. TokenRate converts
// characters to tokens.
type BudgetParams struct {
	MaxPromptTokens  int
	MaxContextTokens int
	TokenRate        float64
}

// SelectionStats reports what the budgeter kept and dropped.
type SelectionStats struct {
	Selected    int
	Dropped     int
	BudgetChars int
	UsedChars   int
}

// BuildContextSection selects the prefix of ranked fragments that fits the
// context budget and renders them as the retrieved-context section.
//
// The budget in characters is min(max_prompt - base, max_context) tokens
// divided by the token rate, where base is the estimated token count of
// everything else in the prompt. Selection is a greedy prefix walk: the
// first fragment that would overflow stops selection entirely. The input
// is already priority-ranked, so a smarter bin-pack would only trade
// determinism for marginal fill.
func BuildContextSection(basePrompt string, fragments []retrieval.ContextFragment, p BudgetParams) (string, SelectionStats) {
	budgetChars := contextBudgetChars(len(basePrompt), p)
	stats := SelectionStats{BudgetChars: budgetChars}

	var selected []retrieval.ContextFragment
	for _, f := range fragments {
		cost := len(f.CodeExcerpt) + headerOverhead
		if stats.UsedChars+cost > budgetChars {
			break
		}
		stats.UsedChars += cost
		selected = append(selected, f)
	}
	stats.Selected = len(selected)
	stats.Dropped = len(fragments) - len(selected)

	return renderContext(selected), stats
}

func contextBudgetChars(baseChars int, p BudgetParams) int {
	rate := p.TokenRate
	if rate <= 0 {
		rate = 0.3
	}
	baseTokens := float64(baseChars) * rate
	budgetTokens := float64(p.MaxPromptTokens) - baseTokens
	if max := float64(p.MaxContextTokens); max < budgetTokens {
		budgetTokens = max
	}
	if budgetTokens < 0 {
		budgetTokens = 0
	}
	return int(budgetTokens / rate)
}

func renderContext(fragments []retrieval.ContextFragment) string {
	if len(fragments) == 0 {
		return "## RETRIEVED CONTEXT\n" + noContextMarker
	}
	var b strings.Builder
	b.WriteString("## RETRIEVED CONTEXT\n")
	for i, f := range fragments {
		fmt.Fprintf(&b, "\n### [%d] FILE: %s  LINES: %d-%d  (matched: %q, %s)\n```\n%s\n```\n",
			i+1, f.FilePath, f.LineStart, f.LineEnd, f.TokenMatch, f.Type, f.CodeExcerpt)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
