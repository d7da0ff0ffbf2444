package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mrlead/mrlead/internal/review"
)

// ParseReviewResult decodes raw model output into a review result,
// tolerating markdown code fences around the JSON.
func ParseReviewResult(raw string) (*review.Result, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[1 : len(lines)-1]
		} else {
			lines = lines[1:]
		}
		text = strings.Join(lines, "\n")
	}

	var result review.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parsing review response: %w", err)
	}
	return &result, nil
}

// DegradedResult builds a minimal review explaining why the real one could
// not be produced. Retrieval and prompting already happened, so the stats
// give the reader a sense of what the model would have seen.
func DegradedResult(reason string, stats *review.PipelineStats) *review.Result {
	return &review.Result{
		Summary: []string{
			"Review could not be completed: " + reason,
			fmt.Sprintf("Diff: %d lines, Context: %d fragments from %d files.",
				stats.DiffLines, stats.ContextFragments, stats.ContextFiles),
		},
	}
}
