package extract

import "strings"

// YAMLBlockExtractor recovers the enclosing indentation block around a
// matched line in a YAML file. For a key nested under a mapping this yields
// the whole mapping entry (e.g. a full docker-compose service block).
type YAMLBlockExtractor struct {
	// BudgetChars bounds the extracted block; larger blocks fall back to a
	// fixed window around the target line.
	BudgetChars int
}

// Extract implements BlockExtractor. target is 1-indexed.
func (e *YAMLBlockExtractor) Extract(lines []string, target int) (Block, bool) {
	if len(lines) == 0 {
		return Block{}, false
	}
	idx := target - 1
	if idx >= len(lines) {
		idx = len(lines) - 1
	}
	if idx < 0 {
		idx = 0
	}

	targetIndent := indentOf(lines[idx])

	// Walk up: the block starts at the nearest non-empty line with lower
	// indentation, or at the furthest line seen with the same indent.
	start := idx
	for i := idx - 1; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := indentOf(line)
		if indent < targetIndent {
			start = i
			targetIndent = indent
			break
		}
		start = i
	}

	// Walk down: blank lines continue the block, the block ends before the
	// next non-empty line at or below the block indent.
	end := idx + 1
	for i := idx + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			end = i + 1
			continue
		}
		if indentOf(line) <= targetIndent {
			break
		}
		end = i + 1
	}

	text := strings.Join(lines[start:end], "\n")
	if e.BudgetChars > 0 && len(text) > e.BudgetChars {
		return fallbackWindow(lines, target), true
	}

	return Block{Text: text, StartLine: start + 1, EndLine: end}, true
}
