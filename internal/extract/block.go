// Package extract recovers semantic blocks of source text around a target
// location. Three strategies are provided: tree-sitter definition extraction
// for Python, indentation-block walking for YAML, and instruction-block
// walking for Dockerfiles. All extractors are best-effort: unreadable or
// unparseable input yields no block, never an error.
package extract

import "strings"

// Block is an extracted range of source text. Line numbers are 1-indexed
// and inclusive.
type Block struct {
	Text      string
	StartLine int
	EndLine   int
}

// BlockExtractor recovers the semantic block enclosing a target line.
// The target is a 1-indexed line number. The boolean result reports whether
// a block was found.
type BlockExtractor interface {
	Extract(lines []string, target int) (Block, bool)
}

// fallbackWindow returns a fixed ±fallbackContext line window around the
// target line. Used when a structural block exceeds the per-fragment budget.
const fallbackContext = 15

func fallbackWindow(lines []string, target int) Block {
	start := target - 1 - fallbackContext
	if start < 0 {
		start = 0
	}
	end := target + fallbackContext
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		start = end
	}
	return Block{
		Text:      strings.Join(lines[start:end], "\n"),
		StartLine: start + 1,
		EndLine:   end,
	}
}

// indentOf returns the leading whitespace width of a line.
func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
