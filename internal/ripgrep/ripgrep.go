// Package ripgrep invokes the external rg binary and parses its JSON event
// stream into per-match context windows. It is the lexical fallback of the
// retrieval pipeline: structural extraction runs first, ripgrep catches
// token usages everywhere else.
package ripgrep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"time"
)

const (
	// DefaultContextLines is the number of context lines captured before
	// and after each match.
	DefaultContextLines = 9
	// DefaultMaxCount caps matches per file per token.
	DefaultMaxCount = 5
	// DefaultTimeout bounds a single rg invocation. A timed-out token
	// contributes zero matches; it never fails the run.
	DefaultTimeout = 30 * time.Second

	// searchableTypes restricts matching to text and code files.
	searchableTypes = "code:*.{py,js,ts,sql,yaml,yml,json,md}"
)

// ErrBinaryNotFound is returned when the rg executable is not installed.
var ErrBinaryNotFound = errors.New("ripgrep binary not found in PATH")

// Match is a single rg hit with its surrounding context window.
// Line numbers are 1-indexed; WindowStart/WindowEnd are inclusive.
type Match struct {
	Path        string
	MatchLine   int
	WindowStart int
	WindowEnd   int
	Excerpt     string
}

// Searcher runs word-boundary literal searches over a repository tree.
type Searcher struct {
	Binary       string
	ContextLines int
	MaxCount     int
	Timeout      time.Duration

	logger *slog.Logger
}

// NewSearcher creates a Searcher with default limits.
func NewSearcher(logger *slog.Logger) *Searcher {
	return &Searcher{
		Binary:       "rg",
		ContextLines: DefaultContextLines,
		MaxCount:     DefaultMaxCount,
		Timeout:      DefaultTimeout,
		logger:       logger,
	}
}

// Search finds word-boundary occurrences of token under root. The token is
// treated as a literal: regex metacharacters are escaped. A timeout or
// non-zero rg exit yields an empty result, not an error; only a missing
// binary is surfaced so the caller can abort the whole retrieval stage.
func (s *Searcher) Search(ctx context.Context, token, root string) ([]Match, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	pattern := `\b` + regexp.QuoteMeta(token) + `\b`
	args := []string{
		"--json",
		"--context", fmt.Sprint(s.ContextLines),
		"--max-count", fmt.Sprint(s.MaxCount),
		"--type-add", searchableTypes,
		"--type", "code",
		"--",
		pattern,
		root,
	}

	cmd := exec.CommandContext(runCtx, s.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBinaryNotFound, err)
		}
		if runCtx.Err() == context.DeadlineExceeded {
			s.logger.Warn("ripgrep timed out", "token", token, "timeout", s.Timeout)
			return nil, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Exit 1 means no matches; anything else is logged and the
			// token simply contributes nothing.
			if exitErr.ExitCode() != 1 {
				s.logger.Warn("ripgrep failed", "token", token, "exit", exitErr.ExitCode())
			}
			return parseEvents(out, s.ContextLines), nil
		}
		return nil, fmt.Errorf("running ripgrep: %w", err)
	}

	return parseEvents(out, s.ContextLines), nil
}

// event mirrors the rg --json stream: begin/match/context/end records
// delimit per-file blocks of numbered lines.
type event struct {
	Type string    `json:"type"`
	Data eventData `json:"data"`
}

type eventData struct {
	Path       textField `json:"path"`
	Lines      textField `json:"lines"`
	LineNumber int       `json:"line_number"`
}

type textField struct {
	Text string `json:"text"`
}

// blockLine is one context or match line within a contiguous file block.
type blockLine struct {
	isMatch bool
	number  int
	text    string
}

// parseEvents converts the raw JSON event stream into match windows. Each
// match becomes its own window of up to contextLines entries before and
// after within the same contiguous block, so windows of nearby matches may
// overlap. Lines that fail to decode are skipped individually.
func parseEvents(data []byte, contextLines int) []Match {
	var matches []Match
	var currentPath string
	var block []blockLine

	flush := func() {
		for i, bl := range block {
			if !bl.isMatch {
				continue
			}
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			end := i + contextLines + 1
			if end > len(block) {
				end = len(block)
			}
			window := block[start:end]

			excerpt := ""
			for _, w := range window {
				excerpt += w.text
			}

			matches = append(matches, Match{
				Path:        currentPath,
				MatchLine:   bl.number,
				WindowStart: window[0].number,
				WindowEnd:   window[len(window)-1].number,
				Excerpt:     trimTrailingNewline(excerpt),
			})
		}
		block = nil
	}

	for _, raw := range splitLines(data) {
		var evt event
		if err := json.Unmarshal(raw, &evt); err != nil {
			continue
		}

		switch evt.Type {
		case "begin":
			currentPath = evt.Data.Path.Text
			block = nil
		case "match", "context":
			block = append(block, blockLine{
				isMatch: evt.Type == "match",
				number:  evt.Data.LineNumber,
				text:    evt.Data.Lines.Text,
			})
		case "end":
			flush()
		}
	}

	return matches
}

// splitLines splits raw output into newline-delimited records.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
