package retrieval

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// identifierPattern matches identifier-like runs of at least five
// characters. Shorter identifiers are too ambiguous to search for.
var identifierPattern = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]{4,}\b`)

// minSegmentLen is the minimum length for a changed-file path segment to be
// treated as a broad token worth suppressing.
const minSegmentLen = 5

// TokenExtractor derives lexical search tokens from a unified diff.
type TokenExtractor struct {
	// StopWords are identifier candidates to drop. Defaults to
	// DefaultStopWords when nil.
	StopWords map[string]struct{}
}

// NewTokenExtractor returns an extractor with the default stop-word set.
func NewTokenExtractor() *TokenExtractor {
	return &TokenExtractor{StopWords: DefaultStopWords}
}

// Extract returns the sorted, deduplicated token set for a diff.
//
// Tokens come from three sources: path segments of diff headers,
// identifier-like runs on added/removed lines, and configured trigger words
// that occur anywhere in the diff. Path segments of the changed files
// themselves are then removed: a token equal to a package or module name
// matches every import in that package and produces only noise.
func (e *TokenExtractor) Extract(diff string, triggerWords, changedFiles []string) []string {
	stop := e.StopWords
	if stop == nil {
		stop = DefaultStopWords
	}

	tokens := make(map[string]struct{})
	broad := broadSegments(changedFiles)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "--- a/") || strings.HasPrefix(line, "+++ b/"):
			if idx := strings.Index(line, "/"); idx >= 0 {
				path := strings.TrimSpace(line[idx+1:])
				for _, seg := range strings.Split(path, "/") {
					if seg != "" {
						tokens[seg] = struct{}{}
					}
				}
			}

		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			// Header lines of other shapes contribute nothing.

		case strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-"):
			for _, word := range identifierPattern.FindAllString(line[1:], -1) {
				if _, isStop := stop[word]; isStop {
					continue
				}
				if isAllUpper(word) {
					// Constants and macros are too noisy to search.
					continue
				}
				tokens[word] = struct{}{}
			}
		}
	}

	diffLower := strings.ToLower(diff)
	for _, tw := range triggerWords {
		if strings.Contains(diffLower, strings.ToLower(tw)) {
			tokens[tw] = struct{}{}
		}
	}

	for seg := range broad {
		delete(tokens, seg)
	}

	result := make([]string, 0, len(tokens))
	for t := range tokens {
		result = append(result, t)
	}
	sort.Strings(result)
	return result
}

// broadSegments collects path segments of the changed files that would
// match too broadly: the segment itself, its hyphen-to-underscore variant,
// and its suffix after the first hyphen, each when at least minSegmentLen
// characters long. Known source extensions are stripped first.
func broadSegments(changedFiles []string) map[string]struct{} {
	segments := make(map[string]struct{})
	for _, cf := range changedFiles {
		for _, part := range strings.Split(cf, "/") {
			seg := part
			for _, ext := range []string{".py", ".yml", ".yaml"} {
				seg = strings.TrimSuffix(seg, ext)
			}
			if len(seg) >= minSegmentLen {
				segments[seg] = struct{}{}
			}
			if strings.Contains(seg, "-") {
				uscore := strings.ReplaceAll(seg, "-", "_")
				if len(uscore) >= minSegmentLen {
					segments[uscore] = struct{}{}
				}
				parts := strings.Split(seg, "-")
				if len(parts) > 1 {
					suffix := strings.Join(parts[1:], "_")
					if len(suffix) >= minSegmentLen {
						segments[suffix] = struct{}{}
					}
				}
			}
		}
	}
	return segments
}

// isAllUpper reports whether a word has at least one letter and no
// lowercase letters.
func isAllUpper(word string) bool {
	hasLetter := false
	for _, r := range word {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
