package extract

import (
	"regexp"
	"strings"
)

// dockerfileInstruction matches a Dockerfile instruction keyword anchored at
// the start of a (trimmed) line.
var dockerfileInstruction = regexp.MustCompile(
	`(?i)^(FROM|RUN|COPY|ADD|CMD|ENTRYPOINT|ENV|EXPOSE|VOLUME|` +
		`WORKDIR|USER|ARG|ONBUILD|LABEL|STOPSIGNAL|HEALTHCHECK|SHELL)\b`)

// DockerfileBlockExtractor recovers the instruction block containing a
// matched line: from the nearest instruction keyword above the target down
// to the next instruction or end of file.
type DockerfileBlockExtractor struct {
	// BudgetChars bounds the extracted block; larger blocks fall back to a
	// fixed window around the target line.
	BudgetChars int
}

// Extract implements BlockExtractor. target is 1-indexed.
func (e *DockerfileBlockExtractor) Extract(lines []string, target int) (Block, bool) {
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

	start := idx
	for i := idx; i >= 0; i-- {
		if dockerfileInstruction.MatchString(strings.TrimSpace(lines[i])) {
			start = i
			break
		}
	}

	end := len(lines)
	for i := idx + 1; i < len(lines); i++ {
		if dockerfileInstruction.MatchString(strings.TrimSpace(lines[i])) {
			end = i
			break
		}
	}

	text := strings.Join(lines[start:end], "\n")
	if e.BudgetChars > 0 && len(text) > e.BudgetChars {
		return fallbackWindow(lines, idx+1), true
	}

	return Block{Text: text, StartLine: start + 1, EndLine: end}, true
}
