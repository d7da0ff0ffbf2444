// Package retrieval turns a merge-request diff and a repository checkout
// into a ranked, deduplicated set of context fragments. Structural
// extraction runs first, lexical search fills the gaps, and the result is
// ordered by priority for the prompt budgeter to consume.
package retrieval

import "strings"

// FragmentType classifies how a fragment was recovered and how much weight
// it carries during ranking.
type FragmentType string

const (
	// TypeDefinition is a full function or class body found structurally.
	TypeDefinition FragmentType = "definition"
	// TypePydanticModel is a data-model class; the shallow base-class
	// heuristic in the extract package decides membership.
	TypePydanticModel FragmentType = "pydantic_model"
	// TypeUsage is a lexical match with surrounding context lines.
	TypeUsage FragmentType = "usage"
)

// Fragment priorities; lower sorts first.
const (
	PrioritySameModuleDefinition  = 10
	PriorityCrossModuleDefinition = 20
	PriorityDataModel             = 30
	PriorityUsage                 = 50
)

// truncationMarker is appended to excerpts cut at the fragment line limit.
const truncationMarker = "    # ... (truncated)"

// ContextFragment is a labeled excerpt of repository source offered as
// model context. Line numbers are 1-indexed and inclusive.
type ContextFragment struct {
	FilePath    string
	LineStart   int
	LineEnd     int
	CodeExcerpt string
	TokenMatch  string
	Type        FragmentType
	Priority    int
}

// truncateExcerpt bounds an excerpt to maxLines source lines, appending the
// truncation marker when anything was cut. maxLines <= 0 disables the limit.
func truncateExcerpt(excerpt string, maxLines int) string {
	if maxLines <= 0 {
		return excerpt
	}
	lines := strings.Split(excerpt, "\n")
	if len(lines) <= maxLines {
		return excerpt
	}
	return strings.Join(lines[:maxLines], "\n") + "\n" + truncationMarker
}

// definitionPriority returns the priority for a structural definition in
// the given file. Files that are themselves part of the diff rank highest.
func definitionPriority(path string, changed map[string]struct{}) int {
	if _, ok := changed[path]; ok {
		return PrioritySameModuleDefinition
	}
	return PriorityCrossModuleDefinition
}
