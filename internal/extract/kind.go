package extract

import (
	"path/filepath"
	"strings"
)

// FileKind classifies a file by the extraction strategy that applies to it.
type FileKind int

const (
	// KindOther covers files with no structural extractor; lexical match
	// windows are used as-is.
	KindOther FileKind = iota
	// KindPython marks files parsed with tree-sitter.
	KindPython
	// KindYAML marks files handled by indentation-block extraction.
	KindYAML
	// KindDockerfile marks files handled by instruction-block extraction.
	KindDockerfile
)

// String returns a human-readable name for the kind.
func (k FileKind) String() string {
	switch k {
	case KindPython:
		return "python"
	case KindYAML:
		return "yaml"
	case KindDockerfile:
		return "dockerfile"
	default:
		return "other"
	}
}

// Classify determines the FileKind for a repository-relative path.
// The decision is made once per file from extension and base name.
func Classify(path string) FileKind {
	base := filepath.Base(path)
	switch filepath.Ext(base) {
	case ".py":
		return KindPython
	case ".yml", ".yaml":
		return KindYAML
	}
	if strings.Contains(strings.ToLower(base), "dockerfile") {
		return KindDockerfile
	}
	return KindOther
}

// BlockExtractorFor returns the block extractor for a file kind, or nil when
// no structural extraction applies. Python is excluded here: definition
// extraction needs the token set and a parsed tree, not a target line, and
// goes through PythonDefinitions instead.
func BlockExtractorFor(kind FileKind, perFragmentBudget int) BlockExtractor {
	switch kind {
	case KindYAML:
		return &YAMLBlockExtractor{BudgetChars: perFragmentBudget}
	case KindDockerfile:
		return &DockerfileBlockExtractor{BudgetChars: perFragmentBudget}
	default:
		return nil
	}
}
