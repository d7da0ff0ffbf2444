package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mrlead/mrlead/internal/parser"
)

// maxClassLines is the size above which a matched class is trimmed to its
// header, constructor, and token-matched methods instead of being included
// whole.
const maxClassLines = 150

// baseModelName is the marker base class that tags a class as a data model.
// The check is a shallow inspection of the immediate base-class expressions,
// not type resolution: subclasses inheriting the marker indirectly are missed.
const baseModelName = "BaseModel"

// PythonDefinition is a function or class definition extracted from a
// Python source file. Line numbers are 1-indexed and inclusive.
type PythonDefinition struct {
	Name      string
	Text      string
	StartLine int
	EndLine   int
	IsClass   bool
	// IsModel reports that the class inherits the data-model marker type.
	IsModel bool
}

// PythonExtractor extracts token-matched definitions from Python sources.
// The underlying tree-sitter parser is reused across files; the extractor
// is not safe for concurrent use.
type PythonExtractor struct {
	parser *parser.Parser
	logger *slog.Logger
}

// NewPythonExtractor creates an extractor backed by a Python parser.
func NewPythonExtractor(logger *slog.Logger) (*PythonExtractor, error) {
	p, err := parser.NewParser(parser.Python)
	if err != nil {
		return nil, err
	}
	return &PythonExtractor{parser: p, logger: logger}, nil
}

// Close releases parser resources.
func (e *PythonExtractor) Close() {
	if e.parser != nil {
		e.parser.Close()
	}
}

// Definitions returns every function and class definition in source whose
// name is a member of tokens. Malformed source yields no definitions.
func (e *PythonExtractor) Definitions(path string, source []byte, tokens map[string]struct{}) []PythonDefinition {
	result, err := e.parser.Parse(source)
	if err != nil {
		e.logger.Debug("python parse failed", "file", path, "error", err)
		return nil
	}
	defer result.Close()
	return e.definitions(result, path, tokens)
}

// DefinitionsFromFile is Definitions reading the source from disk.
// Unreadable files yield no definitions.
func (e *PythonExtractor) DefinitionsFromFile(path string, tokens map[string]struct{}) []PythonDefinition {
	result, err := e.parser.ParseFile(path)
	if err != nil {
		var readErr *parser.FileReadError
		if errors.As(err, &readErr) {
			e.logger.Debug("unreadable python file", "file", path, "error", readErr)
		} else {
			e.logger.Debug("python parse failed", "file", path, "error", err)
		}
		return nil
	}
	defer result.Close()
	return e.definitions(result, path, tokens)
}

func (e *PythonExtractor) definitions(result *parser.ParseResult, path string, tokens map[string]struct{}) []PythonDefinition {
	if result.HasErrors() {
		e.logger.Debug("skipping malformed python source", "file", path)
		return nil
	}

	lines := strings.Split(string(result.Source), "\n")
	var defs []PythonDefinition

	for _, node := range result.FindNodesByType("class_definition") {
		name := result.NodeText(node.ChildByFieldName("name"))
		if _, ok := tokens[name]; !ok {
			continue
		}
		start, end := lineRange(node)

		var text string
		if end-start+1 > maxClassLines {
			text = e.trimLargeClass(result, node, lines, tokens)
		} else {
			text = sliceLines(lines, start, end)
		}

		defs = append(defs, PythonDefinition{
			Name:      name,
			Text:      text,
			StartLine: start,
			EndLine:   end,
			IsClass:   true,
			IsModel:   isModelClass(result, node),
		})
	}

	for _, node := range result.FindNodesByType("function_definition") {
		// Methods are covered by class extraction.
		if insideClass(node) {
			continue
		}
		name := result.NodeText(node.ChildByFieldName("name"))
		if _, ok := tokens[name]; !ok {
			continue
		}
		start, end := lineRange(node)
		defs = append(defs, PythonDefinition{
			Name:      name,
			Text:      sliceLines(lines, start, end),
			StartLine: start,
			EndLine:   end,
		})
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].StartLine < defs[j].StartLine })
	return defs
}

// trimLargeClass reduces an oversized class to its header (signature plus
// class-level statements preceding the first method), its constructor, and
// methods whose names are matched tokens. All other methods collapse into a
// single comment listing their names.
func (e *PythonExtractor) trimLargeClass(result *parser.ParseResult, classNode *sitter.Node, lines []string, tokens map[string]struct{}) string {
	classStart, classEnd := lineRange(classNode)
	methods := classMethods(classNode)

	firstMethodLine := classEnd + 1
	for _, m := range methods {
		start, _ := lineRange(m.outer)
		if start < firstMethodLine {
			firstMethodLine = start
		}
	}

	parts := []string{sliceLines(lines, classStart, firstMethodLine-1)}
	var omitted []string

	for _, m := range methods {
		name := result.NodeText(m.def.ChildByFieldName("name"))
		_, matched := tokens[name]
		if name == "__init__" || matched {
			start, end := lineRange(m.outer)
			parts = append(parts, sliceLines(lines, start, end))
		} else {
			omitted = append(omitted, name)
		}
	}

	if len(omitted) > 0 {
		parts = append(parts, fmt.Sprintf("    # ... (%d methods omitted: %s)",
			len(omitted), strings.Join(omitted, ", ")))
	}

	return strings.Join(parts, "\n\n")
}

// method pairs a function_definition with its outermost node, which is the
// enclosing decorated_definition when the method carries decorators.
type method struct {
	def   *sitter.Node
	outer *sitter.Node
}

// classMethods returns the direct methods of a class in source order.
func classMethods(classNode *sitter.Node) []method {
	block := childByType(classNode, "block")
	if block == nil {
		return nil
	}

	var methods []method
	for i := uint32(0); i < block.ChildCount(); i++ {
		child := block.Child(int(i))
		switch child.Type() {
		case "function_definition":
			methods = append(methods, method{def: child, outer: child})
		case "decorated_definition":
			if def := childByType(child, "function_definition"); def != nil {
				methods = append(methods, method{def: def, outer: child})
			}
		}
	}
	return methods
}

// isModelClass reports whether a class lists the data-model marker type
// among its immediate base-class expressions. Plain names and dotted
// attributes (pydantic.BaseModel) both count.
func isModelClass(result *parser.ParseResult, classNode *sitter.Node) bool {
	bases := classNode.ChildByFieldName("superclasses")
	if bases == nil {
		bases = childByType(classNode, "argument_list")
	}
	if bases == nil {
		return false
	}

	for i := uint32(0); i < bases.ChildCount(); i++ {
		base := bases.Child(int(i))
		switch base.Type() {
		case "identifier":
			if result.NodeText(base) == baseModelName {
				return true
			}
		case "attribute":
			if attr := base.ChildByFieldName("attribute"); attr != nil {
				if result.NodeText(attr) == baseModelName {
					return true
				}
			}
		}
	}
	return false
}

// insideClass reports whether a node is nested inside a class definition.
func insideClass(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "class_definition" {
			return true
		}
	}
	return false
}

// childByType finds the first direct child node of the given type.
func childByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// lineRange returns 1-based inclusive line numbers for a node.
func lineRange(node *sitter.Node) (int, int) {
	return int(node.StartPoint().Row) + 1, int(node.EndPoint().Row) + 1
}

// sliceLines joins full source lines start..end (1-indexed, inclusive).
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
