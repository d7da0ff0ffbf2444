// Package review defines the structured output of one review run.
package review

// Risk is a non-blocking concern worth the author's attention.
type Risk struct {
	Severity string `json:"severity"` // "major" or "minor"
	Title    string `json:"title"`
	Details  string `json:"details"`
}

// Blocker is an issue that must be resolved before merging.
type Blocker struct {
	Severity     string `json:"severity"`
	File         string `json:"file"`
	Lines        string `json:"lines"`
	Title        string `json:"title"`
	Comment      string `json:"comment"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
	Verification string `json:"verification,omitempty"`
}

// Question is an open question to the merge-request author.
type Question struct {
	File         string `json:"file,omitempty"`
	Lines        string `json:"lines,omitempty"`
	Question     string `json:"question"`
	WhyItMatters string `json:"why_it_matters"`
}

// Result is the model's parsed review.
type Result struct {
	Summary           []string   `json:"summary"`
	KeyRisks          []Risk     `json:"key_risks"`
	Blockers          []Blocker  `json:"blockers"`
	QuestionsToAuthor []Question `json:"questions_to_author"`
}

// CapBlockers truncates the blocker list to at most max entries. max <= 0
// leaves the list alone.
func (r *Result) CapBlockers(max int) {
	if max > 0 && len(r.Blockers) > max {
		r.Blockers = r.Blockers[:max]
	}
}

// RedactionStats counts what the redaction layer removed.
type RedactionStats struct {
	SecretsReplaced int
	URLsReplaced    int
	FilesExcluded   int
}

// PipelineStats accumulates observability counters across one run.
type PipelineStats struct {
	DiffLines         int
	ContextFragments  int
	ContextFiles      int
	PromptChars       int
	PromptTokens      int
	CompletionTokens  int
	Redaction         RedactionStats
	SummaryOnlyMode   bool
	FragmentsDropped  int
	RetrievalDegraded bool
}
