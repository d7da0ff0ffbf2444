package retrieval

// lineRange is a closed interval of 1-indexed lines.
type lineRange struct {
	start int
	end   int
}

// CoverageIndex tracks which line ranges of which files already have a
// fragment, and which (file, token) pairs were satisfied structurally.
// Lexical matches falling entirely inside a registered range are discarded.
type CoverageIndex struct {
	ranges map[string][]lineRange
	pairs  map[string]struct{}
}

// NewCoverageIndex returns an empty index.
func NewCoverageIndex() *CoverageIndex {
	return &CoverageIndex{
		ranges: make(map[string][]lineRange),
		pairs:  make(map[string]struct{}),
	}
}

// Register records a fragment's line range for its file.
func (c *CoverageIndex) Register(path string, start, end int) {
	c.ranges[path] = append(c.ranges[path], lineRange{start: start, end: end})
}

// Covered reports whether [start, end] lies entirely within an already
// registered range for path.
func (c *CoverageIndex) Covered(path string, start, end int) bool {
	for _, r := range c.ranges[path] {
		if start >= r.start && end <= r.end {
			return true
		}
	}
	return false
}

// MarkPair records that a (file, token) pair was handled by structural
// extraction so the lexical pass can skip it.
func (c *CoverageIndex) MarkPair(path, token string) {
	c.pairs[path+"\x00"+token] = struct{}{}
}

// HasPair reports whether MarkPair was called for (path, token).
func (c *CoverageIndex) HasPair(path, token string) bool {
	_, ok := c.pairs[path+"\x00"+token]
	return ok
}
