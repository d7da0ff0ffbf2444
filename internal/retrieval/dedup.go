package retrieval

// overlapThreshold is the intersection-over-smaller-range ratio above
// which two fragments in the same file are considered duplicates. Tunable.
const overlapThreshold = 0.4

// bucketLines is the coarse-collapse window size for the second dedup
// pass. Fragments starting within the same bucketLines-line stripe of a
// file collapse to the first one seen. Tunable.
const bucketLines = 20

// Deduplicate removes redundant fragments from a list already sorted by
// (priority, file, line start). Survivors keep their relative order.
//
// The first pass drops any fragment whose range is contained in, or
// overlaps heavily with, an earlier-accepted fragment in the same file.
// Because the input is priority-sorted, this favors structural definitions
// over raw usage windows covering the same code. The second pass collapses
// fragments whose start lines fall in the same 20-line stripe of a file.
func Deduplicate(fragments []ContextFragment) []ContextFragment {
	accepted := make([]ContextFragment, 0, len(fragments))
	for _, cand := range fragments {
		if redundant(cand, accepted) {
			continue
		}
		accepted = append(accepted, cand)
	}

	seen := make(map[bucketKey]struct{}, len(accepted))
	result := make([]ContextFragment, 0, len(accepted))
	for _, f := range accepted {
		key := bucketKey{path: f.FilePath, bucket: f.LineStart / bucketLines}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, f)
	}
	return result
}

type bucketKey struct {
	path   string
	bucket int
}

func redundant(cand ContextFragment, accepted []ContextFragment) bool {
	for _, a := range accepted {
		if a.FilePath != cand.FilePath {
			continue
		}
		if cand.LineStart >= a.LineStart && cand.LineEnd <= a.LineEnd {
			return true
		}
		if overlapRatio(a, cand) >= overlapThreshold {
			return true
		}
	}
	return false
}

// overlapRatio is the length of the intersection divided by the length of
// the smaller range, both counted inclusively. Disjoint ranges yield 0.
func overlapRatio(a, b ContextFragment) float64 {
	lo := a.LineStart
	if b.LineStart > lo {
		lo = b.LineStart
	}
	hi := a.LineEnd
	if b.LineEnd < hi {
		hi = b.LineEnd
	}
	if hi < lo {
		return 0
	}
	overlap := hi - lo + 1

	lenA := a.LineEnd - a.LineStart + 1
	lenB := b.LineEnd - b.LineStart + 1
	smaller := lenA
	if lenB < smaller {
		smaller = lenB
	}
	if smaller <= 0 {
		return 0
	}
	return float64(overlap) / float64(smaller)
}
