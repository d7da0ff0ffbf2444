package retrieval

import "testing"

func frag(path string, start, end, priority int) ContextFragment {
	return ContextFragment{
		FilePath:  path,
		LineStart: start,
		LineEnd:   end,
		Priority:  priority,
		Type:      TypeUsage,
	}
}

func TestDeduplicateContainment(t *testing.T) {
	in := []ContextFragment{
		frag("f.py", 10, 50, PriorityCrossModuleDefinition),
		frag("f.py", 20, 30, PriorityUsage),
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(out))
	}
	if out[0].LineStart != 10 || out[0].LineEnd != 50 {
		t.Errorf("wrong survivor: %+v", out[0])
	}
}

func TestDeduplicateOverlapRatio(t *testing.T) {
	// Overlap 5 lines, smaller range 10 lines, ratio 0.5.
	in := []ContextFragment{
		frag("f.py", 1, 10, PriorityCrossModuleDefinition),
		frag("f.py", 6, 16, PriorityUsage),
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(out))
	}
	if out[0].LineStart != 1 {
		t.Errorf("expected the earlier fragment to survive, got %+v", out[0])
	}
}

func TestDeduplicateLightOverlapKept(t *testing.T) {
	// Overlap 4 lines, smaller range 11 lines, ratio under 0.4. Starts
	// fall in different 20-line buckets.
	in := []ContextFragment{
		frag("f.py", 15, 25, PriorityUsage),
		frag("f.py", 22, 45, PriorityUsage),
	}
	out := Deduplicate(in)
	if len(out) != 2 {
		t.Fatalf("expected both fragments kept, got %d: %+v", len(out), out)
	}
}

func TestDeduplicateBucket(t *testing.T) {
	in := []ContextFragment{
		frag("f.py", 102, 104, PriorityUsage),
		frag("f.py", 107, 109, PriorityUsage),
	}
	out := Deduplicate(in)
	if len(out) != 1 {
		t.Fatalf("expected bucket collapse to 1, got %d", len(out))
	}
	if out[0].LineStart != 102 {
		t.Errorf("expected first-in-bucket survivor, got %+v", out[0])
	}
}

func TestDeduplicateDifferentFiles(t *testing.T) {
	in := []ContextFragment{
		frag("a.py", 1, 10, PriorityUsage),
		frag("b.py", 1, 10, PriorityUsage),
	}
	if out := Deduplicate(in); len(out) != 2 {
		t.Fatalf("fragments in different files must not collide, got %d", len(out))
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if out := Deduplicate(nil); len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}

func TestOverlapRatioDisjoint(t *testing.T) {
	a := frag("f.py", 1, 5, 50)
	b := frag("f.py", 10, 20, 50)
	if r := overlapRatio(a, b); r != 0 {
		t.Errorf("disjoint ranges should have ratio 0, got %f", r)
	}
}
