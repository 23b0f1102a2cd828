package value

import "testing"

func sampleTree() Value {
	return Map(
		Entry{Key: "query", Value: String("DROP TABLE users")},
		Entry{Key: "body", Value: Map(
			Entry{Key: "subject", Value: String("hi")},
			Entry{Key: "recipients", Value: Seq(String("a@b.c"), String("d@e.f"))},
		)},
		Entry{Key: "estimated_cost", Value: Number(12.5)},
		Entry{Key: "confirmed", Value: Bool(true)},
	)
}

func TestWalkVisitsAllScalarsInOrder(t *testing.T) {
	root := sampleTree()
	leaves := Collect(root, "")
	want := []string{"query", "body.subject", "body.recipients[0]", "body.recipients[1]", "estimated_cost", "confirmed"}
	if len(leaves) != len(want) {
		t.Fatalf("got %d leaves, want %d: %+v", len(leaves), len(want), leaves)
	}
	for i, w := range want {
		if leaves[i].Path != w {
			t.Errorf("leaf %d: got path %q, want %q", i, leaves[i].Path, w)
		}
	}
}

func TestWalkSelectorExactSegment(t *testing.T) {
	root := sampleTree()
	leaves := Collect(root, "body.subject")
	if len(leaves) != 1 || leaves[0].Value.CanonicalString() != "hi" {
		t.Fatalf("got %+v", leaves)
	}
}

func TestWalkSelectorWildcardSegment(t *testing.T) {
	root := sampleTree()
	leaves := Collect(root, "body.*")
	if len(leaves) != 3 {
		t.Fatalf("wildcard should match every scalar one level under body (subject, recipients[0], recipients[1]), got %+v", leaves)
	}
}

func TestWalkSelectorMatchesSequenceElementsByKey(t *testing.T) {
	root := sampleTree()
	leaves := Collect(root, "body.recipients")
	if len(leaves) != 2 {
		t.Fatalf("a selector naming a sequence field should match every element's scalar, got %+v", leaves)
	}
}

func TestWalkNeverMutatesInput(t *testing.T) {
	root := sampleTree()
	before := Collect(root, "")
	_ = Collect(root, "query")
	after := Collect(root, "")
	if len(before) != len(after) {
		t.Fatalf("probing mutated the tree: before=%d after=%d", len(before), len(after))
	}
}

func TestCanonicalStringFormatting(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Number(12.50), "12.5"},
		{Number(3), "3"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{String("x"), "x"},
		{Null(), ""},
	}
	for _, c := range cases {
		if got := c.v.CanonicalString(); got != c.want {
			t.Errorf("CanonicalString(%+v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestFirstStopsEarly(t *testing.T) {
	root := sampleTree()
	visited := 0
	Walk(root, "", func(Leaf) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Fatalf("Walk should stop after the first visit returns false, visited=%d", visited)
	}
}

func TestWithScalarAtRedactsOnlyTargetPath(t *testing.T) {
	root := sampleTree()
	redacted := WithScalarAt(root, "body.subject", "<redacted:email>")
	leaf, ok := First(redacted, "body.subject")
	if !ok || leaf.Value.CanonicalString() != "<redacted:email>" {
		t.Fatalf("expected redaction at body.subject, got %+v ok=%v", leaf, ok)
	}
	original, ok := First(root, "body.subject")
	if !ok || original.Value.CanonicalString() != "hi" {
		t.Fatalf("WithScalarAt must not mutate the input, original=%+v", original)
	}
}
