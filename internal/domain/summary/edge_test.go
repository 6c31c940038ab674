package summary

import "testing"

func TestPairKeyIsOrderIndependent(t *testing.T) {
	a := NewPairKey("Q9640", "Q7259")
	b := NewPairKey("Q7259", "Q9640")
	if a != b {
		t.Fatalf("pair keys differ: %v vs %v", a, b)
	}
	if a.Low != "Q7259" || a.High != "Q9640" {
		t.Fatalf("unexpected ordering: %+v", a)
	}
}

func TestPairKeyNoSeparatorCollision(t *testing.T) {
	// "A_B"+"C" and "A"+"B_C" collide under a "_"-joined string key.
	if NewPairKey("A_B", "C") == NewPairKey("A", "B_C") {
		t.Fatalf("structural keys must not collide")
	}
}

func TestEdgePairAndPredicateText(t *testing.T) {
	e := TypedEdge{From: "Q9640", Predicate: "P737", To: "Q7259"}
	if e.Pair() != NewPairKey("Q7259", "Q9640") {
		t.Fatalf("edge pair mismatch: %v", e.Pair())
	}
	p := Predicate{ID: "P737", Label: "influenced by", Description: "this person is influenced by"}
	if got := p.Text(); got != "influenced by, this person is influenced by" {
		t.Fatalf("predicate text: %q", got)
	}
}
