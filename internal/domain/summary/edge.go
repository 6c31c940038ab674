package summary

import "fmt"

// TypedEdge is an existing (from)-[predicate]->(to) relation in the graph store.
type TypedEdge struct {
	From      string
	Predicate string
	To        string
}

func (e TypedEdge) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", e.From, e.Predicate, e.To)
}

// Pair returns the unordered key for the edge's endpoints.
func (e TypedEdge) Pair() PairKey {
	return NewPairKey(e.From, e.To)
}

// SummaryEdge records the predicate chosen for a pair in the context of SummaryFor.
type SummaryEdge struct {
	TypedEdge
	SummaryFor string
}

// EntityPair is a directed probe (From, To) sent to the graph store.
type EntityPair struct {
	From string
	To   string
}

// PairKey identifies an unordered entity pair; Low <= High always holds.
type PairKey struct {
	Low  string
	High string
}

func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

func (k PairKey) String() string {
	return k.Low + "|" + k.High
}
