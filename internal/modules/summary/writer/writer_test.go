package writer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// memoryMerger applies the same guard as the Cypher merge: one summary edge per
// unordered pair and summary_for.
type memoryMerger struct {
	mu    sync.Mutex
	edges map[string]types.SummaryEdge
	txns  int
}

func newMemoryMerger() *memoryMerger {
	return &memoryMerger{edges: map[string]types.SummaryEdge{}}
}

func (m *memoryMerger) MergeSummaryEdges(_ context.Context, summaryFor string, edges []types.TypedEdge) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txns++
	created := 0
	for _, e := range edges {
		key := e.Pair().String() + "|" + summaryFor
		if _, ok := m.edges[key]; ok {
			continue
		}
		m.edges[key] = types.SummaryEdge{TypedEdge: e, SummaryFor: summaryFor}
		created++
	}
	return created, nil
}

type edgeCounter struct{ n int }

func (c *edgeCounter) AddEdgesCreated(n int) { c.n += n }

func TestUpsertIsIdempotent(t *testing.T) {
	m := newMemoryMerger()
	w := New(logger.Nop(), nil)
	edge := types.TypedEdge{From: "Q9640", Predicate: "P737", To: "Q7259"}

	created, err := w.Upsert(context.Background(), m, "Q7259", edge)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = w.Upsert(context.Background(), m, "Q7259", edge)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, m.edges, 1)
}

func TestUpsertFirstPredicateWinsEitherDirection(t *testing.T) {
	m := newMemoryMerger()
	w := New(logger.Nop(), nil)
	ctx := context.Background()

	_, err := w.Upsert(ctx, m, "Q7259", types.TypedEdge{From: "Q9640", Predicate: "P737", To: "Q7259"})
	require.NoError(t, err)
	created, err := w.Upsert(ctx, m, "Q7259", types.TypedEdge{From: "Q7259", Predicate: "P1327", To: "Q9640"})
	require.NoError(t, err)
	assert.False(t, created)

	// A different document may summarize the same pair.
	created, err = w.Upsert(ctx, m, "Q9640", types.TypedEdge{From: "Q7259", Predicate: "P1327", To: "Q9640"})
	require.NoError(t, err)
	assert.True(t, created)

	got := m.edges[types.NewPairKey("Q7259", "Q9640").String()+"|Q7259"]
	assert.Equal(t, "P737", got.Predicate)
}

func TestUpsertAllSingleTransaction(t *testing.T) {
	m := newMemoryMerger()
	counter := &edgeCounter{}
	w := New(logger.Nop(), counter)

	n, err := w.UpsertAll(context.Background(), m, "Q7259", []types.TypedEdge{
		{From: "Q9640", Predicate: "P737", To: "Q7259"},
		{From: "Q7259", Predicate: "P1327", To: "Q9640"},
		{From: "Q7259", Predicate: "P22", To: "Q5679"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.txns)
	assert.Equal(t, 2, counter.n)

	n, err = w.UpsertAll(context.Background(), m, "Q7259", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, m.txns)
}

func TestUpsertRejectsIncompleteEdges(t *testing.T) {
	w := New(logger.Nop(), nil)
	_, err := w.Upsert(context.Background(), newMemoryMerger(), "Q7259", types.TypedEdge{From: "Q1", To: "Q2"})
	assert.Error(t, err)
	_, err = w.Upsert(context.Background(), newMemoryMerger(), "", types.TypedEdge{From: "Q1", Predicate: "P1", To: "Q2"})
	assert.Error(t, err)
}
