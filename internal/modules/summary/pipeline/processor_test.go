package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/modules/summary/candidates"
	"github.com/yungbote/kgsummary/internal/modules/summary/disambiguate"
	"github.com/yungbote/kgsummary/internal/modules/summary/mentions"
	"github.com/yungbote/kgsummary/internal/modules/summary/writer"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

const adaContent = `'''Ada Lovelace''' was an English mathematician known for her work with [[Charles Babbage]] on the Analytical Engine. [[Category:English mathematicians]]

== Early life ==
Her father was [[Lord Byron]].
`

type fixture struct {
	graph *memoryGraph
	docs  *memoryDocuments
	emb   *keywordEmbedder
	proc  *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	resolver := mapResolver{
		"Ada_Lovelace":    {DocumentID: 42, Title: "Ada_Lovelace", EntityID: "Q7259"},
		"Charles_Babbage": {DocumentID: 43, Title: "Charles_Babbage", EntityID: "Q9640"},
		"Lord_Byron":      {DocumentID: 44, Title: "Lord_Byron", EntityID: "Q5679"},
		"Orphan_Page":     {DocumentID: 45, Title: "Orphan_Page", EntityID: "Q45"},
	}
	f := &fixture{
		graph: &memoryGraph{typed: []types.TypedEdge{
			{From: "Q9640", Predicate: "P737", To: "Q7259"},
			{From: "Q7259", Predicate: "P1327", To: "Q9640"},
			{From: "Q5679", Predicate: "P40", To: "Q7259"},
		}},
		docs: &memoryDocuments{contents: map[int64]string{
			42: adaContent,
			43: "",
			45: "A page with no links at all.",
		}},
		emb: &keywordEmbedder{},
	}
	dis, err := disambiguate.New(log, predicateTable{
		"P737":  {ID: "P737", Label: "influenced by", Description: "this person is influenced by"},
		"P1327": {ID: "P1327", Label: "partner in business", Description: "professional collaborator"},
	}, f.emb, disambiguate.Options{Seed: 1})
	require.NoError(t, err)
	f.proc, err = NewProcessor(ProcessorDeps{
		Log:           log,
		Documents:     f.docs,
		Resolver:      resolver,
		Sessions:      f.graph,
		Extractor:     mentions.New(),
		Builder:       candidates.New(log, resolver),
		Disambiguator: dis,
		Writer:        writer.New(log, nil),
	})
	require.NoError(t, err)
	return f
}

func TestProcessWritesChosenEdge(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Process(context.Background(), types.DocumentRef{ID: 42, Title: "Ada_Lovelace"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeWritten, res.Outcome)
	assert.Equal(t, types.StateProcessed, res.Outcome.TerminalState())
	assert.Equal(t, "Q7259", res.EntityID)
	assert.Equal(t, 1, res.Groups)
	assert.Equal(t, 1, res.Created)
	require.Len(t, f.graph.summary, 1)
	assert.Equal(t, types.SummaryEdge{
		TypedEdge:  types.TypedEdge{From: "Q9640", Predicate: "P737", To: "Q7259"},
		SummaryFor: "Q7259",
	}, f.graph.summary[0])
	assert.Equal(t, f.graph.opened, f.graph.closed)
}

func TestProcessAlreadySummarizedSkipsExtraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := types.DocumentRef{ID: 42, Title: "Ada_Lovelace"}

	_, err := f.proc.Process(ctx, doc)
	require.NoError(t, err)
	reads, probes, embeds := f.docs.reads, f.graph.probes, f.emb.calls
	before := append([]types.SummaryEdge(nil), f.graph.summary...)

	res, err := f.proc.Process(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySummarized, res.Outcome)
	assert.Equal(t, types.StateProcessed, res.Outcome.TerminalState())
	assert.Equal(t, reads, f.docs.reads)
	assert.Equal(t, probes, f.graph.probes)
	assert.Equal(t, embeds, f.emb.calls)
	assert.Equal(t, before, f.graph.summary)
	assert.Equal(t, 2, f.graph.closed)
}

func TestProcessEmptyContentFails(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Process(context.Background(), types.DocumentRef{ID: 43, Title: "Charles_Babbage"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoContent, res.Outcome)
	assert.Equal(t, types.StateFailed, res.Outcome.TerminalState())
	assert.NotEmpty(t, res.Reason)
	assert.Empty(t, f.graph.summary)
}

func TestProcessUnmappedFails(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Process(context.Background(), types.DocumentRef{ID: 999, Title: "Nowhere"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmapped, res.Outcome)
	assert.Equal(t, types.StateFailed, res.Outcome.TerminalState())
	assert.Zero(t, f.graph.opened)
}

func TestProcessNoCandidates(t *testing.T) {
	f := newFixture(t)
	res, err := f.proc.Process(context.Background(), types.DocumentRef{ID: 45, Title: "Orphan_Page"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoCandidates, res.Outcome)
	assert.Equal(t, types.StateProcessed, res.Outcome.TerminalState())
	assert.Zero(t, f.graph.probes)
	assert.Equal(t, 1, f.graph.closed)
}

func TestProcessEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.emb.fail = true
	res, err := f.proc.Process(context.Background(), types.DocumentRef{ID: 42, Title: "Ada_Lovelace"})
	require.Error(t, err)
	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Equal(t, types.StateFailed, res.Outcome.TerminalState())
	assert.Empty(t, f.graph.summary)
	assert.Equal(t, f.graph.opened, f.graph.closed)
}
