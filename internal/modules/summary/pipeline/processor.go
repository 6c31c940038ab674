package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/modules/summary/candidates"
	"github.com/yungbote/kgsummary/internal/modules/summary/disambiguate"
	"github.com/yungbote/kgsummary/internal/modules/summary/mentions"
	"github.com/yungbote/kgsummary/internal/modules/summary/writer"
	"github.com/yungbote/kgsummary/internal/observability"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type Outcome string

const (
	OutcomeAlreadySummarized Outcome = "already_summarized"
	OutcomeNoContent         Outcome = "no_content"
	OutcomeUnmapped          Outcome = "unmapped"
	OutcomeNoCandidates      Outcome = "no_candidates"
	OutcomeWritten           Outcome = "written"
	OutcomeErrored           Outcome = "errored"
)

// TerminalState is the queue state a document lands in after this outcome.
func (o Outcome) TerminalState() types.DocumentState {
	switch o {
	case OutcomeAlreadySummarized, OutcomeNoCandidates, OutcomeWritten:
		return types.StateProcessed
	default:
		return types.StateFailed
	}
}

type Result struct {
	Outcome  Outcome
	EntityID string
	Groups   int
	Created  int
	// Reason explains a failed terminal state.
	Reason string
}

// GraphSession is the per-document view of the graph store. *graph.Session satisfies it.
type GraphSession interface {
	candidates.PairFinder
	writer.SummaryMerger
	SummaryEdges(ctx context.Context, entityID string) ([]types.SummaryEdge, error)
	Close(ctx context.Context) error
}

type Sessions interface {
	Session(ctx context.Context) GraphSession
}

// SessionsFunc adapts a function to Sessions.
type SessionsFunc func(ctx context.Context) GraphSession

func (f SessionsFunc) Session(ctx context.Context) GraphSession { return f(ctx) }

type Resolver interface {
	Resolve(ctx context.Context, identifier string) (types.IdentifierMapping, bool, error)
	BulkResolve(ctx context.Context, titles mapset.Set[string]) (map[string]types.IdentifierMapping, error)
}

type ContentSource interface {
	Content(dbc dbctx.Context, id int64) (string, bool, error)
}

type ProcessorDeps struct {
	Log           *logger.Logger
	Documents     ContentSource
	Resolver      Resolver
	Sessions      Sessions
	Extractor     *mentions.Extractor
	Builder       *candidates.Builder
	Disambiguator *disambiguate.Disambiguator
	Writer        *writer.Writer
}

// Processor runs one claimed document from lookup to write-back. It never changes the
// document's queue state; the caller applies Result.Outcome.TerminalState.
type Processor struct {
	log  *logger.Logger
	deps ProcessorDeps
}

func NewProcessor(deps ProcessorDeps) (*Processor, error) {
	if deps.Documents == nil || deps.Resolver == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("processor: documents, resolver and sessions required")
	}
	if deps.Extractor == nil || deps.Builder == nil || deps.Disambiguator == nil || deps.Writer == nil {
		return nil, fmt.Errorf("processor: extractor, builder, disambiguator and writer required")
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Processor{log: log.With("component", "SummaryProcessor"), deps: deps}, nil
}

func (p *Processor) Process(ctx context.Context, doc types.DocumentRef) (res Result, err error) {
	ctx, span := observability.Tracer().Start(ctx, "summary.process_document")
	start := time.Now()
	defer func() {
		span.SetAttributes(
			attribute.String("outcome", string(res.Outcome)),
			attribute.Int("edges_created", res.Created),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.Int64("document_id", doc.ID),
		attribute.String("title", doc.Title),
	)

	mapping, found, err := p.deps.Resolver.Resolve(ctx, strconv.FormatInt(doc.ID, 10))
	if err != nil {
		return Result{Outcome: OutcomeErrored}, fmt.Errorf("resolve document %d: %w", doc.ID, err)
	}
	if !found {
		return Result{Outcome: OutcomeUnmapped, Reason: "no identifier mapping"}, nil
	}
	res.EntityID = mapping.EntityID
	span.SetAttributes(attribute.String("entity_id", mapping.EntityID))

	session := p.deps.Sessions.Session(ctx)
	defer func() {
		if cerr := session.Close(context.WithoutCancel(ctx)); cerr != nil {
			p.log.Warn("graph session close failed", "document_id", doc.ID, "error", cerr)
		}
	}()

	existing, err := session.SummaryEdges(ctx, mapping.EntityID)
	if err != nil {
		return Result{Outcome: OutcomeErrored, EntityID: mapping.EntityID}, err
	}
	if len(existing) > 0 {
		return Result{Outcome: OutcomeAlreadySummarized, EntityID: mapping.EntityID}, nil
	}

	content, found, err := p.deps.Documents.Content(dbctx.Context{Ctx: ctx}, doc.ID)
	if err != nil {
		return Result{Outcome: OutcomeErrored, EntityID: mapping.EntityID}, fmt.Errorf("load content %d: %w", doc.ID, err)
	}
	if !found || strings.TrimSpace(content) == "" {
		return Result{Outcome: OutcomeNoContent, EntityID: mapping.EntityID, Reason: "empty document content"}, nil
	}

	abstract, titles := p.deps.Extractor.Extract(content)
	groups, ok, err := p.deps.Builder.Build(ctx, session, mapping, titles)
	if err != nil {
		return Result{Outcome: OutcomeErrored, EntityID: mapping.EntityID}, err
	}
	if !ok || len(groups) == 0 {
		return Result{Outcome: OutcomeNoCandidates, EntityID: mapping.EntityID}, nil
	}

	scope := p.deps.Disambiguator.ForDocument(mapping.EntityID, func() string {
		return mentions.PlainText(abstract)
	})
	chosen := make([]types.TypedEdge, 0, len(groups))
	for _, key := range groups.Keys() {
		edge, err := scope.Choose(ctx, groups[key])
		if err != nil {
			return Result{Outcome: OutcomeErrored, EntityID: mapping.EntityID, Groups: len(groups)},
				fmt.Errorf("disambiguate %s: %w", key, err)
		}
		chosen = append(chosen, edge)
	}

	created, err := p.deps.Writer.UpsertAll(ctx, session, mapping.EntityID, chosen)
	if err != nil {
		return Result{Outcome: OutcomeErrored, EntityID: mapping.EntityID, Groups: len(groups)}, err
	}

	p.log.Debug("document summarized",
		"document_id", doc.ID,
		"entity_id", mapping.EntityID,
		"mentions", titles.Cardinality(),
		"groups", len(groups),
		"created", created,
		"duration", time.Since(start),
	)
	return Result{
		Outcome:  OutcomeWritten,
		EntityID: mapping.EntityID,
		Groups:   len(groups),
		Created:  created,
	}, nil
}
