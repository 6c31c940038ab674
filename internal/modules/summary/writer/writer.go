package writer

import (
	"context"
	"fmt"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	kgerrors "github.com/yungbote/kgsummary/internal/pkg/errors"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// SummaryMerger writes summary edges in one transaction and reports how many were new.
// *graph.Session satisfies it.
type SummaryMerger interface {
	MergeSummaryEdges(ctx context.Context, summaryFor string, edges []types.TypedEdge) (int, error)
}

type EdgeObserver interface {
	AddEdgesCreated(n int)
}

// Writer records chosen edges as summary edges. A pair that already has a summary edge
// for the same document, in either direction, is left untouched, so rewrites are no-ops.
// Marking the document processed is the caller's job.
type Writer struct {
	log      *logger.Logger
	observer EdgeObserver
}

func New(log *logger.Logger, observer EdgeObserver) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{log: log.With("component", "GraphWriter"), observer: observer}
}

func (w *Writer) Upsert(ctx context.Context, m SummaryMerger, summaryFor string, edge types.TypedEdge) (bool, error) {
	n, err := w.UpsertAll(ctx, m, summaryFor, []types.TypedEdge{edge})
	return n > 0, err
}

// UpsertAll writes a document's whole edge set atomically. Only the first edge per
// unordered pair is kept.
func (w *Writer) UpsertAll(ctx context.Context, m SummaryMerger, summaryFor string, edges []types.TypedEdge) (int, error) {
	if summaryFor == "" {
		return 0, fmt.Errorf("%w: empty summary_for", kgerrors.ErrInvalidArgument)
	}
	seen := map[types.PairKey]bool{}
	batch := make([]types.TypedEdge, 0, len(edges))
	for _, e := range edges {
		if e.From == "" || e.To == "" || e.Predicate == "" {
			return 0, fmt.Errorf("%w: incomplete edge %s", kgerrors.ErrInvalidArgument, e)
		}
		if seen[e.Pair()] {
			continue
		}
		seen[e.Pair()] = true
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	created, err := m.MergeSummaryEdges(ctx, summaryFor, batch)
	if err != nil {
		return 0, err
	}
	if w.observer != nil {
		w.observer.AddEdgesCreated(created)
	}
	w.log.Debug("summary edges merged",
		"summary_for", summaryFor,
		"submitted", len(batch),
		"created", created,
	)
	return created, nil
}
