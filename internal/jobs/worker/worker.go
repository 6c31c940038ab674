package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/modules/summary/pipeline"
	"github.com/yungbote/kgsummary/internal/observability"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	kgerrors "github.com/yungbote/kgsummary/internal/pkg/errors"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// Queue is the part of the work queue the orchestrator drives. catalog.DocumentRepo
// satisfies it.
type Queue interface {
	Claim(dbc dbctx.Context, limit int, lease time.Duration, token string) ([]types.DocumentRef, error)
	Renew(dbc dbctx.Context, token string, ids []int64) (int64, error)
	MarkProcessed(dbc dbctx.Context, id int64) error
	MarkFailed(dbc dbctx.Context, id int64, reason string) error
}

type Processor interface {
	Process(ctx context.Context, doc types.DocumentRef) (pipeline.Result, error)
}

// Observer receives per-document and per-claim measurements; *observability.Metrics
// satisfies it.
type Observer interface {
	ObserveDocument(outcome, state string, d time.Duration)
	ObserveClaim(n int)
}

type Config struct {
	Workers     int
	BatchSize   int
	Lease       time.Duration
	TaskTimeout time.Duration
}

type RunSummary struct {
	RunID        string
	Batches      int
	Claimed      int
	Processed    int
	Failed       int
	// LeaseLost counts claimed documents skipped because their lease had passed to
	// another claimer before the task started.
	LeaseLost    int
	EdgesCreated int
	Outcomes     map[pipeline.Outcome]int
	Duration     time.Duration
}

// Orchestrator drains the queue: claim a batch, process it on a bounded pool, repeat
// until a claim comes back empty. A failed claim aborts the run; a failed document only
// fails that document.
type Orchestrator struct {
	log       *logger.Logger
	queue     Queue
	processor Processor
	observer  Observer
	cfg       Config
}

func NewOrchestrator(baseLog *logger.Logger, queue Queue, processor Processor, observer Observer, cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 200
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &Orchestrator{
		log:       baseLog.With("component", "SummaryOrchestrator"),
		queue:     queue,
		processor: processor,
		observer:  observer,
		cfg:       cfg,
	}
}

// Run returns ctx's error when stopped early. The batch in flight at cancellation is
// still finished and recorded.
func (o *Orchestrator) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	sum := RunSummary{RunID: uuid.NewString(), Outcomes: map[pipeline.Outcome]int{}}
	log := o.log.With("run_id", sum.RunID)
	log.Info("Starting summary run",
		"workers", o.cfg.Workers,
		"batch_size", o.cfg.BatchSize,
		"lease", o.cfg.Lease,
	)
	var mu sync.Mutex

	for {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			log.Warn("Summary run stopped", "claimed", sum.Claimed, "error", err)
			return sum, err
		}

		batch, err := o.claim(ctx, sum.RunID)
		if err != nil {
			sum.Duration = time.Since(start)
			log.Error("Claim failed; aborting run", "error", err, "kind", kgerrors.Kind(err))
			return sum, fmt.Errorf("claim batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		sum.Batches++
		sum.Claimed += len(batch)
		if o.observer != nil {
			o.observer.ObserveClaim(len(batch))
		}

		held := newLeaseSet(batch)
		stopHeartbeat := o.heartbeat(ctx, log, sum.RunID, held)

		g := new(errgroup.Group)
		g.SetLimit(o.cfg.Workers)
		for _, doc := range batch {
			g.Go(func() error {
				defer held.release(doc.ID)
				if !o.holdsLease(ctx, log, sum.RunID, doc) {
					mu.Lock()
					sum.LeaseLost++
					mu.Unlock()
					return nil
				}
				res, state := o.runTask(ctx, log, doc)
				mu.Lock()
				defer mu.Unlock()
				sum.Outcomes[res.Outcome]++
				sum.EdgesCreated += res.Created
				if state == types.StateProcessed {
					sum.Processed++
				} else {
					sum.Failed++
				}
				return nil
			})
		}
		_ = g.Wait()
		stopHeartbeat()
		log.Debug("Batch finished", "batch", sum.Batches, "size", len(batch))
	}

	sum.Duration = time.Since(start)
	log.Info("Summary run drained queue",
		"batches", sum.Batches,
		"claimed", sum.Claimed,
		"processed", sum.Processed,
		"failed", sum.Failed,
		"lease_lost", sum.LeaseLost,
		"edges_created", sum.EdgesCreated,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (o *Orchestrator) claim(ctx context.Context, runID string) ([]types.DocumentRef, error) {
	ctx, span := observability.Tracer().Start(ctx, "queue.claim")
	defer span.End()
	batch, err := o.queue.Claim(dbctx.Context{Ctx: ctx}, o.cfg.BatchSize, o.cfg.Lease, runID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("claimed", len(batch)))
	return batch, nil
}

// heartbeat restamps the lease of every unresolved document in the batch at a third of
// the lease interval, so rows queued behind busy workers stay held for the whole batch.
func (o *Orchestrator) heartbeat(ctx context.Context, log *logger.Logger, token string, held *leaseSet) (stop func()) {
	if o.cfg.Lease <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(max(o.cfg.Lease/3, time.Millisecond))
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				ids := held.ids()
				if len(ids) == 0 {
					continue
				}
				n, err := o.queue.Renew(dbctx.Context{Ctx: hbCtx}, token, ids)
				if err != nil {
					log.Warn("Lease renewal failed", "pending", len(ids), "error", err, "kind", kgerrors.Kind(err))
					continue
				}
				if int(n) < len(ids) {
					log.Debug("Lease renewal kept fewer rows than pending", "pending", len(ids), "renewed", n)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// holdsLease renews doc's lease as its task starts. A row whose lease already passed to
// another claimer is left to that claimer.
func (o *Orchestrator) holdsLease(ctx context.Context, log *logger.Logger, token string, doc types.DocumentRef) bool {
	if o.cfg.Lease <= 0 {
		return true
	}
	n, err := o.queue.Renew(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, token, []int64{doc.ID})
	if err != nil {
		log.Warn("Lease check failed; skipping document", "document_id", doc.ID, "error", err, "kind", kgerrors.Kind(err))
		return false
	}
	if n == 0 {
		log.Warn("Lease lost before task start; skipping document", "document_id", doc.ID, "title", doc.Title)
		return false
	}
	return true
}

// runTask processes one document and records its terminal state. The state write runs
// on a context detached from cancellation so a stopping run still records outcomes.
func (o *Orchestrator) runTask(ctx context.Context, log *logger.Logger, doc types.DocumentRef) (res pipeline.Result, state types.DocumentState) {
	start := time.Now()
	taskCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.cfg.TaskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, o.cfg.TaskTimeout)
	}
	defer cancel()

	var runErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Document task panic", "document_id", doc.ID, "title", doc.Title, "panic", r)
				res = pipeline.Result{Outcome: pipeline.OutcomeErrored}
				runErr = &panicError{Val: r}
			}
		}()
		res, runErr = o.processor.Process(taskCtx, doc)
	}()
	if runErr != nil {
		res.Outcome = pipeline.OutcomeErrored
		res.Reason = runErr.Error()
		log.Warn("Document failed",
			"document_id", doc.ID,
			"title", doc.Title,
			"kind", kgerrors.Kind(runErr),
			"error", runErr,
		)
	}

	state = res.Outcome.TerminalState()
	dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
	var markErr error
	if state == types.StateProcessed {
		markErr = o.queue.MarkProcessed(dbc, doc.ID)
	} else {
		markErr = o.queue.MarkFailed(dbc, doc.ID, res.Reason)
	}
	if markErr != nil {
		log.Error("Recording document state failed; lease will expire",
			"document_id", doc.ID,
			"state", state,
			"error", markErr,
		)
	}

	elapsed := time.Since(start)
	if o.observer != nil {
		o.observer.ObserveDocument(string(res.Outcome), string(state), elapsed)
	}
	log.Debug("Document finished",
		"document_id", doc.ID,
		"outcome", res.Outcome,
		"state", state,
		"created", res.Created,
		"duration", elapsed,
	)
	return res, state
}

type leaseSet struct {
	mu      sync.Mutex
	pending map[int64]struct{}
}

func newLeaseSet(batch []types.DocumentRef) *leaseSet {
	s := &leaseSet{pending: make(map[int64]struct{}, len(batch))}
	for _, d := range batch {
		s.pending[d.ID] = struct{}{}
	}
	return s
}

func (s *leaseSet) release(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *leaseSet) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.pending))
	for id := range s.pending {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
