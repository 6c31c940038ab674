package disambiguate

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/kgsummary/internal/data/repos/catalog"
	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/observability"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	kgerrors "github.com/yungbote/kgsummary/internal/pkg/errors"
	"github.com/yungbote/kgsummary/internal/platform/embedding"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

const (
	TieBreakShuffle = "shuffle"
	TieBreakLexical = "lexical"
)

// Observer is told how each group was resolved; *observability.Metrics satisfies it.
type Observer interface {
	ObserveDisambiguation(mode string)
	CacheHit(cache string)
	CacheMiss(cache string)
}

type Options struct {
	// Seed feeds the per-document shuffle that decides ties.
	Seed      int64
	TieBreak  string
	CacheSize int
	Observer  Observer
}

// Disambiguator picks one predicate per candidate group by comparing each predicate's
// label and description with the document abstract.
type Disambiguator struct {
	log        *logger.Logger
	predicates catalog.PredicateRepo
	embedder   embedding.Embedder
	texts      *lru.Cache[string, string]
	seed       int64
	tieBreak   string
	observer   Observer
}

func New(log *logger.Logger, predicates catalog.PredicateRepo, embedder embedding.Embedder, opts Options) (*Disambiguator, error) {
	if predicates == nil || embedder == nil {
		return nil, fmt.Errorf("disambiguator: predicate repo and embedder required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	texts, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("disambiguator: %w", err)
	}
	tieBreak := strings.ToLower(strings.TrimSpace(opts.TieBreak))
	switch tieBreak {
	case "":
		tieBreak = TieBreakShuffle
	case TieBreakShuffle, TieBreakLexical:
	default:
		return nil, fmt.Errorf("%w: tie break %q", kgerrors.ErrInvalidArgument, opts.TieBreak)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Disambiguator{
		log:        log.With("component", "Disambiguator"),
		predicates: predicates,
		embedder:   embedder,
		texts:      texts,
		seed:       opts.Seed,
		tieBreak:   tieBreak,
		observer:   opts.Observer,
	}, nil
}

// ForDocument opens a scope for one document. abstract is called at most once, the first
// time a group actually needs similarity scoring.
func (d *Disambiguator) ForDocument(summaryFor string, abstract func() string) *Scope {
	h := fnv.New64a()
	_, _ = h.Write([]byte(summaryFor))
	return &Scope{
		d:          d,
		summaryFor: summaryFor,
		abstract:   abstract,
		rng:        rand.New(rand.NewSource(d.seed ^ int64(h.Sum64()))),
	}
}

// Scope carries per-document state and is not safe for concurrent use.
type Scope struct {
	d          *Disambiguator
	summaryFor string
	abstract   func() string
	rng        *rand.Rand

	abstractDone bool
	abstractVec  []float32
}

// Choose returns the single edge of a one-element group without embedding anything.
// Larger groups are scored by cosine similarity between each predicate text and the
// abstract; the strict maximum wins and ties go to the earliest edge in tie-break order.
func (s *Scope) Choose(ctx context.Context, group []types.TypedEdge) (types.TypedEdge, error) {
	switch len(group) {
	case 0:
		return types.TypedEdge{}, fmt.Errorf("%w: empty candidate group", kgerrors.ErrInvalidArgument)
	case 1:
		s.observe("single")
		return group[0], nil
	}

	ctx, span := observability.Tracer().Start(ctx, "summary.disambiguate")
	defer span.End()
	span.SetAttributes(
		attribute.String("summary_for", s.summaryFor),
		attribute.Int("candidates", len(group)),
	)

	ordered := s.order(group)
	vec, err := s.abstractVector(ctx)
	if err != nil {
		span.RecordError(err)
		return types.TypedEdge{}, err
	}
	if vec == nil {
		s.d.log.Warn("empty abstract; taking first candidate in tie-break order",
			"summary_for", s.summaryFor,
			"candidates", len(group),
		)
		s.observe("no_abstract")
		return ordered[0], nil
	}

	texts := make([]string, len(ordered))
	for i, e := range ordered {
		if texts[i], err = s.d.predicateText(ctx, e.Predicate); err != nil {
			span.RecordError(err)
			return types.TypedEdge{}, err
		}
	}
	vecs, err := s.d.embedder.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return types.TypedEdge{}, fmt.Errorf("embed predicates: %w", err)
	}
	if len(vecs) != len(texts) {
		return types.TypedEdge{}, fmt.Errorf("%w: got %d vectors for %d predicates", kgerrors.ErrNoEmbedding, len(vecs), len(texts))
	}

	best := 0
	bestScore := -2.0
	for i, v := range vecs {
		score, err := embedding.Cosine(vec, v)
		if err != nil {
			return types.TypedEdge{}, fmt.Errorf("score %s: %w", ordered[i].Predicate, err)
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	span.SetAttributes(
		attribute.String("chosen_predicate", ordered[best].Predicate),
		attribute.Float64("score", bestScore),
	)
	s.observe("similarity")
	return ordered[best], nil
}

// order returns a copy of group in tie-break order. The lexical sort runs first in both
// modes so the shuffle does not depend on the order the store returned edges in.
func (s *Scope) order(group []types.TypedEdge) []types.TypedEdge {
	out := append([]types.TypedEdge(nil), group...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	if s.d.tieBreak == TieBreakShuffle {
		s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

func (s *Scope) abstractVector(ctx context.Context) ([]float32, error) {
	if s.abstractDone {
		return s.abstractVec, nil
	}
	text := ""
	if s.abstract != nil {
		text = strings.TrimSpace(s.abstract())
	}
	if text != "" {
		vecs, err := s.d.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, fmt.Errorf("embed abstract: %w", err)
		}
		if len(vecs) != 1 || len(vecs[0]) == 0 {
			return nil, kgerrors.ErrNoEmbedding
		}
		s.abstractVec = vecs[0]
	}
	s.abstractDone = true
	return s.abstractVec, nil
}

func (s *Scope) observe(mode string) {
	if s.d.observer != nil {
		s.d.observer.ObserveDisambiguation(mode)
	}
}

// predicateText is "<label>, <description>", or the bare id when the catalog has no row.
func (d *Disambiguator) predicateText(ctx context.Context, id string) (string, error) {
	if text, ok := d.texts.Get(id); ok {
		if d.observer != nil {
			d.observer.CacheHit("predicate")
		}
		return text, nil
	}
	if d.observer != nil {
		d.observer.CacheMiss("predicate")
	}
	p, err := d.predicates.Get(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return "", fmt.Errorf("load predicate %s: %w", id, err)
	}
	text := id
	if p == nil {
		d.log.Warn("predicate metadata missing; scoring on id", "predicate", id)
	} else {
		text = p.Text()
	}
	d.texts.Add(id, text)
	return text, nil
}
