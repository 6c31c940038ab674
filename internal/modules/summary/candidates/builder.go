package candidates

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type BulkResolver interface {
	BulkResolve(ctx context.Context, titles mapset.Set[string]) (map[string]types.IdentifierMapping, error)
}

// PairFinder returns the typed edges that exist for directed entity pairs.
// *graph.Session satisfies it.
type PairFinder interface {
	TypedEdgesForPairs(ctx context.Context, pairs []types.EntityPair) ([]types.TypedEdge, error)
}

// Groups holds the candidate edges for each unordered pair.
type Groups map[types.PairKey][]types.TypedEdge

// Keys returns the pair keys in a stable order.
func (g Groups) Keys() []types.PairKey {
	keys := make([]types.PairKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Low != keys[j].Low {
			return keys[i].Low < keys[j].Low
		}
		return keys[i].High < keys[j].High
	})
	return keys
}

type Builder struct {
	log      *logger.Logger
	resolver BulkResolver
}

func New(log *logger.Logger, resolver BulkResolver) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{log: log.With("component", "CandidateEdgeBuilder"), resolver: resolver}
}

// Build resolves titles to entities and gathers the typed edges between root and each of
// them, in both directions. ok is false when nothing could be probed: no titles, or no
// title that resolves to an entity other than root.
func (b *Builder) Build(ctx context.Context, finder PairFinder, root types.IdentifierMapping, titles mapset.Set[string]) (Groups, bool, error) {
	if titles == nil || titles.Cardinality() == 0 {
		return nil, false, nil
	}
	resolved, err := b.resolver.BulkResolve(ctx, titles)
	if err != nil {
		return nil, false, fmt.Errorf("resolve mentions: %w", err)
	}

	entities := mapset.NewThreadUnsafeSet[string]()
	for _, m := range resolved {
		if m.EntityID == "" || m.EntityID == root.EntityID {
			continue
		}
		entities.Add(m.EntityID)
	}
	if entities.Cardinality() == 0 {
		return nil, false, nil
	}

	targets := entities.ToSlice()
	sort.Strings(targets)
	pairs := make([]types.EntityPair, 0, 2*len(targets))
	for _, t := range targets {
		pairs = append(pairs,
			types.EntityPair{From: root.EntityID, To: t},
			types.EntityPair{From: t, To: root.EntityID},
		)
	}

	edges, err := finder.TypedEdgesForPairs(ctx, pairs)
	if err != nil {
		return nil, false, fmt.Errorf("fetch candidate edges: %w", err)
	}

	groups := Groups{}
	seen := map[types.TypedEdge]bool{}
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		key := e.Pair()
		groups[key] = append(groups[key], e)
	}

	b.log.Debug("built candidate groups",
		"entity_id", root.EntityID,
		"mentions", titles.Cardinality(),
		"resolved", len(resolved),
		"pairs", len(pairs),
		"edges", len(edges),
		"groups", len(groups),
	)
	return groups, true, nil
}
