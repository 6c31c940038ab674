package pipeline

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
)

type memoryGraph struct {
	mu      sync.Mutex
	typed   []types.TypedEdge
	summary []types.SummaryEdge
	opened  int
	closed  int
	probes  int
}

func (g *memoryGraph) Session(context.Context) GraphSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.opened++
	return &memorySession{g: g}
}

type memorySession struct{ g *memoryGraph }

func (s *memorySession) Close(context.Context) error {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.g.closed++
	return nil
}

func (s *memorySession) SummaryEdges(_ context.Context, entityID string) ([]types.SummaryEdge, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	var out []types.SummaryEdge
	for _, e := range s.g.summary {
		if e.SummaryFor == entityID && (e.From == entityID || e.To == entityID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memorySession) TypedEdgesForPairs(_ context.Context, pairs []types.EntityPair) ([]types.TypedEdge, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	s.g.probes++
	var out []types.TypedEdge
	for _, p := range pairs {
		for _, e := range s.g.typed {
			if e.From == p.From && e.To == p.To {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (s *memorySession) MergeSummaryEdges(_ context.Context, summaryFor string, edges []types.TypedEdge) (int, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	created := 0
	for _, e := range edges {
		dup := false
		for _, x := range s.g.summary {
			if x.SummaryFor == summaryFor && x.Pair() == e.Pair() {
				dup = true
				break
			}
		}
		if !dup {
			s.g.summary = append(s.g.summary, types.SummaryEdge{TypedEdge: e, SummaryFor: summaryFor})
			created++
		}
	}
	return created, nil
}

type mapResolver map[string]types.IdentifierMapping

func (r mapResolver) Resolve(_ context.Context, identifier string) (types.IdentifierMapping, bool, error) {
	for _, m := range r {
		if m.Title == identifier || m.EntityID == identifier || strconv.FormatInt(m.DocumentID, 10) == identifier {
			return m, true, nil
		}
	}
	return types.IdentifierMapping{}, false, nil
}

func (r mapResolver) BulkResolve(_ context.Context, titles mapset.Set[string]) (map[string]types.IdentifierMapping, error) {
	out := map[string]types.IdentifierMapping{}
	for t := range titles.Iter() {
		if m, ok := r[t]; ok {
			out[t] = m
		}
	}
	return out, nil
}

type memoryDocuments struct {
	mu       sync.Mutex
	contents map[int64]string
	reads    int
}

func (d *memoryDocuments) Content(_ dbctx.Context, id int64) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	c, ok := d.contents[id]
	return c, ok, nil
}

type predicateTable map[string]types.Predicate

func (p predicateTable) Get(_ dbctx.Context, id string) (*types.Predicate, error) {
	if row, ok := p[id]; ok {
		return &row, nil
	}
	return nil, nil
}

// keywordEmbedder maps predicate texts onto fixed directions; everything else is the
// abstract direction.
type keywordEmbedder struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (k *keywordEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls++
	if k.fail {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		switch {
		case strings.HasPrefix(in, "influenced by"):
			out[i] = []float32{0.9, 0.1}
		case strings.HasPrefix(in, "partner in business"):
			out[i] = []float32{0.2, 0.8}
		default:
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}
