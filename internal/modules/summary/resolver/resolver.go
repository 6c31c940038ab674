package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yungbote/kgsummary/internal/data/repos/catalog"
	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/pkg/dbctx"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

var (
	digitsRE   = regexp.MustCompile(`^\d+$`)
	entityIDRE = regexp.MustCompile(`^Q\d+$`)
)

type strategy string

const (
	byDocumentID strategy = "document_id"
	byEntityID   strategy = "entity_id"
	byTitle      strategy = "title"
)

// CacheObserver receives hit/miss notifications; *observability.Metrics satisfies it.
type CacheObserver interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

// Resolver maps any of a subject's three identifiers to its full IdentifierMapping.
// Only successful lookups are cached; misses always go back to the catalog.
type Resolver struct {
	log      *logger.Logger
	mappings catalog.MappingRepo
	cache    *lru.Cache[string, types.IdentifierMapping]
	observer CacheObserver
}

func New(log *logger.Logger, mappings catalog.MappingRepo, size int, observer CacheObserver) (*Resolver, error) {
	if mappings == nil {
		return nil, fmt.Errorf("resolver: mapping repo required")
	}
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, types.IdentifierMapping](size)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		log:      log.With("component", "EntityResolver"),
		mappings: mappings,
		cache:    cache,
		observer: observer,
	}, nil
}

func strategyFor(identifier string) strategy {
	switch {
	case digitsRE.MatchString(identifier):
		return byDocumentID
	case entityIDRE.MatchString(identifier):
		return byEntityID
	default:
		return byTitle
	}
}

func cacheKey(s strategy, identifier string) string {
	return string(s) + ":" + identifier
}

// Resolve picks exactly one lookup strategy from the identifier's shape: all digits is a
// document id, Q followed by digits is an entity id, anything else is a title.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (types.IdentifierMapping, bool, error) {
	if identifier == "" {
		return types.IdentifierMapping{}, false, nil
	}
	s := strategyFor(identifier)
	key := cacheKey(s, identifier)
	if m, ok := r.cache.Get(key); ok {
		r.hit()
		return m, true, nil
	}
	r.miss()

	dbc := dbctx.Context{Ctx: ctx}
	var (
		m   *types.IdentifierMapping
		err error
	)
	switch s {
	case byDocumentID:
		id, perr := strconv.ParseInt(identifier, 10, 64)
		if perr != nil {
			return types.IdentifierMapping{}, false, nil
		}
		m, err = r.mappings.ByDocumentID(dbc, id)
	case byEntityID:
		m, err = r.mappings.ByEntityID(dbc, identifier)
	default:
		m, err = r.mappings.ByTitle(dbc, identifier)
	}
	if err != nil {
		return types.IdentifierMapping{}, false, fmt.Errorf("resolve %s %q: %w", s, identifier, err)
	}
	if m == nil {
		return types.IdentifierMapping{}, false, nil
	}
	r.remember(*m)
	return *m, true, nil
}

// BulkResolve serves cached titles from memory and fetches the rest in one query.
// Titles that do not resolve are left out of the result.
func (r *Resolver) BulkResolve(ctx context.Context, titles mapset.Set[string]) (map[string]types.IdentifierMapping, error) {
	out := make(map[string]types.IdentifierMapping, titles.Cardinality())
	missing := make([]string, 0, titles.Cardinality())
	for title := range titles.Iter() {
		if title == "" {
			continue
		}
		if m, ok := r.cache.Get(cacheKey(byTitle, title)); ok {
			r.hit()
			out[title] = m
			continue
		}
		r.miss()
		missing = append(missing, title)
	}
	if len(missing) == 0 {
		return out, nil
	}
	rows, err := r.mappings.ByTitles(dbctx.Context{Ctx: ctx}, missing)
	if err != nil {
		return nil, fmt.Errorf("bulk resolve %d titles: %w", len(missing), err)
	}
	for _, m := range rows {
		out[m.Title] = m
		r.remember(m)
	}
	r.log.Debug("bulk resolved titles",
		"requested", titles.Cardinality(),
		"queried", len(missing),
		"resolved", len(out),
	)
	return out, nil
}

// remember caches the mapping under all three identifiers.
func (r *Resolver) remember(m types.IdentifierMapping) {
	if m.DocumentID > 0 {
		r.cache.Add(cacheKey(byDocumentID, strconv.FormatInt(m.DocumentID, 10)), m)
	}
	if m.EntityID != "" {
		r.cache.Add(cacheKey(byEntityID, m.EntityID), m)
	}
	if m.Title != "" {
		r.cache.Add(cacheKey(byTitle, m.Title), m)
	}
}

func (r *Resolver) hit() {
	if r.observer != nil {
		r.observer.CacheHit("identifier")
	}
}

func (r *Resolver) miss() {
	if r.observer != nil {
		r.observer.CacheMiss("identifier")
	}
}
