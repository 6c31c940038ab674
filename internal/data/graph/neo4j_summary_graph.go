package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/kgsummary/internal/domain/summary"
	"github.com/yungbote/kgsummary/internal/platform/logger"
	"github.com/yungbote/kgsummary/internal/platform/neo4jdb"
)

const (
	typedEdgesForPairsCypher = `
UNWIND $pairs AS p
MATCH (s:WikiEntity {entityName: p.from})-[r:HAS_TYPE]->(t:WikiEntity {entityName: p.to})
RETURN s.entityName AS s, r.type AS p, t.entityName AS t
`
	summaryEdgesCypher = `
MATCH (s:WikiEntity)-[r:SUMMARY {summary_for: $entity_id}]->(t:WikiEntity)
WHERE s.entityName = $entity_id OR t.entityName = $entity_id
RETURN s.entityName AS s, r.predicate AS p, t.entityName AS t
`
	// One summary edge per unordered pair and document: a reverse edge blocks the merge,
	// and an existing forward edge keeps its predicate.
	mergeSummaryEdgesCypher = `
UNWIND $edges AS e
MATCH (s:WikiEntity {entityName: e.from}), (t:WikiEntity {entityName: e.to})
WHERE NOT EXISTS { MATCH (t)-[:SUMMARY {summary_for: $summary_for}]->(s) }
MERGE (s)-[r:SUMMARY {summary_for: $summary_for}]->(t)
ON CREATE SET r.predicate = e.predicate, r.created_at = $now
`
)

var schemaStatements = []string{
	`CREATE INDEX wiki_entity_name IF NOT EXISTS FOR (e:WikiEntity) ON (e.entityName)`,
	`CREATE INDEX summary_for IF NOT EXISTS FOR ()-[r:SUMMARY]-() ON (r.summary_for)`,
}

// Store hands out per-task sessions over the entity graph.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, baseLog *logger.Logger) *Store {
	return &Store{
		client: client,
		log:    baseLog.With("store", "SummaryGraph"),
	}
}

// EnsureSchema creates the lookup indexes. Failures are logged and skipped so a
// read-only replica or older server does not block startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.client == nil || s.client.Driver == nil {
		return fmt.Errorf("summary graph: neo4j client not initialized")
	}
	session := s.client.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	for _, q := range schemaStatements {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "statement", q, "error", err)
			continue
		}
		if _, err := res.Consume(ctx); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "statement", q, "error", err)
		}
	}
	return nil
}

// Session opens a session scoped to one document task. The caller must Close it.
func (s *Store) Session(ctx context.Context) *Session {
	return &Session{
		session: s.client.Session(ctx, neo4j.AccessModeWrite),
		log:     s.log,
	}
}

type Session struct {
	session neo4j.SessionWithContext
	log     *logger.Logger
}

func (s *Session) Close(ctx context.Context) error {
	if s == nil || s.session == nil {
		return nil
	}
	return s.session.Close(ctx)
}

// SummaryEdges returns the summary edges recorded for entityID.
func (s *Session) SummaryEdges(ctx context.Context, entityID string) ([]types.SummaryEdge, error) {
	if entityID == "" {
		return nil, nil
	}
	edges, err := s.readTriples(ctx, summaryEdgesCypher, map[string]any{"entity_id": entityID})
	if err != nil {
		return nil, fmt.Errorf("summary edges for %s: %w", entityID, err)
	}
	out := make([]types.SummaryEdge, 0, len(edges))
	for _, e := range edges {
		out = append(out, types.SummaryEdge{TypedEdge: e, SummaryFor: entityID})
	}
	return out, nil
}

// TypedEdgesForPairs fetches every HAS_TYPE edge matching one of the directed probes, in a
// single query.
func (s *Session) TypedEdgesForPairs(ctx context.Context, pairs []types.EntityPair) ([]types.TypedEdge, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		params = append(params, map[string]any{"from": p.From, "to": p.To})
	}
	edges, err := s.readTriples(ctx, typedEdgesForPairsCypher, map[string]any{"pairs": params})
	if err != nil {
		return nil, fmt.Errorf("typed edges for %d pairs: %w", len(pairs), err)
	}
	return edges, nil
}

// MergeSummaryEdges writes edges for summaryFor in one write transaction and reports how
// many relationships were created.
func (s *Session) MergeSummaryEdges(ctx context.Context, summaryFor string, edges []types.TypedEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{"from": e.From, "to": e.To, "predicate": e.Predicate})
	}
	params := map[string]any{
		"edges":       rows,
		"summary_for": summaryFor,
		"now":         time.Now().UTC().Format(time.RFC3339Nano),
	}
	created, err := s.session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, mergeSummaryEdgesCypher, params)
		if err != nil {
			return 0, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return 0, err
		}
		return summary.Counters().RelationshipsCreated(), nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge %d summary edges for %s: %w", len(edges), summaryFor, err)
	}
	n, _ := created.(int)
	return n, nil
}

func (s *Session) readTriples(ctx context.Context, cypher string, params map[string]any) ([]types.TypedEdge, error) {
	out, err := s.session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]types.TypedEdge, 0, len(records))
		for _, rec := range records {
			edges = append(edges, types.TypedEdge{
				From:      stringField(rec, "s"),
				Predicate: stringField(rec, "p"),
				To:        stringField(rec, "t"),
			})
		}
		return edges, nil
	})
	if err != nil {
		return nil, err
	}
	edges, _ := out.([]types.TypedEdge)
	return edges, nil
}

func stringField(rec *neo4j.Record, key string) string {
	if rec == nil {
		return ""
	}
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
