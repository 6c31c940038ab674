package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/kgsummary/internal/data/db"
	"github.com/yungbote/kgsummary/internal/data/graph"
	"github.com/yungbote/kgsummary/internal/data/repos/catalog"
	"github.com/yungbote/kgsummary/internal/jobs/worker"
	"github.com/yungbote/kgsummary/internal/modules/summary/candidates"
	"github.com/yungbote/kgsummary/internal/modules/summary/disambiguate"
	"github.com/yungbote/kgsummary/internal/modules/summary/mentions"
	"github.com/yungbote/kgsummary/internal/modules/summary/pipeline"
	"github.com/yungbote/kgsummary/internal/modules/summary/resolver"
	"github.com/yungbote/kgsummary/internal/modules/summary/writer"
	"github.com/yungbote/kgsummary/internal/observability"
	"github.com/yungbote/kgsummary/internal/platform/embedding"
	"github.com/yungbote/kgsummary/internal/platform/logger"
	"github.com/yungbote/kgsummary/internal/platform/neo4jdb"
	"github.com/yungbote/kgsummary/internal/platform/openai"
	"github.com/yungbote/kgsummary/internal/platform/qdrant"
	"github.com/yungbote/kgsummary/internal/platform/redis"
)

type Repos struct {
	Documents  catalog.DocumentRepo
	Mappings   catalog.MappingRepo
	Predicates catalog.PredicateRepo
}

func wireRepos(theDB *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Documents:  catalog.NewDocumentRepo(theDB, log),
		Mappings:   catalog.NewMappingRepo(theDB, log),
		Predicates: catalog.NewPredicateRepo(theDB, log),
	}
}

// App owns every long-lived client. Catalog access is opened eagerly; the graph and the
// embedding backend only when a command needs them.
type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    Repos
	Resolver *resolver.Resolver
	Metrics  *observability.Metrics
	Graph    *graph.Store

	pg       *db.PostgresService
	neo      *neo4jdb.Client
	closers  []func() error
	shutdown []func(context.Context) error
}

func New(ctx context.Context, cfg Config, log *logger.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	a := &App{Log: log, Cfg: cfg, Metrics: observability.NewMetrics()}
	a.shutdown = append(a.shutdown, observability.InitOTel(ctx, log, cfg.Otel))

	pg, err := db.NewPostgresService(log, cfg.Postgres)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pg = pg
	a.DB = pg.DB()
	a.Repos = wireRepos(a.DB, log)

	a.Resolver, err = resolver.New(log, a.Repos.Mappings, cfg.CacheSize, a.Metrics)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// OpenGraph connects to Neo4j and makes sure the summary indexes exist.
func (a *App) OpenGraph(ctx context.Context) error {
	if a.Graph != nil {
		return nil
	}
	client, err := neo4jdb.New(a.Log, a.Cfg.Neo4j)
	if err != nil {
		return fmt.Errorf("init neo4j: %w", err)
	}
	a.neo = client
	a.Graph = graph.NewStore(client, a.Log)
	if err := a.Graph.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("graph schema: %w", err)
	}
	return nil
}

// Migrate applies the catalog migrations and the graph indexes.
func (a *App) Migrate(ctx context.Context) error {
	a.Log.Info("Migrating catalog tables...")
	if err := db.AutoMigrateAll(a.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("catalog automigrate: %w", err)
	}
	return a.OpenGraph(ctx)
}

func (a *App) embedder(ctx context.Context) (embedding.Embedder, error) {
	backend, err := openai.NewEmbedder(a.Log, openai.Config{
		APIKey:     a.Cfg.Embedding.APIKey,
		BaseURL:    a.Cfg.Embedding.BaseURL,
		Model:      a.Cfg.Embedding.Model,
		MaxTokens:  a.Cfg.Embedding.MaxTokens,
		RatePerSec: a.Cfg.Embedding.RatePerSec,
		Timeout:    a.Cfg.Embedding.Timeout,
		MaxRetries: a.Cfg.Embedding.MaxRetries,
	}, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	store := a.vectorStore(ctx)

	return embedding.NewCached(backend, embedding.CacheOptions{
		Namespace: backend.Model(),
		Size:      a.Cfg.CacheSize,
		Store:     store,
		Observer:  a.Metrics,
		Log:       a.Log,
	})
}

// vectorStore opens the configured shared cache tier. A store that cannot be reached
// leaves the in-process LRU as the only tier.
func (a *App) vectorStore(ctx context.Context) embedding.Store {
	cfg := a.Cfg.Embedding
	switch strings.ToLower(cfg.Store) {
	case "qdrant":
		if cfg.QdrantHost == "" {
			return nil
		}
		vs, err := qdrant.NewVectorStore(ctx, a.Log, qdrant.Config{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantTLS,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			a.Log.Warn("qdrant vector store unavailable; using in-process cache only", "error", err)
			return nil
		}
		a.closers = append(a.closers, vs.Close)
		return vs
	default:
		if cfg.RedisAddr == "" {
			return nil
		}
		vc, err := redis.NewVectorCache(ctx, a.Log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		if err != nil {
			a.Log.Warn("redis vector cache unavailable; using in-process cache only", "error", err)
			return nil
		}
		a.closers = append(a.closers, vc.Close)
		return vc
	}
}

// Orchestrator wires the full claim-process-write pipeline.
func (a *App) Orchestrator(ctx context.Context) (*worker.Orchestrator, error) {
	if err := a.OpenGraph(ctx); err != nil {
		return nil, err
	}
	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, err
	}
	dis, err := disambiguate.New(a.Log, a.Repos.Predicates, emb, disambiguate.Options{
		Seed:      a.Cfg.Disambiguation.Seed,
		TieBreak:  a.Cfg.Disambiguation.TieBreak,
		CacheSize: a.Cfg.CacheSize,
		Observer:  a.Metrics,
	})
	if err != nil {
		return nil, err
	}
	store := a.Graph
	proc, err := pipeline.NewProcessor(pipeline.ProcessorDeps{
		Log:       a.Log,
		Documents: a.Repos.Documents,
		Resolver:  a.Resolver,
		Sessions: pipeline.SessionsFunc(func(ctx context.Context) pipeline.GraphSession {
			return store.Session(ctx)
		}),
		Extractor:     mentions.New(a.Cfg.ExcludedNamespaces...),
		Builder:       candidates.New(a.Log, a.Resolver),
		Disambiguator: dis,
		Writer:        writer.New(a.Log, a.Metrics),
	})
	if err != nil {
		return nil, err
	}
	return worker.NewOrchestrator(a.Log, a.Repos.Documents, proc, a.Metrics, worker.Config{
		Workers:     a.Cfg.Queue.Workers,
		BatchSize:   a.Cfg.Queue.BatchSize,
		Lease:       a.Cfg.Queue.Lease,
		TaskTimeout: a.Cfg.Queue.TaskTimeout,
	}), nil
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	for _, closeFn := range a.closers {
		_ = closeFn()
	}
	if a.neo != nil {
		if err := a.neo.Close(ctx); err != nil {
			a.Log.Warn("neo4j close failed", "error", err)
		}
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	for _, fn := range a.shutdown {
		_ = fn(ctx)
	}
	a.Log.Sync()
}
