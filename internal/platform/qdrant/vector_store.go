package qdrant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// keySpace namespaces point ids so cache keys map to stable UUIDs.
var keySpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kgsummary/embedding-cache"))

// VectorStore persists embedding vectors as Qdrant points keyed by cache key.
// The collection is created on first write, sized to that vector.
type VectorStore struct {
	log        *logger.Logger
	client     *qdrant.Client
	collection string

	mu    sync.Mutex
	ready bool
}

func NewVectorStore(ctx context.Context, log *logger.Logger, cfg Config) (*VectorStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("missing QDRANT_HOST")
	}
	port := cfg.Port
	if port <= 0 {
		port = 6334
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "kgsummary_embeddings"
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	s := &VectorStore{
		log:        log.With("service", "QdrantVectorStore"),
		client:     client,
		collection: collection,
	}
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant collection check: %w", err)
	}
	s.ready = exists
	return s, nil
}

func PointID(key string) string {
	return uuid.NewSHA1(keySpace, []byte(key)).String()
}

func (s *VectorStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if !ready {
		return nil, false, nil
	}
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(PointID(key))},
		WithVectors:    qdrant.NewWithVectors(true),
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, false, fmt.Errorf("qdrant get: %w", err)
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	vec := points[0].GetVectors().GetVector().GetData()
	if len(vec) == 0 {
		return nil, false, nil
	}
	return vec, true, nil
}

func (s *VectorStore) Set(ctx context.Context, key string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("qdrant set: empty vector")
	}
	if err := s.ensureCollection(ctx, len(vec)); err != nil {
		return err
	}
	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(key)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{"key": key}),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (s *VectorStore) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		// A concurrent writer in another process may have created it.
		exists, existsErr := s.client.CollectionExists(ctx, s.collection)
		if existsErr != nil || !exists {
			return fmt.Errorf("qdrant create collection %s: %w", s.collection, err)
		}
	} else {
		s.log.Info("created qdrant collection", "collection", s.collection, "dim", dim)
	}
	s.ready = true
	return nil
}

func (s *VectorStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
