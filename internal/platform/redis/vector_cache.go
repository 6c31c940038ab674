package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/kgsummary/internal/platform/logger"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// VectorCache stores embedding vectors as little-endian float32 blobs.
type VectorCache struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewVectorCache(ctx context.Context, log *logger.Logger, cfg Config) (*VectorCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newVectorCache(log, rdb, cfg), nil
}

func newVectorCache(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) *VectorCache {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "kgsummary:emb:"
	}
	return &VectorCache{
		log:    log.With("service", "RedisVectorCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

func (c *VectorCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(raw)
	if err != nil {
		c.log.Warn("dropping corrupt cached vector", "key", key, "error", err)
		return nil, false, nil
	}
	return vec, true, nil
}

func (c *VectorCache) Set(ctx context.Context, key string, vec []float32) error {
	return c.rdb.Set(ctx, c.prefix+key, encodeVector(vec), c.ttl).Err()
}

func (c *VectorCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}
