package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	kgerrors "github.com/yungbote/kgsummary/internal/pkg/errors"
	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// Store is an optional shared tier behind the in-process LRU (for example Redis).
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CacheObserver receives hit/miss notifications; *observability.Metrics satisfies it.
type CacheObserver interface {
	CacheHit(cache string)
	CacheMiss(cache string)
}

type CacheOptions struct {
	// Namespace separates vectors of different models sharing one Store.
	Namespace string
	Size      int
	Store     Store
	Observer  CacheObserver
	Log       *logger.Logger
}

// Cached memoizes an Embedder. Returned vectors are shared with the cache and must not
// be modified by callers.
type Cached struct {
	next      Embedder
	lru       *lru.Cache[string, []float32]
	store     Store
	observer  CacheObserver
	namespace string
	group     singleflight.Group
	log       *logger.Logger
}

func NewCached(next Embedder, opts CacheOptions) (*Cached, error) {
	if next == nil {
		return nil, fmt.Errorf("embedding cache: embedder required")
	}
	size := opts.Size
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Cached{
		next:      next,
		lru:       c,
		store:     opts.Store,
		observer:  opts.Observer,
		namespace: opts.Namespace,
		log:       log.With("component", "EmbeddingCache"),
	}, nil
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// EmbedOne embeds a single text.
func (c *Cached) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Embed serves cached inputs and sends every miss to the backend in one call. Concurrent
// callers missing the same texts share that call.
func (c *Cached) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	missIdx := map[string][]int{}
	var missTexts []string
	var missKeys []string
	for i, text := range inputs {
		key := c.key(text)
		if vec, ok := c.lookup(ctx, key); ok {
			out[i] = vec
			continue
		}
		if _, seen := missIdx[key]; !seen {
			missTexts = append(missTexts, text)
			missKeys = append(missKeys, key)
		}
		missIdx[key] = append(missIdx[key], i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	v, err, _ := c.group.Do(flightKey(missKeys), func() (any, error) {
		return c.fill(ctx, missTexts, missKeys)
	})
	if err != nil {
		return nil, err
	}
	for j, vec := range v.([][]float32) {
		for _, i := range missIdx[missKeys[j]] {
			out[i] = vec
		}
	}
	return out, nil
}

// fill embeds the texts not already remembered by an earlier flight and returns vectors
// aligned with keys.
func (c *Cached) fill(ctx context.Context, texts, keys []string) ([][]float32, error) {
	vecs := make([][]float32, len(keys))
	var pending []int
	for j, key := range keys {
		if vec, ok := c.lru.Get(key); ok {
			vecs[j] = vec
			continue
		}
		pending = append(pending, j)
	}
	if len(pending) == 0 {
		return vecs, nil
	}
	batch := make([]string, len(pending))
	for n, j := range pending {
		batch[n] = texts[j]
	}
	got, err := c.next.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(got) != len(batch) {
		return nil, fmt.Errorf("embedding cache: backend returned %d vectors for %d inputs", len(got), len(batch))
	}
	for n, vec := range got {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: input %d", kgerrors.ErrNoEmbedding, pending[n])
		}
		j := pending[n]
		c.remember(ctx, keys[j], vec)
		vecs[j] = vec
	}
	return vecs, nil
}

// flightKey identifies a miss set; a single miss shares its flight with any other caller
// missing that text alone.
func flightKey(keys []string) string {
	if len(keys) == 1 {
		return keys[0]
	}
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
	}
	return "batch:" + hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) lookup(ctx context.Context, key string) ([]float32, bool) {
	if vec, ok := c.lru.Get(key); ok {
		c.hit()
		return vec, true
	}
	if c.store != nil {
		vec, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warn("embedding store read failed (continuing)", "error", err)
		} else if ok && len(vec) > 0 {
			c.lru.Add(key, vec)
			c.hit()
			return vec, true
		}
	}
	if c.observer != nil {
		c.observer.CacheMiss("embedding")
	}
	return nil, false
}

func (c *Cached) hit() {
	if c.observer != nil {
		c.observer.CacheHit("embedding")
	}
}

func (c *Cached) remember(ctx context.Context, key string, vec []float32) {
	c.lru.Add(key, vec)
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, vec); err != nil {
		c.log.Warn("embedding store write failed (continuing)", "error", err)
	}
}
