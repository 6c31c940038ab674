package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// RequestObserver is told about every embeddings call; *observability.Metrics satisfies it.
type RequestObserver interface {
	ObserveEmbedRequest(err error)
}

type Config struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible endpoint, including the /v1 suffix.
	BaseURL    string
	Model      string
	MaxTokens  int
	RatePerSec float64
	Timeout    time.Duration
	MaxRetries int
}

// Embedder calls the embeddings endpoint. Inputs longer than MaxTokens are truncated
// before the request.
type Embedder struct {
	log        *logger.Logger
	api        *goopenai.Client
	model      string
	maxTokens  int
	maxRetries int
	limiter    *rate.Limiter
	observer   RequestObserver

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

func NewEmbedder(log *logger.Logger, cfg Config, observer RequestObserver) (*Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(goopenai.SmallEmbedding3)
	}
	clientCfg := goopenai.DefaultConfig(apiKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientCfg.BaseURL = base
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		if burst = int(cfg.RatePerSec); burst < 1 {
			burst = 1
		}
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &Embedder{
		log:        log.With("service", "OpenAIEmbedder"),
		api:        goopenai.NewClientWithConfig(clientCfg),
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(limit, burst),
		observer:   observer,
	}, nil
}

// Model is the embedding model name; it namespaces cached vectors.
func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = e.truncate(s)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		out, err := e.embedOnce(ctx, clean)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		e.log.Warn("embeddings request failed; retrying",
			"attempt", attempt+1,
			"model", e.model,
			"error", err,
		)
	}
	return nil, lastErr
}

func (e *Embedder) embedOnce(ctx context.Context, clean []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := e.api.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: clean,
		Model: goopenai.EmbeddingModel(e.model),
	})
	if e.observer != nil {
		e.observer.ObserveEmbedRequest(err)
	}
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	// Some compatible servers omit the index; fall back to response order.
	if hasMissingEmbeddings(out) && len(resp.Data) == len(clean) {
		for i := range out {
			if out[i] == nil {
				out[i] = resp.Data[i].Embedding
			}
		}
	}
	if hasMissingEmbeddings(out) {
		return nil, &missingIndicesError{requested: len(clean), returned: len(resp.Data), model: e.model}
	}
	return out, nil
}

func (e *Embedder) encoding() *tiktoken.Tiktoken {
	e.encOnce.Do(func() {
		enc, err := tiktoken.EncodingForModel(e.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err != nil {
			e.log.Warn("tokenizer unavailable; truncating by characters", "error", err)
			return
		}
		e.enc = enc
	})
	return e.enc
}

func (e *Embedder) truncate(s string) string {
	// Every token covers at least one byte.
	if len(s) <= e.maxTokens {
		return s
	}
	enc := e.encoding()
	if enc == nil {
		return truncateRunes(s, e.maxTokens*4)
	}
	tokens := enc.Encode(s, nil, nil)
	if len(tokens) <= e.maxTokens {
		return s
	}
	return enc.Decode(tokens[:e.maxTokens])
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func hasMissingEmbeddings(v [][]float32) bool {
	for i := range v {
		if len(v[i]) == 0 {
			return true
		}
	}
	return false
}

type missingIndicesError struct {
	requested int
	returned  int
	model     string
}

func (e *missingIndicesError) Error() string {
	return fmt.Sprintf("openai embeddings missing indices: requested=%d returned=%d model=%s", e.requested, e.returned, e.model)
}

func retryable(err error) bool {
	var missing *missingIndicesError
	if errors.As(err, &missing) {
		return true
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	return false
}
