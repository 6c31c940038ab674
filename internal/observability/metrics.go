package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/kgsummary/internal/platform/logger"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	documents        *prometheus.CounterVec
	documentLatency  *prometheus.HistogramVec
	edgesWritten     prometheus.Counter
	claimBatches     prometheus.Counter
	claimedDocuments prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	disambiguations  *prometheus.CounterVec
	embedRequests    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kgsummary_documents_total",
			Help: "Documents finished, by outcome and terminal state",
		}, []string{"outcome", "state"}),
		documentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kgsummary_document_duration_seconds",
			Help:    "Time spent processing one claimed document",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"outcome"}),
		edgesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kgsummary_summary_edges_created_total",
			Help: "Summary edges created in the graph store",
		}),
		claimBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kgsummary_claim_batches_total",
			Help: "Non-empty batches claimed from the work queue",
		}),
		claimedDocuments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kgsummary_claimed_documents_total",
			Help: "Documents claimed from the work queue",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kgsummary_cache_lookups_total",
			Help: "Memoized lookups by cache and result",
		}, []string{"cache", "result"}),
		disambiguations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kgsummary_disambiguations_total",
			Help: "Candidate groups resolved, by mode (single or similarity)",
		}, []string{"mode"}),
		embedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kgsummary_embedding_requests_total",
			Help: "Calls to the embedding backend by status",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.documents,
		m.documentLatency,
		m.edgesWritten,
		m.claimBatches,
		m.claimedDocuments,
		m.cacheLookups,
		m.disambiguations,
		m.embedRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveDocument(outcome, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome, state).Inc()
	m.documentLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) AddEdgesCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.edgesWritten.Add(float64(n))
}

func (m *Metrics) ObserveClaim(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.claimBatches.Inc()
	m.claimedDocuments.Add(float64(n))
}

func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (m *Metrics) ObserveDisambiguation(mode string) {
	if m == nil {
		return
	}
	m.disambiguations.WithLabelValues(mode).Inc()
}

func (m *Metrics) ObserveEmbedRequest(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.embedRequests.WithLabelValues(status).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *logger.Logger) {
	if m == nil || addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", "error", err)
		}
	}()
}
