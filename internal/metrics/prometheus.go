package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records to a private registry
type Prometheus struct {
	registry       *prom.Registry
	taggerTotal    *prom.CounterVec
	taggerSeconds  *prom.HistogramVec
	sentencesTotal *prom.CounterVec
	factsTotal     prom.Counter
	fetchTotal     *prom.CounterVec
	toolTotal      *prom.CounterVec
	toolSeconds    *prom.HistogramVec
}

// NewPrometheus creates a recorder with all kgex collectors registered
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prom.NewRegistry(),
		taggerTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "kgex_tagger_calls_total",
			Help: "Total number of tagger invocations",
		}, []string{"kind", "success"}),
		taggerSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "kgex_tagger_call_seconds",
			Help:    "Tagger invocation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"kind", "success"}),
		sentencesTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "kgex_sentences_total",
			Help: "Sentences run through extraction, by outcome",
		}, []string{"outcome"}),
		factsTotal: prom.NewCounter(prom.CounterOpts{
			Name: "kgex_facts_total",
			Help: "Accepted fact triples",
		}),
		fetchTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "kgex_page_fetches_total",
			Help: "Patent page fetches, by source",
		}, []string{"source", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "kgex_tool_calls_total",
			Help: "Total number of MCP tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "kgex_tool_call_seconds",
			Help:    "MCP tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
	}

	p.registry.MustRegister(
		p.taggerTotal, p.taggerSeconds,
		p.sentencesTotal, p.factsTotal,
		p.fetchTotal,
		p.toolTotal, p.toolSeconds,
	)
	return p
}

func (p *Prometheus) ObserveTagger(kind string, success bool, seconds float64) {
	ok := strconv.FormatBool(success)
	p.taggerTotal.WithLabelValues(kind, ok).Inc()
	p.taggerSeconds.WithLabelValues(kind, ok).Observe(seconds)
}

func (p *Prometheus) IncSentences(outcome string) {
	p.sentencesTotal.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) AddFacts(n int) {
	p.factsTotal.Add(float64(n))
}

func (p *Prometheus) IncFetch(source string, success bool) {
	p.fetchTotal.WithLabelValues(source, strconv.FormatBool(success)).Inc()
}

func (p *Prometheus) ObserveTool(tool string, success bool, seconds float64) {
	ok := strconv.FormatBool(success)
	p.toolTotal.WithLabelValues(tool, ok).Inc()
	p.toolSeconds.WithLabelValues(tool, ok).Observe(seconds)
}

// Handler serves /metrics and /healthz
func (p *Prometheus) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve runs the metrics endpoint on addr until ctx is done
func (p *Prometheus) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
