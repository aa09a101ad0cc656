//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	cacheLookups    *prom.CounterVec
	remoteFetches   *prom.CounterVec
	generateSeconds *prom.HistogramVec
	feedbackTotal   *prom.CounterVec
	dbTotal         *prom.CounterVec
	dbSeconds       *prom.HistogramVec
	toolTotal       *prom.CounterVec
	toolSeconds     *prom.HistogramVec
}

func (p *promRecorder) IncCacheLookup(hit bool) {
	p.cacheLookups.WithLabelValues(fmt.Sprintf("%t", hit)).Inc()
}

func (p *promRecorder) IncRemoteFetch(outcome string) {
	p.remoteFetches.WithLabelValues(outcome).Inc()
}

func (p *promRecorder) ObserveGenerateSeconds(source string, seconds float64) {
	p.generateSeconds.WithLabelValues(source).Observe(seconds)
}

func (p *promRecorder) IncFeedback(persisted bool) {
	p.feedbackTotal.WithLabelValues(fmt.Sprintf("%t", persisted)).Inc()
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func newPromRecorder() *promRecorder {
	return &promRecorder{
		cacheLookups: prom.NewCounterVec(prom.CounterOpts{
			Name: "suggestion_cache_lookups_total",
			Help: "Suggestion cache lookups by hit/miss",
		}, []string{"hit"}),
		remoteFetches: prom.NewCounterVec(prom.CounterOpts{
			Name: "suggestion_remote_fetches_total",
			Help: "Remote ranking attempts by outcome",
		}, []string{"outcome"}),
		generateSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "suggestion_generate_seconds",
			Help:    "Suggestion request duration by result source",
			Buckets: prom.DefBuckets,
		}, []string{"source"}),
		feedbackTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "suggestion_feedback_total",
			Help: "Feedback submissions by persistence outcome",
		}, []string{"persisted"}),
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_ops_total",
			Help: "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "db_op_seconds",
			Help:    "DB operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool and route handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool and route handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
	}
}

func (p *promRecorder) register(registry *prom.Registry) {
	registry.MustRegister(
		p.cacheLookups, p.remoteFetches, p.generateSeconds, p.feedbackTotal,
		p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds,
	)
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	p.register(registry)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
