// Package metrics defines the prometheus collectors the scheduler and
// backfill commands update during a run. There is no HTTP exposition
// endpoint in this build (no HTTP front is in scope) — Snapshot renders
// the registry in the same text exposition format prometheus/client_golang
// would serve over HTTP, dumped to the CLI at shutdown instead. Grounded on
// the teacher's use of prometheus/client_golang for its own HTTP-exposed
// metrics; this module keeps the same counters/gauges and library but
// changes how they are surfaced.
package metrics

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry bundles every collector a scheduler run touches.
type Registry struct {
	reg *prometheus.Registry

	ArticlesInserted *prometheus.CounterVec
	ArticlesSkipped  *prometheus.CounterVec
	ScrapeErrors     *prometheus.CounterVec
	ActiveWorkers    prometheus.Gauge
	QueueDepth       prometheus.Gauge
}

// New registers every collector on a fresh, process-local registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ArticlesInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsagg_articles_inserted_total",
			Help: "Articles successfully inserted, labeled by source.",
		}, []string{"source"}),
		ArticlesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsagg_articles_skipped_total",
			Help: "Candidates dropped before or after scraping, labeled by reason.",
		}, []string{"source", "reason"}),
		ScrapeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsagg_scrape_errors_total",
			Help: "Scrape attempts that failed, labeled by source and error kind.",
		}, []string{"source", "kind"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsagg_active_workers",
			Help: "Current scheduler worker pool size.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "newsagg_queue_depth",
			Help: "Total candidates queued across all sources awaiting a worker.",
		}),
	}

	reg.MustRegister(r.ArticlesInserted, r.ArticlesSkipped, r.ScrapeErrors, r.ActiveWorkers, r.QueueDepth)
	return r
}

// Snapshot renders every registered family in Prometheus text exposition
// format; runAndDrain prints it to stdout after each ingest feed, backfill,
// date-sweep and auto invocation and after each `ingest run` poll cycle.
func (r *Registry) Snapshot() (string, error) {
	families, err := r.reg.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("encode metric family %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
