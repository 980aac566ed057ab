package metrics

import (
	"net/http"

	"github.com/KaramelBytes/sigloom-cli/internal/measure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RowsIngested    prometheus.Counter
	FieldsDefaulted *prometheus.CounterVec
	Queries         *prometheus.CounterVec
	RefineFailures  prometheus.Counter
	DatasetRows     prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RowsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "sigloom_rows_ingested_total",
			Help: "Rows normalized into datasets",
		}),
		FieldsDefaulted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sigloom_fields_defaulted_total",
			Help: "Field values substituted with a default during normalization",
		}, []string{"field"}),
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sigloom_queries_total",
			Help: "Questions answered, by dispatched intent",
		}, []string{"intent"}),
		RefineFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "sigloom_refine_failures_total",
			Help: "Remote refinements discarded after an error or empty reply",
		}),
		DatasetRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "sigloom_dataset_rows",
			Help: "Rows in the current dataset",
		}),
	}
}

// ObserveIngest records one completed ingestion pass.
func (m *Metrics) ObserveIngest(rows int, defaulted map[measure.Field]int) {
	if m == nil {
		return
	}
	m.RowsIngested.Add(float64(rows))
	m.DatasetRows.Set(float64(rows))
	for f, n := range defaulted {
		m.FieldsDefaulted.WithLabelValues(string(f)).Add(float64(n))
	}
}

// ObserveQuery counts one answered question.
func (m *Metrics) ObserveQuery(intent string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(intent).Inc()
}

// ObserveRefineFailure counts one discarded refinement.
func (m *Metrics) ObserveRefineFailure(error) {
	if m == nil {
		return
	}
	m.RefineFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
