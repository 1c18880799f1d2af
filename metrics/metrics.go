package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for one import run.
type Metrics struct {
	Registry   *prometheus.Registry
	RowsRead   prometheus.Counter
	Results    *prometheus.CounterVec
	APICalls   *prometheus.CounterVec
	QueryCalls *prometheus.CounterVec
}

// New creates the metrics on a private registry so runs and tests never
// collide on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RowsRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "escolas_rows_read_total",
			Help: "Census rows read from the source file",
		}),
		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escolas_import_results_total",
			Help: "Processed schools by outcome",
		}, []string{"status"}),
		APICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escolas_api_calls_total",
			Help: "Wikidata Action API calls by action and outcome",
		}, []string{"action", "outcome"}),
		QueryCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "escolas_sparql_queries_total",
			Help: "SPARQL queries by query name and outcome",
		}, []string{"query", "outcome"}),
	}
}

// ObserveResult counts one processed school.
func (m *Metrics) ObserveResult(status string) {
	m.Results.WithLabelValues(status).Inc()
}

// ObserveAPICall counts one Action API call.
func (m *Metrics) ObserveAPICall(action string, err error) {
	m.APICalls.WithLabelValues(action, outcome(err)).Inc()
}

// ObserveQuery counts one SPARQL query.
func (m *Metrics) ObserveQuery(query string, err error) {
	m.QueryCalls.WithLabelValues(query, outcome(err)).Inc()
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics: write textfile: %w", err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
