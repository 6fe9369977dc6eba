// Package metrics provides operation tracking for tabula using Prometheus
// metrics.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible counters for arena construction
//   - Per-table operation counters and row-count histograms
//   - A Timer for measuring operation latency
//
// # Basic Usage
//
//	collector := metrics.NewCollector("view")
//	timer := metrics.NewTimer("sort_by")
//	result := sortRows(rows)
//	collector.RecordOperation(timer.Name(), len(result), timer.Stop())
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., arenas built)
// Histogram: Distribution of values (e.g., rows produced per operation)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records operation metrics for one kind of table. The table
// name ("collection" or "view") is used as a label on every sample.
type Collector struct {
	table string
}

// NewCollector creates a collector labelled with table.
func NewCollector(table string) *Collector {
	return &Collector{table: table}
}

// RecordOperation counts one completed operation that produced rows rows
// and took d.
func (c *Collector) RecordOperation(operation string, rows int, d time.Duration) {
	Operations.WithLabelValues(c.table, operation).Inc()
	OperationRows.WithLabelValues(operation).Observe(float64(rows))
	OperationLatency.WithLabelValues(c.table, operation).Observe(float64(d.Nanoseconds()))
}

// RecordMaterialized counts rows copied into fresh storage.
func (c *Collector) RecordMaterialized(rows int) {
	MaterializedRows.Add(float64(rows))
}

var (
	// ArenasBuilt counts arenas produced by arena.Builder.Finish.
	ArenasBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabula_arenas_built_total",
			Help: "Total number of arenas built",
		},
	)

	// NodesBuilt counts nodes written into finished arenas.
	NodesBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabula_nodes_built_total",
			Help: "Total number of nodes written into arenas",
		},
	)

	// Operations tracks tabular operations.
	// Labels: table (collection/view), operation (head/filter/sort_by/...)
	//
	// Example:
	//	metrics.Operations.WithLabelValues("view", "filter").Inc()
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabula_operations_total",
			Help: "Total number of tabular operations",
		},
		[]string{"table", "operation"},
	)

	// MaterializedRows counts rows copied out of zero-copy territory.
	MaterializedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tabula_materialized_rows_total",
			Help: "Total number of rows materialized into new storage",
		},
	)

	// OperationRows tracks the number of rows produced per operation.
	OperationRows = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabula_operation_rows",
			Help:    "Rows produced by a tabular operation",
			Buckets: prometheus.ExponentialBuckets(1, 10, 8),
		},
		[]string{"operation"},
	)

	// OperationLatency tracks the distribution of operation latencies in
	// nanoseconds.
	OperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tabula_operation_latency_nanoseconds",
			Help: "Tabular operation latency in nanoseconds",
			Buckets: []float64{
				100,    // 100ns - position copies
				1000,   // 1μs
				10000,  // 10μs
				100000, // 100μs
				1e6,    // 1ms - sorts and groupings
				1e7,    // 10ms
				1e8,    // 100ms - large materializations
				1e9,    // 1s
			},
		},
		[]string{"table", "operation"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
