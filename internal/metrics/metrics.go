// Package metrics holds the Prometheus collectors of nestq.
//
// Collectors are package variables so any package can record into them;
// they are only exported once Register has attached them to a registry.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Compiler metrics.
var (
	CompileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nestq",
			Name:      "compile_total",
			Help:      "Total number of query compilations",
		},
		[]string{"result"}, // "ok" or an error code
	)

	CompileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nestq",
			Name:      "compile_duration_seconds",
			Help:      "Query compilation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	NestedJoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nestq",
			Name:      "nested_joins_total",
			Help:      "Nested levels compiled into block joins, by score mode",
		},
		[]string{"score_mode"},
	)
)

// Execution metrics.
var (
	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nestq",
			Name:      "search_total",
			Help:      "Total number of searches",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nestq",
			Name:      "search_duration_seconds",
			Help:      "Search execution duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	FilterCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nestq",
			Name:      "filter_cache_total",
			Help:      "Bitset filter cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	FilterCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nestq",
			Name:      "filter_cache_entries",
			Help:      "Materialized filters currently cached, summed over every cache in the process",
		},
	)

	IndexedBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nestq",
			Name:      "indexed_blocks_total",
			Help:      "Blocks written to the store",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		CompileTotal,
		CompileDuration,
		NestedJoinsTotal,
		SearchTotal,
		SearchDuration,
		FilterCacheTotal,
		FilterCacheEntries,
		IndexedBlocksTotal,
		httpRequestDuration,
		httpRequestsTotal,
	}
}

// Register attaches every collector to reg. Registering twice on the same
// registry is not an error.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
