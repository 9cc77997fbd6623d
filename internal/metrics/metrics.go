// Package metrics holds the prometheus collectors shared by the cache layer
// and the domain services.
package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// CacheRequests counts lookups by namespace and result (hit, miss, error).
	CacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nezhub",
		Subsystem: "cache",
		Name:      "requests_total",
		Help:      "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	// CacheEvictions counts invalidations by namespace and scope (key, all).
	CacheEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nezhub",
		Subsystem: "cache",
		Name:      "evictions_total",
		Help:      "Cache invalidations by namespace and scope",
	}, []string{"namespace", "scope"})

	// WriteOutcomes counts units of work by operation and outcome.
	WriteOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nezhub",
		Subsystem: "store",
		Name:      "write_outcomes_total",
		Help:      "Units of work by operation and outcome",
	}, []string{"operation", "outcome"})

	// ReconcileRuns counts project reconciliations by trigger and result.
	ReconcileRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nezhub",
		Subsystem: "reconcile",
		Name:      "runs_total",
		Help:      "Project reconciliations by trigger and result",
	}, []string{"trigger", "result"})
)

func init() {
	CacheRequests = register(CacheRequests)
	CacheEvictions = register(CacheEvictions)
	WriteOutcomes = register(WriteOutcomes)
	ReconcileRuns = register(ReconcileRuns)
}

// register adds c to the default registry, reusing an identical collector
// that is already registered.
func register(c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

// RegisterDB exposes connection pool statistics for db.
func RegisterDB(db *sql.DB, name string) error {
	if err := prometheus.Register(collectors.NewDBStatsCollector(db, name)); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}
