package services

import "github.com/prometheus/client_golang/prometheus"

var (
	entriesCreatedCounter prometheus.Counter
	entriesDeletedCounter prometheus.Counter
	sagaFailuresCounter   *prometheus.CounterVec
	compensationsCounter  *prometheus.CounterVec
	reactionsCounter      *prometheus.CounterVec
	orphansRemovedCounter prometheus.Counter
)

func init() {
	entriesCreatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etd_entries_created_total",
		Help: "Total number of ETD entries created by the ingestion saga.",
	})
	entriesDeletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etd_entries_deleted_total",
		Help: "Total number of ETD entries removed by the removal saga.",
	})
	sagaFailuresCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etd_ingestion_failures_total",
		Help: "Ingestion saga failures by failing step.",
	}, []string{"step"})
	compensationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etd_saga_compensations_total",
		Help: "Compensation steps executed, by step and result.",
	}, []string{"step", "result"})
	reactionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "etd_comment_reactions_total",
		Help: "Reaction transitions on claim comments, by action and result.",
	}, []string{"action", "result"})
	orphansRemovedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "etd_orphans_removed_total",
		Help: "Entries without documents removed by the reconciliation sweep.",
	})
	prometheus.MustRegister(
		entriesCreatedCounter,
		entriesDeletedCounter,
		sagaFailuresCounter,
		compensationsCounter,
		reactionsCounter,
		orphansRemovedCounter,
	)
}
