package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a mirrored index write.
const (
	indexResultOK     = "ok"
	indexResultQueued = "queued"
	indexResultFailed = "failed"
)

var (
	indexWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_index_writes_total",
		Help: "Mirrored index writes by operation and outcome (ok, queued, failed).",
	}, []string{"op", "result"})

	indexWriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_index_write_duration_seconds",
		Help:    "Latency of mirrored index writes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	relayTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_outbox_relay_tasks_total",
		Help: "Outbox tasks processed by the relay by outcome (done, retry, dead).",
	}, []string{"result"})

	outboxBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_outbox_tasks",
		Help: "Outbox tasks by state (pending, dead) as of the last relay pass.",
	}, []string{"state"})

	reindexDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_reindex_documents_total",
		Help: "Documents written to the index by full reindex runs.",
	})

	lockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_lock_wait_seconds",
		Help:    "Time spent waiting for a per-product lock.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})
)
