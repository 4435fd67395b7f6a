package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	//
	// ingest
	//
	EntriesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logflow_entries_received_total",
		Help: "The total number of log entries received",
	}, []string{"source"})
	EntriesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logflow_entries_rejected_total",
		Help: "The total number of log entries rejected before counting",
	}, []string{"source", "reason"})
	EntriesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logflow_entries_duplicate_total",
		Help: "The total number of redelivered log entries skipped",
	})
	EntriesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logflow_entries_processed_total",
		Help: "The total number of log entries fanned out to the counters",
	})
	EntryQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logflow_entry_queue_length",
		Help: "Number of entries waiting for a worker",
	})

	//
	// dedupe
	//
	DedupeCacheLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logflow_dedupe_lookups_total",
		Help: "The total number of dedupe lookups",
	})
	DedupeCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logflow_dedupe_hits_total",
		Help: "The total number of dedupe cache hits",
	})
	CacheCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logflow_dedupe_collisions_total",
		Help: "The total number of dedupe cache collisions",
	})

	//
	// snapshots and alerts
	//
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logflow_snapshot_writes_total",
		Help: "The total number of counter snapshots exported",
	}, []string{"writer", "status"})
	SnapshotDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logflow_snapshot_duration",
		Help:    "Duration of a snapshot round per writer",
		Buckets: []float64{.0001, .001, .01, .1, 1.0, 5.0, 10.0},
	}, []string{"writer"})
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logflow_alerts_sent_total",
		Help: "The total number of alert notifications",
	}, []string{"status"})

	//
	// restapi
	//
	RestapiTimes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "logflow_restapi_duration",
		Help:    "Duration of REST API requests",
		Buckets: []float64{.00001, .0001, .001, .01, .1, 1.0, 5.0, 10.0},
	}, []string{"method", "route"})
	RestapiCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logflow_restapi_responses_total",
		Help: "The total number of REST API responses by status code",
	}, []string{"method", "route", "code"})
)
