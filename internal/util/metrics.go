package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_runs_total",
		Help: "Total number of sync runs by outcome",
	}, []string{"status"})

	SyncStepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_step_failures_total",
		Help: "Total number of failed sync steps",
	}, []string{"step"})

	ReportFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "report_fetch_duration_seconds",
		Help:    "Time from report request to downloaded document",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"report_type"})

	ReportPollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "report_poll_attempts",
		Help:    "Number of status polls per fetched report",
		Buckets: []float64{1, 2, 5, 10, 20, 30},
	})

	LedgerEventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_ingested_total",
		Help: "Ledger event rows ingested by result",
	}, []string{"result"})

	LedgerRowsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_rows_skipped_total",
		Help: "Malformed ledger report rows skipped",
	})

	ClaimableItemsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claimable_items_created_total",
		Help: "Claimable items created by category",
	}, []string{"category"})

	ClaimsSuppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claims_suppressed_total",
		Help: "Claim candidates suppressed by existing reimbursements or claims",
	}, []string{"cause"})

	EventsReclassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_reclassified_total",
		Help: "Ledger events promoted by the status refresher",
	}, []string{"transition"})

	ClaimStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_status_transitions_total",
		Help: "Operator claim status transitions",
	}, []string{"to"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
