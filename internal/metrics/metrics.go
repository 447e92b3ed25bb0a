// Package metrics holds the Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestOutcomes counts finished device sightings.
	// Labels: outcome (created, duplicate, no_issue, rejected, error)
	IngestOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicwatch",
			Subsystem: "ingest",
			Name:      "outcomes_total",
			Help:      "Total number of device sightings by outcome",
		},
		[]string{"outcome"},
	)

	// IngestDuration tracks end to end pipeline latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "civicwatch",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of the ingestion pipeline in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Degradations counts steps that fell back instead of failing.
	// Labels: step (classifier, dedupe_query, dedupe_touch, image_store, device_ping)
	Degradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicwatch",
			Subsystem: "ingest",
			Name:      "degradations_total",
			Help:      "Total number of pipeline steps that failed and were substituted with a fallback",
		},
		[]string{"step"},
	)
)

const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeNoIssue   = "no_issue"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"

	StepClassifier  = "classifier"
	StepDedupeQuery = "dedupe_query"
	StepDedupeTouch = "dedupe_touch"
	StepImageStore  = "image_store"
	StepDevicePing  = "device_ping"
)
