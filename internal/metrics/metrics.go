// Package metrics exposes the Prometheus collectors of the kit pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Item outcomes.
const (
	ResultGenerated = "generated"
	ResultSkipped   = "skipped"
	ResultAborted   = "aborted"
)

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

var (
	ItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partykit_items_total",
			Help: "Kit item generation attempts by item type and result",
		},
		[]string{"item_type", "result"},
	)

	ItemDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partykit_item_duration_seconds",
			Help:    "Duration of a single image model request",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"item_type"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partykit_runs_total",
			Help: "Finished kit runs by outcome",
		},
		[]string{"outcome"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partykit_runs_active",
			Help: "Kit runs currently in progress",
		},
	)

	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partykit_model_requests_in_flight",
			Help: "Image model requests currently outstanding",
		},
	)

	ArchivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partykit_archives_total",
			Help: "Archive exports by result",
		},
		[]string{"result"},
	)
)
