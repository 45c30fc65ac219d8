package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reader"

var (
	// UnitFetches counts unit detail fetches by media type and result ("ok", "error", "stale").
	UnitFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_fetches_total",
			Help:      "Total unit detail fetches",
		},
		[]string{"result"},
	)

	// Transitions counts committed unit transitions by direction and whether
	// the target came from the adjacent cache.
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total committed unit transitions",
		},
		[]string{"direction", "cache"},
	)

	// TransitionsRejected counts transitions refused while another was in flight.
	TransitionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Transitions rejected because another transition was in flight",
		},
	)

	// PrefetchScheduled counts sub-item prefetches by result.
	PrefetchScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_total",
			Help:      "Total sub-item prefetches",
		},
		[]string{"result"},
	)

	// CheckpointWrites counts progress checkpoint writes by trigger and result.
	CheckpointWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_writes_total",
			Help:      "Total progress checkpoint writes",
		},
		[]string{"trigger", "result"},
	)

	// PageBytes counts bytes downloaded for page images.
	PageBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_bytes_total",
			Help:      "Total bytes downloaded for page images",
		},
	)
)
