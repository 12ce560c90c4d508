package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leaseflow",
		Subsystem: "generation",
		Name:      "runs_total",
		Help:      "Generation pipeline runs by outcome.",
	}, []string{"outcome"})

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "leaseflow",
		Subsystem: "generation",
		Name:      "duration_seconds",
		Help:      "Wall time of successful generation runs.",
		Buckets:   prometheus.DefBuckets,
	})

	missingFieldsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "leaseflow",
		Subsystem: "generation",
		Name:      "missing_fields_total",
		Help:      "Placed fields bound to an empty value because the record had no data.",
	})
)
