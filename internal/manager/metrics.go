package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Model loads by result.",
		},
		[]string{"result"},
	)
	unloadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "unloads_total",
			Help:      "Model instances unloaded.",
		},
	)
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Inference calls by operation and result.",
		},
		[]string{"op", "result"},
	)
	generatedTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "generated_tokens_total",
			Help:      "Tokens produced by the decode loop.",
		},
		[]string{"op"},
	)
	generationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Inference call duration after admission.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"op"},
	)
	resourcesLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "resident_models",
			Help:      "Instances whose native resources are currently held.",
		},
	)
	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "llmed",
			Subsystem: "engine",
			Name:      "events_dropped_total",
			Help:      "Events not delivered to a slow subscriber.",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, unloadsTotal, generationsTotal, generatedTokens, generationDuration, resourcesLive, eventsDropped)
}
