// Package observe provides step observers exporting metrics, traces and logs.
package observe

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haitch/go-asyncstep"
)

// MetricsConfig configures the metrics observer.
type MetricsConfig struct {
	// Namespace is the Prometheus namespace for all metrics.
	// Default: "asyncstep"
	Namespace string

	// Subsystem is the Prometheus subsystem for all metrics.
	// Default: "steps"
	Subsystem string

	// DurationBuckets are the histogram buckets for step duration.
	DurationBuckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace:       "asyncstep",
		Subsystem:       "steps",
		DurationBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		Registry:        prometheus.DefaultRegisterer,
	}
}

// MetricsObserver counts steps by outcome, and measures their duration.
type MetricsObserver struct {
	asyncstep.BaseObserver

	started          *prometheus.CounterVec
	finished         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	attempts         *prometheus.HistogramVec
	resourcesStopped *prometheus.CounterVec
}

var _ asyncstep.Observer = &MetricsObserver{}

func NewMetricsObserver(config *MetricsConfig) (*MetricsObserver, error) {
	if config == nil {
		config = DefaultMetricsConfig()
	}

	mo := &MetricsObserver{
		started: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "started_total",
				Help:      "Total number of started steps",
			},
			[]string{"nested"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "finished_total",
				Help:      "Total number of finished steps",
			},
			[]string{"nested", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "duration_seconds",
				Help:      "Duration of steps in seconds, polling included",
				Buckets:   config.DurationBuckets,
			},
			[]string{"outcome"},
		),
		attempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Subsystem: config.Subsystem,
				Name:      "attempts",
				Help:      "Number of producer invocations per step",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"outcome"},
		),
		resourcesStopped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Subsystem: "resources",
				Name:      "stopped_total",
				Help:      "Total number of stopped resources",
			},
			[]string{"container", "reaped", "success"},
		),
	}

	for _, collector := range []prometheus.Collector{mo.started, mo.finished, mo.duration, mo.attempts, mo.resourcesStopped} {
		if err := config.Registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return mo, nil
}

func (mo *MetricsObserver) OnStart(event asyncstep.StepEvent) error {
	mo.started.WithLabelValues(strconv.FormatBool(event.IsNested())).Inc()
	return nil
}

func (mo *MetricsObserver) OnSuccess(event asyncstep.StepEvent, _ any) error {
	mo.record(event, asyncstep.StepStateSucceeded)
	return nil
}

func (mo *MetricsObserver) OnFailure(event asyncstep.StepEvent, err error) error {
	mo.record(event, asyncstep.StateOf(err))
	return nil
}

func (mo *MetricsObserver) record(event asyncstep.StepEvent, state asyncstep.StepState) {
	outcome := string(state)
	mo.finished.WithLabelValues(strconv.FormatBool(event.IsNested()), outcome).Inc()
	mo.duration.WithLabelValues(outcome).Observe(event.Elapsed.Seconds())
	mo.attempts.WithLabelValues(outcome).Observe(float64(event.Attempts))
}

// StopHook counts the stops of container resources, register it with asyncstep.WithStopHook.
func (mo *MetricsObserver) StopHook() asyncstep.StopHook {
	return func(container string, reaped bool, err error) {
		mo.resourcesStopped.WithLabelValues(container, strconv.FormatBool(reaped), strconv.FormatBool(err == nil)).Inc()
	}
}
