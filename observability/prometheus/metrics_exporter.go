package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-poblado/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	PollTickBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds      *prom.HistogramVec
	taskPanicTotal           *prom.CounterVec
	taskRejectedTotal        *prom.CounterVec
	queueDepth               *prom.GaugeVec
	tokensTotal              *prom.CounterVec
	transformDurationSeconds *prom.HistogramVec
	handoffTotal             *prom.CounterVec
	handoffLatencySeconds    *prom.HistogramVec
	handoffPollTicks         *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "poblado"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	tickBuckets := opts.PollTickBuckets
	if len(tickBuckets) == 0 {
		tickBuckets = prom.ExponentialBuckets(1, 4, 10)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "loop_task_duration_seconds",
		Help:      "Event loop task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"loop"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "loop_task_panic_total",
		Help:      "Total number of event loop task panics.",
	}, []string{"loop"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "loop_task_rejected_total",
		Help:      "Total number of tasks dropped by the event loop.",
	}, []string{"loop", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "loop_queue_depth",
		Help:      "Event loop ready-queue depth at the start of an iteration.",
	}, []string{"loop"})
	tokensVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_total",
		Help:      "Total number of tokens consumed by processing tasks.",
	}, []string{"task"})
	transformVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "transform_duration_seconds",
		Help:      "Bulk transform duration in seconds.",
		Buckets:   buckets,
	}, []string{"task"})
	handoffVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "handoff_total",
		Help:      "Total number of completed handoffs.",
	}, []string{"task", "status"})
	latencyVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "handoff_latency_seconds",
		Help:      "Time from task construction to the completion hook in seconds.",
		Buckets:   buckets,
	}, []string{"task", "status"})
	ticksVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "handoff_poll_ticks",
		Help:      "Poll ticks a task ran before its completion hook fired.",
		Buckets:   tickBuckets,
	}, []string{"task"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if tokensVec, err = registerCollector(reg, tokensVec); err != nil {
		return nil, err
	}
	if transformVec, err = registerCollector(reg, transformVec); err != nil {
		return nil, err
	}
	if handoffVec, err = registerCollector(reg, handoffVec); err != nil {
		return nil, err
	}
	if latencyVec, err = registerCollector(reg, latencyVec); err != nil {
		return nil, err
	}
	if ticksVec, err = registerCollector(reg, ticksVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:      durationVec,
		taskPanicTotal:           panicVec,
		taskRejectedTotal:        rejectedVec,
		queueDepth:               queueDepthVec,
		tokensTotal:              tokensVec,
		transformDurationSeconds: transformVec,
		handoffTotal:             handoffVec,
		handoffLatencySeconds:    latencyVec,
		handoffPollTicks:         ticksVec,
	}, nil
}

// RecordTaskDuration records loop task execution duration.
func (m *MetricsExporter) RecordTaskDuration(runnerName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(runnerName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records loop task panic events.
func (m *MetricsExporter) RecordTaskPanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTokens adds to the per-task token counter.
func (m *MetricsExporter) RecordTokens(taskName string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.tokensTotal.WithLabelValues(normalizeLabel(taskName, "unknown")).Add(float64(count))
}

// RecordTransformDuration records bulk transform duration.
func (m *MetricsExporter) RecordTransformDuration(taskName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.transformDurationSeconds.WithLabelValues(normalizeLabel(taskName, "unknown")).Observe(duration.Seconds())
}

// RecordHandoff records a completed handoff with its latency and poll ticks.
func (m *MetricsExporter) RecordHandoff(taskName string, status string, latency time.Duration, pollTicks int) {
	if m == nil {
		return
	}
	task := normalizeLabel(taskName, "unknown")
	status = normalizeLabel(status, "unknown")
	m.handoffTotal.WithLabelValues(task, status).Inc()
	m.handoffLatencySeconds.WithLabelValues(task, status).Observe(latency.Seconds())
	m.handoffPollTicks.WithLabelValues(task).Observe(float64(pollTicks))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
