// Package metrics provides Prometheus metrics for usbprep.
//
// Every supervised command, drive result, partition activation, and
// buffer allocation is counted. Metrics can be served over HTTP while a
// run is in progress or written once at exit to a node_exporter textfile.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/usbprep/internal/heap"
	"github.com/randomizedcoder/usbprep/internal/process"
)

// Collector owns the usbprep metrics. It implements process.Observer.
type Collector struct {
	info              *prometheus.GaugeVec
	invocations       *prometheus.CounterVec
	invocationSeconds *prometheus.HistogramVec
	exitCodes         *prometheus.CounterVec
	inputErrors       *prometheus.CounterVec
	running           prometheus.Gauge
	drives            *prometheus.CounterVec
	activations       *prometheus.CounterVec
	heapLiveBytes     prometheus.Gauge
	heapOps           *prometheus.CounterVec
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version  string
	Host     string
	Strategy string
}

// NewCollectorWithRegistry creates a collector with a custom registry.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "usbprep_info",
				Help: "Information about the run (value always 1)",
			},
			[]string{"version", "host", "strategy"},
		),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_invocations_total",
				Help: "Supervised command invocations by step and completion",
			},
			[]string{"step", "completion"},
		),
		invocationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usbprep_invocation_duration_seconds",
				Help:    "Wall time of supervised commands",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"step"},
		),
		exitCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_exit_codes_total",
				Help: "Exit codes reported for supervised commands",
			},
			[]string{"step", "exit_code"},
		),
		inputErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_scripted_input_errors_total",
				Help: "Scripted input writes that failed",
			},
			[]string{"step"},
		),
		running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "usbprep_invocations_running",
				Help: "Supervised commands currently running",
			},
		),
		drives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_drives_total",
				Help: "Drives processed by final status",
			},
			[]string{"status"},
		),
		activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_partition_activations_total",
				Help: "Partition activations, by whether the table was rewritten",
			},
			[]string{"changed"},
		),
		heapLiveBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "usbprep_heap_live_bytes",
				Help: "Bytes currently allocated from the buffer heap",
			},
		),
		heapOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usbprep_heap_operations_total",
				Help: "Buffer heap operations by kind and result",
			},
			[]string{"op", "result"},
		),
	}

	registry.MustRegister(
		c.info,
		c.invocations,
		c.invocationSeconds,
		c.exitCodes,
		c.inputErrors,
		c.running,
		c.drives,
		c.activations,
		c.heapLiveBytes,
		c.heapOps,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Host, cfg.Strategy).Set(1)

	return c
}

// =============================================================================
// process.Observer
// =============================================================================

// InvocationStarted records a command start.
func (c *Collector) InvocationStarted(step string) {
	c.running.Inc()
}

// InvocationFinished records a command's outcome.
func (c *Collector) InvocationFinished(out process.Outcome, _ error) {
	c.running.Dec()
	c.invocations.WithLabelValues(out.Step, out.Completion.String()).Inc()
	c.invocationSeconds.WithLabelValues(out.Step).Observe(out.Duration.Seconds())
	if out.Completion != process.CompletionSpawnFailed {
		c.exitCodes.WithLabelValues(out.Step, strconv.Itoa(out.ExitCode)).Inc()
	}
	if out.InputErr != nil {
		c.inputErrors.WithLabelValues(out.Step).Inc()
	}
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// RecordDrive records the final status of a drive.
func (c *Collector) RecordDrive(status string) {
	c.drives.WithLabelValues(status).Inc()
}

// RecordActivation records a partition activation.
func (c *Collector) RecordActivation(changed bool) {
	c.activations.WithLabelValues(strconv.FormatBool(changed)).Inc()
}

// HeapHook returns a heap.Config hook that tracks allocations.
func (c *Collector) HeapHook() func(heap.Event) {
	return func(ev heap.Event) {
		result := "ok"
		if ev.Err != nil {
			result = "error"
		}
		c.heapOps.WithLabelValues(ev.Op.String(), result).Inc()
		c.heapLiveBytes.Set(float64(ev.LiveBytes))
	}
}
