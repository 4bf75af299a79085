package metrics

import (
	"github.com/contre95/dropsort/src/features/watching"
	"github.com/contre95/dropsort/src/triage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "dropsort"

// Collector exposes file outcomes and watcher counters to Prometheus.
// It is also a triage.Sink, so it can sit behind the report dispatcher.
type Collector struct {
	registry *prometheus.Registry
	files    *prometheus.CounterVec
	lines    prometheus.Counter
}

// NewCollector creates a collector with its own registry, including Go runtime metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files handled, by outcome and destination category.",
		}, []string{"outcome", "category"}),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_lines_total",
			Help:      "Text lines reported to the sinks.",
		}),
	}
	c.registry.MustRegister(
		c.files,
		c.lines,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Report(result triage.MoveResult) {
	switch {
	case result.Skipped:
		c.files.WithLabelValues("skipped", "").Inc()
	case result.Success:
		c.files.WithLabelValues("moved", result.Category).Inc()
	default:
		c.files.WithLabelValues("failed", result.Category).Inc()
	}
}

func (c *Collector) Log(string) {
	c.lines.Inc()
}

// ObserveWatcher exports the live watcher status.
func (c *Collector) ObserveWatcher(status func() watching.Status) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "running",
			Help:      "1 while the root is being watched.",
		}, func() float64 {
			if status().Running {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "tracked_files",
			Help:      "Files waiting for their size to settle.",
		}, func() float64 { return float64(status().Stats.Tracked) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "processed_files",
			Help:      "Settled files handed to classification in the current session.",
		}, func() float64 { return float64(status().Stats.Processed) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "abandoned_checks",
			Help:      "Files that never settled in the current session.",
		}, func() float64 { return float64(status().Stats.Abandoned) }),
	)
}

// ObserveDropped exports how many report messages were dropped on a full queue.
func (c *Collector) ObserveDropped(dropped func() uint64) {
	c.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_dropped_total",
		Help:      "Report messages dropped because the queue was full.",
	}, func() float64 { return float64(dropped()) }))
}
