package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/autopeer-io/canscope/internal/monitor"
)

// Registry holds every canscope collector plus the Go and process collectors.
// It is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// ConnectionStatus records whether the transport is connected.
	// 1 = Connected, 0 = any other state
	ConnectionStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canscope_connection_status",
			Help: "The transport connection status (1=Connected, 0=NotConnected).",
		},
	)

	// FramesTotal counts frames appended to the trace.
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canscope_frames_total",
			Help: "Total number of CAN frames recorded.",
		},
		[]string{"direction"}, // direction: in/out
	)

	// NoticesTotal counts informational and error notices.
	NoticesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "canscope_notices_total",
			Help: "Total number of notices recorded.",
		},
		[]string{"class"}, // class: info/error
	)

	// LogEntries is the current trace length.
	LogEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canscope_log_entries",
			Help: "Number of entries in the trace.",
		},
	)

	// MonitorSignals is the number of distinct signals in the monitor table.
	MonitorSignals = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "canscope_monitor_signals",
			Help: "Number of distinct (identifier, format, direction) signals seen.",
		},
	)

	// SendLatency records transport send durations.
	SendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "canscope_send_latency_seconds",
			Help:    "Latency of handing a frame to the transport.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"transport"},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(ConnectionStatus)
	Registry.MustRegister(FramesTotal)
	Registry.MustRegister(NoticesTotal)
	Registry.MustRegister(LogEntries)
	Registry.MustRegister(MonitorSignals)
	Registry.MustRegister(SendLatency)
}

// LogObserver keeps the trace collectors in step with a LogStore.
func LogObserver() monitor.Observer[*monitor.LogEntry] {
	return monitor.ObserverFunc[*monitor.LogEntry](func(c monitor.Change[*monitor.LogEntry]) {
		LogEntries.Set(float64(c.Size))
		if c.Kind != monitor.Insert || c.Row == nil {
			return
		}

		switch class := c.Row.Class(); class {
		case monitor.ClassIn:
			FramesTotal.WithLabelValues("in").Inc()
		case monitor.ClassOut:
			FramesTotal.WithLabelValues("out").Inc()
		case monitor.ClassInfo:
			NoticesTotal.WithLabelValues("info").Inc()
		case monitor.ClassError:
			NoticesTotal.WithLabelValues("error").Inc()
		}
	})
}

// MonitorObserver tracks the size of an AggregationStore.
func MonitorObserver() monitor.Observer[monitor.MonitorEntry] {
	return monitor.ObserverFunc[monitor.MonitorEntry](func(c monitor.Change[monitor.MonitorEntry]) {
		MonitorSignals.Set(float64(c.Size))
	})
}

// SetConnected updates ConnectionStatus.
func SetConnected(connected bool) {
	if connected {
		ConnectionStatus.Set(1)
		return
	}
	ConnectionStatus.Set(0)
}
