// Package metrics exposes capture counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler for reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// CaptureMetrics are updated by the capture session
type CaptureMetrics struct {
	PacketsTotal    prometheus.Counter
	BytesTotal      prometheus.Counter
	ReceiveTimeouts prometheus.Counter
	ProtocolErrors  *prometheus.CounterVec // labels: reason
	CommandsTotal   *prometheus.CounterVec // labels: command, result=ok|error
	LastRSSI        prometheus.Gauge
	LastLQI         prometheus.Gauge
	Sniffing        prometheus.Gauge
}

// NewCaptureMetrics registers and returns the capture metrics.
// A nil registry yields working but unregistered collectors.
func NewCaptureMetrics(reg prometheus.Registerer) *CaptureMetrics {
	m := &CaptureMetrics{
		PacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccsniffer_packets_total",
			Help: "Captured IEEE 802.15.4 frames.",
		}),
		BytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccsniffer_payload_bytes_total",
			Help: "Radio payload bytes captured.",
		}),
		ReceiveTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccsniffer_receive_timeouts_total",
			Help: "Receive cycles that ended without a frame.",
		}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccsniffer_protocol_errors_total",
			Help: "Malformed device responses by reason.",
		}, []string{"reason"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccsniffer_commands_total",
			Help: "Commands sent to the sniffer by result.",
		}, []string{"command", "result"}),
		LastRSSI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ccsniffer_last_rssi_dbm",
			Help: "RSSI of the most recent frame.",
		}),
		LastLQI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ccsniffer_last_lqi",
			Help: "LQI of the most recent frame.",
		}),
		Sniffing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ccsniffer_sniffing",
			Help: "1 while the sniffer delivers frames.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PacketsTotal, m.BytesTotal, m.ReceiveTimeouts, m.ProtocolErrors,
			m.CommandsTotal, m.LastRSSI, m.LastLQI, m.Sniffing)
	}
	return m
}

// ObserveCommand counts one command exchange
func (m *CaptureMetrics) ObserveCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommandsTotal.WithLabelValues(command, result).Inc()
}

// ObservePacket records one captured frame
func (m *CaptureMetrics) ObservePacket(rssi int8, lqi uint8, payloadLen int) {
	m.PacketsTotal.Inc()
	m.BytesTotal.Add(float64(payloadLen))
	m.LastRSSI.Set(float64(rssi))
	m.LastLQI.Set(float64(lqi))
}
