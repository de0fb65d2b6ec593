package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics is a MetricsCollector backed by github.com/prometheus/client_golang,
// grounded on the admin surface pattern in the rustyguts-bken reference
// repo's APIServer, which exposes a promhttp handler alongside its other
// routes. Register it with a prometheus.Registerer (prometheus.DefaultRegisterer
// if nil) and pass the result to WithMetricsCollector; mount the registry's
// handler with the admin package to serve GET /metrics.
type PromMetrics struct {
	connections *prometheus.CounterVec
	commands    *prometheus.CounterVec
	commandDur  *prometheus.HistogramVec
	rooms       prometheus.Gauge
	roomMembers prometheus.Gauge
	transfers   *prometheus.CounterVec
	transferDur prometheus.Histogram
	queueWait   prometheus.Histogram
	bytesSent   prometheus.Counter
}

// NewPromMetrics constructs a PromMetrics and registers its collectors with
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PromMetrics{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "connections_total",
			Help:      "Accept-loop outcomes by reason.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		}, []string{"command", "outcome"}),
		commandDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatcore",
			Name:      "command_duration_seconds",
			Help:      "Command handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatcore",
			Name:      "rooms",
			Help:      "Current number of active rooms.",
		}),
		roomMembers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatcore",
			Name:      "room_members",
			Help:      "Current total room memberships.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "transfers_total",
			Help:      "Transfer worker deliveries by outcome.",
		}, []string{"outcome"}),
		transferDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatcore",
			Name:      "transfer_duration_seconds",
			Help:      "Time spent simulating a file transfer.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8},
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatcore",
			Name:      "upload_queue_wait_seconds",
			Help:      "Time from a sendfile request to the Transfer worker dequeuing it.",
			Buckets:   prometheus.DefBuckets,
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatcore",
			Name:      "transfer_bytes_total",
			Help:      "Total declared bytes across delivered transfers.",
		}),
	}

	reg.MustRegister(
		m.connections, m.commands, m.commandDur,
		m.rooms, m.roomMembers,
		m.transfers, m.transferDur, m.queueWait, m.bytesSent,
	)
	return m
}

func (m *PromMetrics) RecordConnection(accepted bool, reason string) {
	m.connections.WithLabelValues(reason).Inc()
	_ = accepted
}

func (m *PromMetrics) RecordCommand(cmd string, success bool, duration time.Duration) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.commands.WithLabelValues(cmd, outcome).Inc()
	m.commandDur.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (m *PromMetrics) RecordRoomCount(rooms, members int) {
	m.rooms.Set(float64(rooms))
	m.roomMembers.Set(float64(members))
}

func (m *PromMetrics) RecordTransfer(bytes int64, queueWait, transferDuration time.Duration, delivered bool) {
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	m.transfers.WithLabelValues(outcome).Inc()
	m.transferDur.Observe(transferDuration.Seconds())
	m.queueWait.Observe(queueWait.Seconds())
	if delivered {
		m.bytesSent.Add(float64(bytes))
	}
}
