package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obdlink_responses_total",
		Help: "ELM327 responses terminated by the parser, by outcome",
	}, []string{"outcome"})

	FramesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "obdlink_frames_sent_total",
		Help: "Telemetry frames written to the link",
	})

	FramesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "obdlink_frames_received_total",
		Help: "Telemetry frames decoded and published by the receiver",
	})

	FramesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "obdlink_frames_rejected_total",
		Help: "Datagrams dropped by the receiver, by reason",
	}, []string{"reason"})

	RecordStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "obdlink_record_stale",
		Help: "1 when the receiver record is older than the staleness timeout",
	})

	BridgeInserts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "obdlink_bridge_inserts_total",
		Help: "Rows written to car_metrics",
	})
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Responses)
		prometheus.MustRegister(FramesSent)
		prometheus.MustRegister(FramesReceived)
		prometheus.MustRegister(FramesRejected)
		prometheus.MustRegister(RecordStale)
		prometheus.MustRegister(BridgeInserts)
	})
}
