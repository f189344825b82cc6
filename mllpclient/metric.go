package mllpclient

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ChannelMetrics contains atomic metrics for a channel.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc, see Collectors.
type ChannelMetrics struct {
	// SentCount indicates the number of frames written.
	SentCount atomic.Uint64
	// AcknowledgedCount indicates the number of frames received.
	AcknowledgedCount atomic.Uint64
	// ErrorCount indicates the number of terminal errors.
	ErrorCount atomic.Uint64
	// TimeoutCount indicates the number of timed out connection attempts that were retried.
	TimeoutCount atomic.Uint64

	// ConnRetryGauge indicates the number of connection retries since the last successful connect.
	ConnRetryGauge atomic.Uint32
}

// Stats is a snapshot of the sent and acknowledged counters.
type Stats struct {
	Sent         uint64
	Acknowledged uint64
}

// Add returns the sum of s and other.
func (s Stats) Add(other Stats) Stats {
	return Stats{Sent: s.Sent + other.Sent, Acknowledged: s.Acknowledged + other.Acknowledged}
}

// Stats returns a snapshot of the sent and acknowledged counters.
func (m *ChannelMetrics) Stats() Stats {
	return Stats{Sent: m.SentCount.Load(), Acknowledged: m.AcknowledgedCount.Load()}
}

func (m *ChannelMetrics) incSentCount() uint64 {
	return m.SentCount.Add(1)
}

func (m *ChannelMetrics) incAcknowledgedCount() uint64 {
	return m.AcknowledgedCount.Add(1)
}

func (m *ChannelMetrics) incErrorCount() {
	m.ErrorCount.Add(1)
}

func (m *ChannelMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *ChannelMetrics) incConnRetryGauge() {
	m.ConnRetryGauge.Add(1)
}

func (m *ChannelMetrics) resetConnRetryGauge() {
	m.ConnRetryGauge.Store(0)
}

// Collectors returns prometheus collectors reading the metrics.
//
// The collectors are named <namespace>_channel_<metric> and carry labels as constant labels,
// so each channel registered on the same registry needs distinct label values.
func (m *ChannelMetrics) Collectors(namespace string, labels prometheus.Labels) []prometheus.Collector {
	counter := func(name, help string, value *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "channel",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(value.Load()) })
	}

	return []prometheus.Collector{
		counter("sent_total", "Number of HL7 frames written.", &m.SentCount),
		counter("acknowledged_total", "Number of acknowledgment frames received.", &m.AcknowledgedCount),
		counter("errors_total", "Number of channels closed by an error.", &m.ErrorCount),
		counter("timeouts_total", "Number of retried connection timeouts.", &m.TimeoutCount),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "channel",
			Name:        "connect_retries",
			Help:        "Number of connection retries since the last successful connect.",
			ConstLabels: labels,
		}, func() float64 { return float64(m.ConnRetryGauge.Load()) }),
	}
}
