package gatekeeper

import (
	"time"

	"github.com/MrEthical07/gatekeeper/internal/metrics"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricSessionCreated
	MetricSessionValidated
	MetricSessionRejected
	MetricLogout
	MetricLogoutAll
	MetricSessionRevoked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricPermissionCheck
	MetricPermissionDenied
	MetricCheckFailed
	MetricUserRegistered
	MetricUserDeactivated
	MetricEmailVerificationRequest
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	// MetricValidateLatency is the only histogram: wall time of ValidateSession.
	MetricValidateLatency
	metricIDCount
)

// Metrics records engine counters. A nil *Metrics records nothing.
type Metrics struct {
	reg *metrics.Registry
}

// MetricsSnapshot is a point-in-time copy of every counter, plus the
// non-cumulative latency buckets when histograms are enabled.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// Sums holds the total observed duration per histogram.
	Sums map[MetricID]time.Duration
}

// NewMetrics returns a Metrics configured from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		reg: metrics.New(int(metricIDCount), cfg.Enabled, cfg.EnableLatencyHistograms, int(MetricValidateLatency)),
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.reg.Enabled()
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.reg.LatencyEnabled()
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil {
		return
	}
	m.reg.Inc(int(id))
}

// Observe records d against histogram id. Only MetricValidateLatency is
// recorded.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil {
		return
	}
	m.reg.Observe(int(id), d)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil {
		return 0
	}
	return m.reg.Value(int(id))
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			Sums:       map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
		Sums:       make(map[MetricID]time.Duration, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if m.reg.Timed(int(id)) {
			if b := m.reg.Buckets(int(id)); b != nil {
				s.Histograms[id] = b
				s.Sums[id] = m.reg.Sum(int(id))
			}
			continue
		}
		s.Counters[id] = m.reg.Value(int(id))
	}
	return s
}
