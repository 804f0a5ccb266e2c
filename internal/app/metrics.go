package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks counters and timing for a benchmark run.
type Metrics struct {
	// Measurement timing
	measureCount   atomic.Uint64
	measureTotalNs atomic.Int64
	measureMinNs   atomic.Int64
	measureMaxNs   atomic.Int64

	// Result counts returned by measured requests
	resultTotal atomic.Uint64

	// Request failures that were skipped
	failureCount atomic.Uint64

	// Files processed
	fileCount atomic.Uint64

	// Start instant for run duration, as Unix nanoseconds so Reset and
	// Snapshot never race
	startNs atomic.Int64
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.startNs.Store(time.Now().UnixNano())
	// Initialize min to max int64 so the first sample is smaller
	m.measureMinNs.Store(1<<63 - 1)
	return m
}

// RecordMeasurement records the timing and result count of one cycle.
func (m *Metrics) RecordMeasurement(elapsed time.Duration, results int) {
	ns := elapsed.Nanoseconds()

	m.measureCount.Add(1)
	m.measureTotalNs.Add(ns)
	if results > 0 {
		m.resultTotal.Add(uint64(results))
	}

	// Update min (atomic compare-and-swap loop)
	for {
		old := m.measureMinNs.Load()
		if ns >= old {
			break
		}
		if m.measureMinNs.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.measureMaxNs.Load()
		if ns <= old {
			break
		}
		if m.measureMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordFailure records a request failure that was skipped.
func (m *Metrics) RecordFailure() {
	m.failureCount.Add(1)
}

// RecordFile records a processed input file.
func (m *Metrics) RecordFile() {
	m.fileCount.Add(1)
}

// Snapshot returns a point-in-time view of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	count := m.measureCount.Load()

	var avgNs int64
	if count > 0 {
		avgNs = m.measureTotalNs.Load() / int64(count)
	}

	minNs := m.measureMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}

	return MetricsSnapshot{
		Duration:         time.Since(time.Unix(0, m.startNs.Load())),
		MeasurementCount: count,
		AvgElapsedNs:     avgNs,
		MinElapsedNs:     minNs,
		MaxElapsedNs:     m.measureMaxNs.Load(),
		ResultTotal:      m.resultTotal.Load(),
		FailureCount:     m.failureCount.Load(),
		FileCount:        m.fileCount.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.measureCount.Store(0)
	m.measureTotalNs.Store(0)
	m.measureMinNs.Store(1<<63 - 1)
	m.measureMaxNs.Store(0)
	m.resultTotal.Store(0)
	m.failureCount.Store(0)
	m.fileCount.Store(0)
	m.startNs.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Duration         time.Duration
	MeasurementCount uint64
	AvgElapsedNs     int64
	MinElapsedNs     int64
	MaxElapsedNs     int64
	ResultTotal      uint64
	FailureCount     uint64
	FileCount        uint64
}

// AvgElapsedMs returns the average cycle time in milliseconds.
func (s MetricsSnapshot) AvgElapsedMs() float64 {
	return float64(s.AvgElapsedNs) / 1e6
}

// FailureRate returns the percentage of cycles that failed.
func (s MetricsSnapshot) FailureRate() float64 {
	total := s.MeasurementCount + s.FailureCount
	if total == 0 {
		return 0
	}
	return float64(s.FailureCount) / float64(total) * 100
}
