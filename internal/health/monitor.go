package health

import (
	"sync"
	"time"
)

// DefaultWindow is the number of recent settled requests tracked for the
// response-time and outcome windows.
const DefaultWindow = 100

// Monitor accumulates response-time samples and success/error counters for
// every settled request. It is observability-only: nothing in the request
// path reads it to make decisions.
//
// All exported methods are safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	window   int
	samples  []time.Duration // circular window of response times, newest last
	outcomes []bool          // circular window of outcomes, newest last

	successCount uint64
	errorCount   uint64

	lastError     string
	lastErrorAt   time.Time
	lastSuccessAt time.Time

	now func() time.Time // injectable for deterministic tests
}

// Snapshot is a point-in-time copy of the monitor's state.
type Snapshot struct {
	SuccessCount uint64 `json:"success_count"`
	ErrorCount   uint64 `json:"error_count"`

	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	LastSuccessAt time.Time `json:"last_success_at,omitempty"`

	// Derived from the bounded windows, not the lifetime counters.
	SampleCount   int     `json:"sample_count"`
	AvgResponseMs float64 `json:"avg_response_ms"`
	MaxResponseMs float64 `json:"max_response_ms"`

	// RecentErrorRate is the error fraction (0–1) over the outcome window.
	RecentErrorRate float64 `json:"recent_error_rate"`
}

// NewMonitor returns a Monitor tracking at most window recent samples.
// A non-positive window falls back to DefaultWindow.
func NewMonitor(window int) *Monitor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Monitor{
		window: window,
		now:    time.Now,
	}
}

// RecordSuccess records one successfully settled request.
func (m *Monitor) RecordSuccess(elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(elapsed, true)
	m.successCount++
	m.lastSuccessAt = m.now()
}

// RecordError records one request that settled with an error (timeout or
// worker-reported failure). msg is kept as the last observed error.
func (m *Monitor) RecordError(elapsed time.Duration, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.push(elapsed, false)
	m.errorCount++
	m.lastError = msg
	m.lastErrorAt = m.now()
}

// Reset clears all counters, windows and timestamps.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.outcomes = nil
	m.successCount = 0
	m.errorCount = 0
	m.lastError = ""
	m.lastErrorAt = time.Time{}
	m.lastSuccessAt = time.Time{}
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		SuccessCount:  m.successCount,
		ErrorCount:    m.errorCount,
		LastError:     m.lastError,
		LastErrorAt:   m.lastErrorAt,
		LastSuccessAt: m.lastSuccessAt,
		SampleCount:   len(m.samples),
	}

	if len(m.samples) > 0 {
		var total, max time.Duration
		for _, d := range m.samples {
			total += d
			if d > max {
				max = d
			}
		}
		s.AvgResponseMs = float64(total.Milliseconds()) / float64(len(m.samples))
		s.MaxResponseMs = float64(max.Milliseconds())
	}

	if len(m.outcomes) > 0 {
		var errs int
		for _, ok := range m.outcomes {
			if !ok {
				errs++
			}
		}
		s.RecentErrorRate = float64(errs) / float64(len(m.outcomes))
	}

	return s
}

func (m *Monitor) push(elapsed time.Duration, ok bool) {
	if len(m.samples) >= m.window {
		m.samples = m.samples[1:]
	}
	m.samples = append(m.samples, elapsed)

	if len(m.outcomes) >= m.window {
		m.outcomes = m.outcomes[1:]
	}
	m.outcomes = append(m.outcomes, ok)
}
