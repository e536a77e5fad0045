package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics holds in-process counters and gauges for the tracker:
// poll ticks, poll failures, history refreshes and outbound request
// outcomes. There is no exposition endpoint; snapshots are rendered
// on demand (uploadctl -stats) and logged at shutdown.
type Metrics struct {
	mu sync.RWMutex

	// Request metrics: "METHOD path" -> count / cumulative duration
	requestCount    map[string]uint64
	requestDuration map[string]time.Duration
	requestErrors   map[string]uint64 // "METHOD path:status_class" -> count

	counters map[string]uint64
	gauges   map[string]float64

	startTime time.Time
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]uint64),
		requestDuration: make(map[string]time.Duration),
		requestErrors:   make(map[string]uint64),
		counters:        make(map[string]uint64),
		gauges:          make(map[string]float64),
		startTime:       time.Now(),
	}
}

// global metrics instance
var defaultMetrics = New()

// Default returns the default metrics instance
func Default() *Metrics {
	return defaultMetrics
}

// RecordRequest records an outbound request outcome
func (m *Metrics) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	key := fmt.Sprintf("%s %s", method, path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount[key]++
	m.requestDuration[key] += duration

	if statusCode >= 400 {
		errKey := fmt.Sprintf("%s:%dxx", key, statusCode/100)
		m.requestErrors[errKey]++
	}
}

// IncrCounter increments a named counter by one
func (m *Metrics) IncrCounter(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name]++
}

// SetGauge sets a named gauge value
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// Counter returns the current value of a counter
func (m *Metrics) Counter(name string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[name]
}

// Gauge returns the current value of a gauge
func (m *Metrics) Gauge(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[name]
}

// Snapshot renders current metrics as a human-readable block
func (m *Metrics) Snapshot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "uptime: %s\n", time.Since(m.startTime).Round(time.Second))

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %d\n", name, m.counters[name])
	}

	names = names[:0]
	for name := range m.gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %g\n", name, m.gauges[name])
	}

	names = names[:0]
	for key := range m.requestCount {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		count := m.requestCount[key]
		avg := time.Duration(0)
		if count > 0 {
			avg = m.requestDuration[key] / time.Duration(count)
		}
		fmt.Fprintf(&b, "%s: %d requests, avg %s\n", key, count, avg.Round(time.Millisecond))
	}

	return b.String()
}
