// Package timing provides per-request phase instrumentation for the HTTP
// server façade (C9), an ambient enrichment beyond spec's bare atomic
// counters. Adapted from the teacher's client-side DNS/TCP/TLS/TTFB timer
// into the server-side phases a service loop actually passes through:
// waiting for data, parsing the request, running the handler, and emitting
// the response.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures one request's phase durations.
type Metrics struct {
	WaitForData time.Duration `json:"wait_for_data"`
	Parse       time.Duration `json:"parse"`
	Handle      time.Duration `json:"handle"`
	Emit        time.Duration `json:"emit"`
	Total       time.Duration `json:"total"`
}

// Timer measures one request's phases; Reset rearms it for another request.
type Timer struct {
	start       time.Time
	waitStart   time.Time
	waitEnd     time.Time
	parseStart  time.Time
	parseEnd    time.Time
	handleStart time.Time
	handleEnd   time.Time
	emitStart   time.Time
	emitEnd     time.Time
}

// NewTimer starts a new timing session.
func NewTimer() *Timer {
	t := &Timer{}
	t.Reset()
	return t
}

// Reset rearms the timer for the next request on a persistent connection.
func (t *Timer) Reset() {
	*t = Timer{start: time.Now()}
}

func (t *Timer) StartWait()   { t.waitStart = time.Now() }
func (t *Timer) EndWait()     { t.waitEnd = time.Now() }
func (t *Timer) StartParse()  { t.parseStart = time.Now() }
func (t *Timer) EndParse()    { t.parseEnd = time.Now() }
func (t *Timer) StartHandle() { t.handleStart = time.Now() }
func (t *Timer) EndHandle()   { t.handleEnd = time.Now() }
func (t *Timer) StartEmit()   { t.emitStart = time.Now() }
func (t *Timer) EndEmit()     { t.emitEnd = time.Now() }

// GetMetrics returns the durations measured so far; phases never started
// report zero.
func (t *Timer) GetMetrics() Metrics {
	m := Metrics{Total: time.Since(t.start)}
	if !t.waitStart.IsZero() && !t.waitEnd.IsZero() {
		m.WaitForData = t.waitEnd.Sub(t.waitStart)
	}
	if !t.parseStart.IsZero() && !t.parseEnd.IsZero() {
		m.Parse = t.parseEnd.Sub(t.parseStart)
	}
	if !t.handleStart.IsZero() && !t.handleEnd.IsZero() {
		m.Handle = t.handleEnd.Sub(t.handleStart)
	}
	if !t.emitStart.IsZero() && !t.emitEnd.IsZero() {
		m.Emit = t.emitEnd.Sub(t.emitStart)
	}
	return m
}

// String renders the metrics for log lines.
func (m Metrics) String() string {
	return fmt.Sprintf("wait=%v parse=%v handle=%v emit=%v total=%v",
		m.WaitForData, m.Parse, m.Handle, m.Emit, m.Total)
}
