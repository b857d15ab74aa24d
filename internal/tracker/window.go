package tracker

import (
	"math"
	"sync"
	"time"
)

// DefaultCapacity is the number of outcomes a window keeps when none is configured.
const DefaultCapacity = 100

// UnknownLatency is reported when a backend has no successful history.
// It is the largest representable duration so it always ranks last.
const UnknownLatency = time.Duration(math.MaxInt64)

// Outcome is one attempt against a backend.
type Outcome struct {
	Backend   string
	Timestamp time.Time
	Latency   time.Duration
	Model     string
	Success   bool
	Error     string
}

// Stats summarises the contents of a window.
type Stats struct {
	Capacity  int
	Size      int
	Successes int
	Failures  int
	Average   time.Duration
}

// Known reports whether Average holds a real measurement.
func (s Stats) Known() bool {
	return s.Average != UnknownLatency
}

// Window is a fixed-capacity ring buffer of outcomes for a single backend.
// Every backend owns its own window so unrelated backends never share a lock.
type Window struct {
	mu   sync.Mutex
	buf  []Outcome
	next int
	size int
}

// NewWindow creates a window holding at most capacity outcomes.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]Outcome, capacity)}
}

// Record appends an outcome, overwriting the oldest one once the window is full.
func (w *Window) Record(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf[w.next] = o
	w.next = (w.next + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

// Average returns the mean latency of successful outcomes, or UnknownLatency.
func (w *Window) Average() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	avg, _ := w.average()
	return avg
}

// Snapshot returns the outcomes currently held, oldest first.
func (w *Window) Snapshot() []Outcome {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Outcome, 0, w.size)
	start := (w.next - w.size + len(w.buf)) % len(w.buf)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// Stats returns counters for the current contents.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	avg, successes := w.average()
	return Stats{
		Capacity:  len(w.buf),
		Size:      w.size,
		Successes: successes,
		Failures:  w.size - successes,
		Average:   avg,
	}
}

// Capacity returns the fixed size of the window.
func (w *Window) Capacity() int {
	return len(w.buf)
}

// average must be called with mu held.
func (w *Window) average() (time.Duration, int) {
	var total time.Duration
	successes := 0
	for i := 0; i < w.size; i++ {
		o := w.buf[i]
		if !o.Success {
			continue
		}
		total += o.Latency
		successes++
	}
	if successes == 0 {
		return UnknownLatency, 0
	}
	return total / time.Duration(successes), successes
}
