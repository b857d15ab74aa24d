package tracker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_EvictsOldestFirst(t *testing.T) {
	const capacity = 10
	w := NewWindow(capacity)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < capacity+5; i++ {
		w.Record(Outcome{
			Backend:   "primary",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Latency:   time.Millisecond,
			Success:   true,
		})
	}

	snap := w.Snapshot()
	require.Len(t, snap, capacity)

	// the first five were dropped; the survivors are in insertion order
	for i, o := range snap {
		assert.Equal(t, base.Add(time.Duration(i+5)*time.Second), o.Timestamp)
	}
}

func TestWindow_AverageIgnoresFailures(t *testing.T) {
	w := NewWindow(5)
	w.Record(Outcome{Latency: 100 * time.Millisecond, Success: true})
	w.Record(Outcome{Latency: 5 * time.Second, Success: false})
	w.Record(Outcome{Latency: 300 * time.Millisecond, Success: true})

	assert.Equal(t, 200*time.Millisecond, w.Average())

	stats := w.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, 2, stats.Successes)
	assert.Equal(t, 1, stats.Failures)
	assert.True(t, stats.Known())
}

func TestWindow_UnknownWithoutSuccesses(t *testing.T) {
	w := NewWindow(3)
	assert.Equal(t, UnknownLatency, w.Average())

	w.Record(Outcome{Latency: time.Millisecond, Success: false})
	assert.Equal(t, UnknownLatency, w.Average())
	assert.False(t, w.Stats().Known())
}

func TestWindow_AverageAfterWrap(t *testing.T) {
	w := NewWindow(2)
	w.Record(Outcome{Latency: 10 * time.Second, Success: true})
	w.Record(Outcome{Latency: 10 * time.Millisecond, Success: true})
	w.Record(Outcome{Latency: 30 * time.Millisecond, Success: true})

	assert.Equal(t, 20*time.Millisecond, w.Average())
}

func TestWindow_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewWindow(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewWindow(-4).Capacity())
}

func TestWindow_ConcurrentRecord(t *testing.T) {
	w := NewWindow(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				w.Record(Outcome{Latency: time.Millisecond, Success: true})
				_ = w.Average()
			}
		}()
	}
	wg.Wait()

	stats := w.Stats()
	assert.Equal(t, 50, stats.Size)
	assert.Equal(t, time.Millisecond, stats.Average)
}
