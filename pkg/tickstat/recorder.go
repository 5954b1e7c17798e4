// SPDX-License-Identifier: GPL-3.0-or-later

// Package tickstat records server tick durations and derives MSPT figures.
package tickstat

import (
	"math"
	"slices"
	"sync"
	"time"
)

// DefaultWindow is the number of most recent ticks kept.
const DefaultWindow = 100

// Recorder keeps a ring of recent tick durations.
type Recorder struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	ring    []time.Duration
	next    int
	filled  bool
}

func New(window int) *Recorder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{
		now:  time.Now,
		ring: make([]time.Duration, window),
	}
}

// Start marks the beginning of a tick.
func (r *Recorder) Start() {
	r.mu.Lock()
	r.started = r.now()
	r.mu.Unlock()
}

// End closes the tick opened by Start. Without a matching Start it does nothing.
func (r *Recorder) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started.IsZero() {
		return
	}
	r.record(r.now().Sub(r.started))
	r.started = time.Time{}
}

// Record adds one tick duration.
func (r *Recorder) Record(d time.Duration) {
	r.mu.Lock()
	r.record(d)
	r.mu.Unlock()
}

// MSPT returns the average and the 95th percentile of the recorded ticks in milliseconds.
// ok is false until at least one tick has been recorded.
func (r *Recorder) MSPT() (avg, p95 float64, ok bool) {
	r.mu.Lock()
	n := r.next
	if r.filled {
		n = len(r.ring)
	}
	durations := slices.Clone(r.ring[:n])
	r.mu.Unlock()

	if len(durations) == 0 {
		return 0, 0, false
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	avg = toMillis(sum) / float64(len(durations))

	return avg, percentile95(durations), true
}

func (r *Recorder) record(d time.Duration) {
	if d < 0 {
		d = 0
	}
	r.ring[r.next] = d
	r.next++
	if r.next == len(r.ring) {
		r.next = 0
		r.filled = true
	}
}

func percentile95(durations []time.Duration) float64 {
	slices.Sort(durations)

	idx := int(math.Ceil(0.95*float64(len(durations)))) - 1
	idx = max(0, min(idx, len(durations)-1))

	return toMillis(durations[idx])
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
