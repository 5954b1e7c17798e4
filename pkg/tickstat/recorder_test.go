// SPDX-License-Identifier: GPL-3.0-or-later

package tickstat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_MSPT(t *testing.T) {
	tests := map[string]struct {
		window  int
		ticks   []time.Duration
		wantOK  bool
		wantAvg float64
		wantP95 float64
	}{
		"no ticks": {
			window: 10,
		},
		"single tick": {
			window:  10,
			ticks:   []time.Duration{40 * time.Millisecond},
			wantOK:  true,
			wantAvg: 40,
			wantP95: 40,
		},
		"p95 of twenty": {
			window:  100,
			ticks:   msRange(1, 20),
			wantOK:  true,
			wantAvg: 10.5,
			wantP95: 19,
		},
		"ring keeps the most recent ticks": {
			window:  4,
			ticks:   []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, ms(1), ms(2), ms(3), ms(4)},
			wantOK:  true,
			wantAvg: 2.5,
			wantP95: 4,
		},
		"negative durations count as zero": {
			window:  10,
			ticks:   []time.Duration{-ms(5), ms(10)},
			wantOK:  true,
			wantAvg: 5,
			wantP95: 10,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r := New(test.window)
			for _, d := range test.ticks {
				r.Record(d)
			}

			avg, p95, ok := r.MSPT()

			assert.Equal(t, test.wantOK, ok)
			assert.InDelta(t, test.wantAvg, avg, 1e-9)
			assert.InDelta(t, test.wantP95, p95, 1e-9)
		})
	}
}

func TestRecorder_StartEnd(t *testing.T) {
	r := New(0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.End()
	_, _, ok := r.MSPT()
	require.False(t, ok, "end without start")

	r.Start()
	now = now.Add(25 * time.Millisecond)
	r.End()
	r.End()

	avg, p95, ok := r.MSPT()
	require.True(t, ok)
	assert.InDelta(t, 25, avg, 1e-9)
	assert.InDelta(t, 25, p95, 1e-9)
	assert.Len(t, r.ring, DefaultWindow)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func msRange(from, to int) []time.Duration {
	var out []time.Duration
	for i := from; i <= to; i++ {
		out = append(out, ms(i))
	}
	return out
}
