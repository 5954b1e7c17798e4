// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
)

func TestEngine_ListenersScenarios(t *testing.T) {
	tests := map[string]struct {
		run func(t *testing.T, e *Engine)
	}{
		"notified in subscription order with the published snapshot": {
			run: func(t *testing.T, e *Engine) {
				var order []string
				var got []*snapshot.Snapshot

				e.Subscribe(ListenerFunc(func(s *snapshot.Snapshot) {
					order = append(order, "first")
					got = append(got, s)
					assert.Same(t, s, e.Snapshot(), "published before notification")
				}))
				e.Subscribe(ListenerFunc(func(s *snapshot.Snapshot) {
					order = append(order, "second")
					got = append(got, s)
				}))

				s := e.Tick(t0)

				assert.Equal(t, []string{"first", "second"}, order)
				require.Len(t, got, 2)
				assert.Same(t, s, got[0])
				assert.Same(t, s, got[1])
			},
		},
		"panicking listener does not stop the others": {
			run: func(t *testing.T, e *Engine) {
				calls := 0
				e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) { panic("exporter bug") }))
				e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) { calls++ }))

				var s *snapshot.Snapshot
				require.NotPanics(t, func() { s = e.Tick(t0) })

				assert.Equal(t, 1, calls)
				assert.Same(t, s, e.Snapshot())
			},
		},
		"unsubscribed listener is not notified": {
			run: func(t *testing.T, e *Engine) {
				calls := 0
				sub := e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) { calls++ }))

				e.Tick(t0)
				assert.True(t, e.Unsubscribe(sub))
				assert.False(t, e.Unsubscribe(sub))
				e.Tick(t0.Add(time.Second))

				assert.Equal(t, 1, calls)
			},
		},
		"listener may unsubscribe itself": {
			run: func(t *testing.T, e *Engine) {
				calls := 0
				var sub Subscription
				sub = e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) {
					calls++
					e.Unsubscribe(sub)
				}))

				e.Tick(t0)
				e.Tick(t0.Add(time.Second))

				assert.Equal(t, 1, calls)
			},
		},
		"snapshots are replaced every tick": {
			run: func(t *testing.T, e *Engine) {
				first := e.Tick(t0)
				e.ChunkLoaded("overworld")
				second := e.Tick(t0.Add(time.Second))

				assert.Greater(t, second.Seq(), first.Seq())
				assert.Same(t, second, e.Snapshot())

				chunks, _ := first.ChunksByWorld()
				assert.Empty(t, chunks, "older snapshot is unchanged")
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := New(Config{Features: AllFeatures()}, Host{})
			require.NoError(t, err)

			test.run(t, e)
		})
	}
}

func TestSubscription_String(t *testing.T) {
	e, err := New(Config{}, Host{})
	require.NoError(t, err)

	a := e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) {}))
	b := e.Subscribe(ListenerFunc(func(*snapshot.Snapshot) {}))

	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 36)
}
