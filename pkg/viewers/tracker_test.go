// SPDX-License-Identifier: GPL-3.0-or-later

package viewers

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerScenarios(t *testing.T) {
	cell := ChunkKey{World: "w", X: 0, Z: 0}
	other := ChunkKey{World: "w", X: 1, Z: 0}

	tests := map[string]struct {
		run func(t *testing.T)
	}{
		"enter enter leave": {
			run: func(t *testing.T) {
				tr := New()

				tr.Enter(cell)
				assert.Equal(t, int64(1), tr.Exclusive())

				tr.Enter(cell)
				assert.Equal(t, int64(0), tr.Exclusive())
				assert.Equal(t, 2, tr.Viewers(cell))

				tr.Leave(cell)
				assert.Equal(t, 1, tr.Viewers(cell))
				assert.Equal(t, int64(1), tr.Exclusive())
			},
		},
		"double leave is idempotent": {
			run: func(t *testing.T) {
				tr := New()
				tr.Enter(cell)
				tr.Enter(other)

				tr.Leave(cell)
				require.Equal(t, int64(1), tr.Exclusive())

				tr.Leave(cell)
				assert.Equal(t, int64(1), tr.Exclusive())
				assert.Equal(t, 0, tr.Viewers(cell))
				assert.Equal(t, 1, tr.Len())
			},
		},
		"leave without enter is a no-op": {
			run: func(t *testing.T) {
				tr := New()
				tr.Leave(cell)

				assert.Equal(t, int64(0), tr.Exclusive())
				assert.Equal(t, 0, tr.Len())
			},
		},
		"multi stays multi until two viewers remain": {
			run: func(t *testing.T) {
				tr := New()
				tr.Enter(cell)
				tr.Enter(cell)
				tr.Enter(cell)
				require.Equal(t, int64(0), tr.Exclusive())

				tr.Leave(cell)
				assert.Equal(t, int64(0), tr.Exclusive())
				tr.Leave(cell)
				assert.Equal(t, int64(1), tr.Exclusive())
				tr.Leave(cell)
				assert.Equal(t, int64(0), tr.Exclusive())
				assert.Equal(t, 0, tr.Len())
			},
		},
		"reset recomputes the exclusive count": {
			run: func(t *testing.T) {
				tr := New()
				tr.Enter(cell)

				scan := map[ChunkKey]int{cell: 2, other: 1}
				scan[ChunkKey{World: "w", X: 5, Z: 5}] = 1
				scan[ChunkKey{World: "nether", X: 0}] = 0
				scan[ChunkKey{World: "nether", X: 1}] = -1
				tr.Reset(scan)

				assert.Equal(t, int64(2), tr.Exclusive())
				assert.Equal(t, 3, tr.Len())

				tr.Leave(cell)
				assert.Equal(t, int64(3), tr.Exclusive())
			},
		},
	}

	for name, test := range tests {
		t.Run(name, test.run)
	}
}

func TestTracker_ExclusiveMatchesRecount(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		tr := New()
		for i := 0; i < 2000; i++ {
			key := ChunkKey{World: "w", X: int32(r.Intn(6)), Z: int32(r.Intn(6))}
			if r.Intn(5) < 3 {
				tr.Enter(key)
			} else {
				tr.Leave(key)
			}
			require.Equal(t, tr.Recount(), tr.Exclusive(), "round %d step %d", round, i)
		}
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 1000; i++ {
				key := ChunkKey{World: "w", X: int32(r.Intn(4)), Z: int32(r.Intn(4))}
				tr.Enter(key)
				tr.Leave(key)
			}
		}(int64(w))
	}
	wg.Wait()

	assert.Equal(t, int64(0), tr.Exclusive())
	assert.Equal(t, 0, tr.Len())
	assert.Equal(t, tr.Recount(), tr.Exclusive())
}
