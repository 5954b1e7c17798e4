// SPDX-License-Identifier: GPL-3.0-or-later

package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	s := Empty()

	_, ok := s.EntitiesByWorld()
	assert.False(t, ok)
	_, ok = s.EntitiesByType()
	assert.False(t, ok)
	_, ok = s.EntitiesByChunk()
	assert.False(t, ok)
	_, ok = s.ChunksByWorld()
	assert.False(t, ok)
	_, ok = s.ExclusiveChunks()
	assert.False(t, ok)
	_, ok = s.TPS()
	assert.False(t, ok)
	_, ok = s.MSPTAvg()
	assert.False(t, ok)
	_, ok = s.MSPTP95()
	assert.False(t, ok)
	assert.Zero(t, s.PlayersOnline())
	assert.Zero(t, s.Seq())
	assert.Equal(t, Totals{}, s.Totals())
}

func TestSnapshot_AbsentVersusZero(t *testing.T) {
	zero := int64(0)
	s := New(Data{
		EntitiesByWorld: map[string]int64{},
		ExclusiveChunks: &zero,
	})

	byWorld, ok := s.EntitiesByWorld()
	assert.True(t, ok)
	assert.Empty(t, byWorld)

	total, ok := s.EntitiesTotal()
	assert.True(t, ok)
	assert.Zero(t, total)

	exclusive, ok := s.ExclusiveChunks()
	assert.True(t, ok)
	assert.Zero(t, exclusive)

	_, ok = s.ChunksByWorld()
	assert.False(t, ok)
	_, ok = s.ChunksTotal()
	assert.False(t, ok)
}

func TestSnapshot_DefensiveCopies(t *testing.T) {
	byWorld := map[string]int64{"overworld": 3}
	tps := []float64{20, 19.5, 19}
	avg := 12.5

	s := New(Data{Time: time.Unix(1, 0), Seq: 1, EntitiesByWorld: byWorld, TPS: tps, MSPTAvg: &avg})

	byWorld["overworld"] = 100
	tps[0] = 1
	avg = 99

	got, _ := s.EntitiesByWorld()
	require.Equal(t, map[string]int64{"overworld": 3}, got)
	gotTPS, _ := s.TPS()
	require.Equal(t, []float64{20, 19.5, 19}, gotTPS)
	gotAvg, _ := s.MSPTAvg()
	require.Equal(t, 12.5, gotAvg)

	got["overworld"] = 7
	gotTPS[1] = 0

	again, _ := s.EntitiesByWorld()
	assert.Equal(t, int64(3), again["overworld"])
	againTPS, _ := s.TPS()
	assert.Equal(t, 19.5, againTPS[1])
}

func TestSnapshot_Totals(t *testing.T) {
	s := New(Data{
		ChunksByWorld:   map[string]int64{"overworld": 10, "nether": 5},
		EntitiesByWorld: map[string]int64{"overworld": 2, "end": 1},
		PlayersOnline:   -1,
	})

	chunks, _ := s.ChunksTotal()
	entities, _ := s.EntitiesTotal()

	assert.Equal(t, int64(15), chunks)
	assert.Equal(t, int64(3), entities)
	assert.Zero(t, s.PlayersOnline())
}
