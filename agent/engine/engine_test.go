// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg     Config
		host    Host
		wantErr bool
	}{
		"defaults": {
			cfg: Config{Features: AllFeatures(), BaselineInterval: 10 * time.Second},
		},
		"negative interval": {
			cfg:     Config{Features: AllFeatures(), BaselineInterval: -time.Second},
			wantErr: true,
		},
		"invalid world pattern": {
			cfg:     Config{Features: AllFeatures(), Worlds: []string{"world["}},
			wantErr: true,
		},
		"with host scans": {
			cfg:  Config{Features: AllFeatures(), BaselineInterval: time.Second},
			host: Host{ScanChunks: func() (map[worldkey.World]int64, error) { return nil, nil }},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := New(test.cfg, test.host)

			if test.wantErr {
				assert.Error(t, err)
				assert.Nil(t, e)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, e)
			assert.Equal(t, snapshot.Empty(), e.Snapshot())
		})
	}
}

func TestEngine_Events(t *testing.T) {
	tests := map[string]struct {
		features Features
		worlds   []string
		check    func(t *testing.T, s *snapshot.Snapshot)
	}{
		"default features": {
			features: AllFeatures(),
			check: func(t *testing.T, s *snapshot.Snapshot) {
				byWorld, ok := s.EntitiesByWorld()
				require.True(t, ok)
				assert.Equal(t, map[string]int64{"overworld": 2, "nether": 1}, byWorld)

				_, ok = s.EntitiesByType()
				assert.False(t, ok)
				_, ok = s.EntitiesByChunk()
				assert.False(t, ok)

				chunks, ok := s.ChunksByWorld()
				require.True(t, ok)
				assert.Equal(t, map[string]int64{"overworld": 1, "nether": 1}, chunks)

				exclusive, ok := s.ExclusiveChunks()
				require.True(t, ok)
				assert.Equal(t, int64(1), exclusive)

				assert.Equal(t, snapshot.Totals{
					EntitiesAdded:   4,
					EntitiesRemoved: 1,
					ChunksLoaded:    3,
					ChunksUnloaded:  1,
				}, s.Totals())
			},
		},
		"light mode adds types": {
			features: Features{Entities: true, EntitiesByChunk: ChunkModeLight},
			check: func(t *testing.T, s *snapshot.Snapshot) {
				byType, ok := s.EntitiesByType()
				require.True(t, ok)
				assert.Equal(t, map[string]int64{"zombie": 1, "cow": 1, "ghast": 1}, byType)

				_, ok = s.EntitiesByChunk()
				assert.False(t, ok)
				_, ok = s.ChunksByWorld()
				assert.False(t, ok)
				_, ok = s.ExclusiveChunks()
				assert.False(t, ok)
			},
		},
		"heavy mode adds chunks": {
			features: Features{Entities: true, EntitiesByChunk: ChunkModeHeavy},
			check: func(t *testing.T, s *snapshot.Snapshot) {
				byChunk, ok := s.EntitiesByChunk()
				require.True(t, ok)
				assert.Equal(t, map[worldkey.ChunkEntity]int64{
					{World: "overworld", X: 0, Z: 1, Type: "zombie"}: 1,
					{World: "overworld", X: 2, Z: 2, Type: "cow"}:    1,
					{World: "nether", X: -1, Z: 3, Type: "ghast"}:    1,
				}, byChunk)
			},
		},
		"heavy mode without entities is off": {
			features: Features{EntitiesByChunk: ChunkModeHeavy, Chunks: true},
			check: func(t *testing.T, s *snapshot.Snapshot) {
				_, ok := s.EntitiesByWorld()
				assert.False(t, ok)
				_, ok = s.EntitiesByType()
				assert.False(t, ok)
				_, ok = s.EntitiesByChunk()
				assert.False(t, ok)
				assert.Zero(t, s.Totals().EntitiesAdded)
			},
		},
		"unselected worlds are dropped": {
			features: AllFeatures(),
			worlds:   []string{"over*"},
			check: func(t *testing.T, s *snapshot.Snapshot) {
				byWorld, _ := s.EntitiesByWorld()
				assert.Equal(t, map[string]int64{"overworld": 2}, byWorld)

				chunks, _ := s.ChunksByWorld()
				assert.Equal(t, map[string]int64{"overworld": 1}, chunks)

				exclusive, _ := s.ExclusiveChunks()
				assert.Equal(t, int64(0), exclusive)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := New(Config{Features: test.features, Worlds: test.worlds, BaselineInterval: 10 * time.Second}, Host{})
			require.NoError(t, err)

			fireEvents(e)

			test.check(t, e.Tick(t0))
		})
	}
}

func TestEngine_ReconcileAgainstScans(t *testing.T) {
	var mu sync.Mutex
	scan := map[worldkey.World]int64{"overworld": 10}
	scanErr := error(nil)

	host := Host{
		ScanEntities: func() (map[worldkey.World]int64, error) {
			mu.Lock()
			defer mu.Unlock()
			if scanErr != nil {
				return nil, scanErr
			}
			out := make(map[worldkey.World]int64, len(scan))
			for k, v := range scan {
				out[k] = v
			}
			return out, nil
		},
	}

	e, err := New(Config{Features: AllFeatures(), BaselineInterval: 10 * time.Second}, host)
	require.NoError(t, err)
	e.now = func() time.Time { return t0 }

	e.Init()
	assert.Equal(t, int64(10), entities(t, e.Tick(t0))["overworld"])

	for i := 0; i < 3; i++ {
		e.EntityAdded(Entity{World: "overworld", Type: "zombie"})
	}
	e.EntityRemoved(Entity{World: "overworld", Type: "zombie"})
	assert.Equal(t, int64(12), entities(t, e.Tick(t0.Add(5*time.Second)))["overworld"])

	mu.Lock()
	scan = map[worldkey.World]int64{"overworld": 5}
	mu.Unlock()
	assert.Equal(t, int64(5), entities(t, e.Tick(t0.Add(10*time.Second)))["overworld"])

	mu.Lock()
	scanErr = errors.New("world locked")
	mu.Unlock()
	e.EntityAdded(Entity{World: "overworld", Type: "zombie"})
	assert.Equal(t, int64(6), entities(t, e.Tick(t0.Add(20*time.Second)))["overworld"])

	mu.Lock()
	scanErr = nil
	mu.Unlock()
	e.EntityAdded(Entity{World: "overworld", Type: "zombie"})
	assert.Equal(t, int64(7), entities(t, e.Tick(t0.Add(25*time.Second)))["overworld"], "not due yet")
	assert.Equal(t, int64(5), entities(t, e.Tick(t0.Add(30*time.Second)))["overworld"])
}

func TestEngine_EntityEventsAvailableSkipsEntityScans(t *testing.T) {
	entityScans, chunkScans := 0, 0
	host := Host{
		ScanEntities: func() (map[worldkey.World]int64, error) {
			entityScans++
			return map[worldkey.World]int64{"overworld": 1}, nil
		},
		ScanChunks: func() (map[worldkey.World]int64, error) {
			chunkScans++
			return map[worldkey.World]int64{"overworld": 9}, nil
		},
	}

	e, err := New(Config{Features: AllFeatures(), BaselineInterval: 10 * time.Second}, host)
	require.NoError(t, err)
	e.SetEntityEventsAvailable(true)

	e.EntityAdded(Entity{World: "nether", Type: "ghast"})
	s := e.Tick(t0)

	assert.Equal(t, 0, entityScans)
	assert.Equal(t, 1, chunkScans)
	assert.Equal(t, map[string]int64{"nether": 1}, entities(t, s))
}

func TestEngine_WorldSelectorFiltersTypeScan(t *testing.T) {
	perWorld := map[string]map[worldkey.EntityType]int64{
		"world":        {"zombie": 1},
		"world_nether": {"zombie": 3, "ghast": 2},
	}
	host := Host{
		ScanEntities: func() (map[worldkey.World]int64, error) {
			return map[worldkey.World]int64{"world": 1, "world_nether": 5}, nil
		},
		ScanEntityTypes: func(match func(string) bool) (map[worldkey.EntityType]int64, error) {
			out := make(map[worldkey.EntityType]int64)
			for world, types := range perWorld {
				if !match(world) {
					continue
				}
				for typ, n := range types {
					out[typ] += n
				}
			}
			return out, nil
		},
	}

	f := AllFeatures()
	f.EntitiesByChunk = ChunkModeLight

	e, err := New(Config{Features: f, BaselineInterval: 10 * time.Second, Worlds: []string{"world"}}, host)
	require.NoError(t, err)
	e.now = func() time.Time { return t0 }

	e.Init()
	s := e.Tick(t0)
	assert.Equal(t, map[string]int64{"world": 1}, entities(t, s))
	byType, ok := s.EntitiesByType()
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"zombie": 1}, byType)

	e.EntityAdded(Entity{World: "world_nether", Type: "ghast"})
	e.EntityAdded(Entity{World: "world", Type: "zombie"})
	byType, _ = e.Tick(t0.Add(5 * time.Second)).EntitiesByType()
	assert.Equal(t, map[string]int64{"zombie": 2}, byType)

	byType, _ = e.Tick(t0.Add(10 * time.Second)).EntitiesByType()
	assert.Equal(t, map[string]int64{"zombie": 1}, byType)
}

func TestEngine_InitResetsObservers(t *testing.T) {
	host := Host{
		ScanObservers: func() (map[viewers.ChunkKey]int, error) {
			return map[viewers.ChunkKey]int{
				{World: "overworld", X: 0, Z: 0}: 1,
				{World: "overworld", X: 0, Z: 1}: 2,
				{World: "the_end", X: 0, Z: 0}:   1,
			}, nil
		},
	}

	e, err := New(Config{Features: AllFeatures(), Worlds: []string{"overworld"}}, host)
	require.NoError(t, err)

	e.Init()
	exclusive, _ := e.Tick(t0).ExclusiveChunks()
	assert.Equal(t, int64(1), exclusive)

	e.ObserverLeave(viewers.ChunkKey{World: "overworld", X: 0, Z: 1})
	exclusive, _ = e.Tick(t0.Add(time.Second)).ExclusiveChunks()
	assert.Equal(t, int64(2), exclusive)
}

func TestEngine_Scalars(t *testing.T) {
	players := int64(6)
	hostSampler := snapshot.SamplerFunc(func() (snapshot.Sample, error) {
		return snapshot.Sample{PlayersOnline: &players, Source: "host"}, nil
	})
	rcon := snapshot.SamplerFunc(func() (snapshot.Sample, error) {
		return snapshot.Sample{TPS: []float64{19.8, 19.9, 20}, Source: "rcon"}, nil
	})

	tests := map[string]struct {
		features Features
		wantTPS  bool
		wantMSPT bool
	}{
		"tps and mspt enabled":  {features: AllFeatures(), wantTPS: true, wantMSPT: true},
		"tps and mspt disabled": {features: Features{Tick: true, Entities: true}},
		"tick disabled":         {features: Features{TPSMSPT: true}, wantTPS: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			e, err := New(Config{Features: test.features, Sampler: rcon}, Host{Sampler: hostSampler})
			require.NoError(t, err)

			e.ticks.Record(40 * time.Millisecond)
			e.TickStarted()
			e.TickEnded()

			s := e.Tick(t0)

			assert.Equal(t, int64(6), s.PlayersOnline())
			_, ok := s.TPS()
			assert.Equal(t, test.wantTPS, ok)
			_, ok = s.MSPTAvg()
			assert.Equal(t, test.wantMSPT, ok)
			_, ok = s.MSPTP95()
			assert.Equal(t, test.wantMSPT, ok)
		})
	}
}

func TestEngine_PanickingSamplerKeepsHostScalars(t *testing.T) {
	players := int64(3)
	host := snapshot.SamplerFunc(func() (snapshot.Sample, error) {
		return snapshot.Sample{PlayersOnline: &players, Source: "sim"}, nil
	})
	rcon := snapshot.SamplerFunc(func() (snapshot.Sample, error) { panic("rcon: nil connection") })

	e, err := New(Config{Features: AllFeatures(), Sampler: rcon}, Host{Sampler: host})
	require.NoError(t, err)

	var s *snapshot.Snapshot
	require.NotPanics(t, func() { s = e.Tick(t0) })

	assert.Equal(t, int64(3), s.PlayersOnline())
	assert.Equal(t, "sim", s.ScalarSource())
}

func TestEngine_ChunkEntityKeysPrunedAtZero(t *testing.T) {
	e, err := New(Config{Features: Features{Entities: true, EntitiesByChunk: ChunkModeHeavy}}, Host{})
	require.NoError(t, err)
	e.SetEntityEventsAvailable(true)

	for x := int32(0); x < 64; x++ {
		ent := Entity{World: "overworld", Type: "zombie", X: x, Z: -x}
		e.EntityAdded(ent)
		e.EntityRemoved(ent)
	}
	e.EntityAdded(Entity{World: "overworld", Type: "cow", X: 3, Z: 4})

	s := e.Tick(t0)

	byChunk, ok := s.EntitiesByChunk()
	require.True(t, ok)
	assert.Equal(t, map[worldkey.ChunkEntity]int64{
		{World: "overworld", X: 3, Z: 4, Type: "cow"}: 1,
	}, byChunk)
	assert.Equal(t, 1, e.entitiesByChunk.Len())
}

func TestEngine_ConcurrentEventsAndTicks(t *testing.T) {
	e, err := New(Config{Features: Features{Entities: true, EntitiesByChunk: ChunkModeHeavy, Chunks: true}}, Host{})
	require.NoError(t, err)

	const workers = 8
	const perWorker = 500

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ent := Entity{World: "overworld", Type: "zombie", X: int32(i % 4)}
				e.EntityAdded(ent)
				e.ChunkLoaded("overworld")
				e.ObserverEnter(viewers.ChunkKey{World: "overworld", X: int32(i % 16)})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			byWorld, _ := e.Tick(t0.Add(time.Duration(i) * time.Second)).EntitiesByWorld()
			for _, v := range byWorld {
				assert.GreaterOrEqual(t, v, int64(0))
			}
		}
	}()

	wg.Wait()
	<-done

	s := e.Tick(t0.Add(time.Hour))
	assert.Equal(t, int64(workers*perWorker), entities(t, s)["overworld"])
	chunks, _ := s.ChunksByWorld()
	assert.Equal(t, int64(workers*perWorker), chunks["overworld"])
	assert.Equal(t, e.viewers.Recount(), e.viewers.Exclusive())
}

func fireEvents(e *Engine) {
	e.EntityAdded(Entity{World: "overworld", Type: "zombie", X: 0, Z: 0})
	e.EntityAdded(Entity{World: "overworld", Type: "cow", X: 2, Z: 2})
	e.EntityAdded(Entity{World: "nether", Type: "ghast", X: -1, Z: 3})
	e.EntityRemoved(Entity{World: "overworld", Type: "zombie", X: 0, Z: 0})
	e.EntityAdded(Entity{World: "overworld", Type: "zombie", X: 0, Z: 1})
	e.EntityAdded(Entity{World: "", Type: "zombie"})

	e.ChunkLoaded("overworld")
	e.ChunkLoaded("nether")
	e.ChunkLoaded("nether")
	e.ChunkUnloaded("nether")

	e.ObserverEnter(viewers.ChunkKey{World: "nether", X: 0, Z: 0})
	e.ObserverEnter(viewers.ChunkKey{World: "nether", X: 0, Z: 1})
	e.ObserverEnter(viewers.ChunkKey{World: "nether", X: 0, Z: 1})
}

func entities(t *testing.T, s *snapshot.Snapshot) map[string]int64 {
	t.Helper()
	m, ok := s.EntitiesByWorld()
	require.True(t, ok)
	return m
}
