// SPDX-License-Identifier: GPL-3.0-or-later

package sim

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/netdata/netdata/go/world.d.plugin/agent/engine"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

// Host exposes the world's scans and its own scalar measurements to the engine.
func (w *World) Host() engine.Host {
	return engine.Host{
		ScanEntities:        w.ScanEntities,
		ScanEntityTypes:     w.ScanEntityTypes,
		ScanEntitiesByChunk: w.ScanEntitiesByChunk,
		ScanChunks:          w.ScanChunks,
		ScanObservers:       w.ScanObservers,
		Sampler:             snapshot.SamplerFunc(w.Sample),
	}
}

func (w *World) ScanEntities() (map[worldkey.World]int64, error) {
	out := make(map[worldkey.World]int64)
	w.scanDims(func(d *dimension) func() {
		n := int64(len(d.entities))
		return func() { out[worldkey.World(d.name)] = n }
	})
	return out, nil
}

// ScanEntityTypes counts entity types in the worlds match accepts. A nil match accepts all.
func (w *World) ScanEntityTypes(match func(world string) bool) (map[worldkey.EntityType]int64, error) {
	out := make(map[worldkey.EntityType]int64)
	w.scanDims(func(d *dimension) func() {
		if match != nil && !match(d.name) {
			return func() {}
		}
		counts := make(map[string]int64)
		for _, e := range d.entities {
			counts[e.typ]++
		}
		return func() {
			for typ, n := range counts {
				out[worldkey.EntityType(typ)] += n
			}
		}
	})
	return out, nil
}

func (w *World) ScanEntitiesByChunk() (map[worldkey.ChunkEntity]int64, error) {
	out := make(map[worldkey.ChunkEntity]int64)
	w.scanDims(func(d *dimension) func() {
		counts := make(map[worldkey.ChunkEntity]int64)
		for _, e := range d.entities {
			counts[worldkey.ChunkEntity{World: d.name, X: e.pos.x, Z: e.pos.z, Type: e.typ}]++
		}
		return func() {
			for k, n := range counts {
				out[k] = n
			}
		}
	})
	return out, nil
}

func (w *World) ScanChunks() (map[worldkey.World]int64, error) {
	out := make(map[worldkey.World]int64)
	w.scanDims(func(d *dimension) func() {
		n := int64(len(d.viewers))
		return func() { out[worldkey.World(d.name)] = n }
	})
	return out, nil
}

func (w *World) ScanObservers() (map[viewers.ChunkKey]int, error) {
	out := make(map[viewers.ChunkKey]int)
	w.scanDims(func(d *dimension) func() {
		counts := make(map[viewers.ChunkKey]int, len(d.viewers))
		for c, n := range d.viewers {
			counts[chunkKey(d, c)] = n
		}
		return func() {
			for k, n := range counts {
				out[k] = n
			}
		}
	})
	return out, nil
}

// Sample reports players online and a TPS figure that degrades with the entity load.
func (w *World) Sample() (snapshot.Sample, error) {
	w.mu.RLock()
	players := int64(len(w.players))
	entities := w.entityCount()
	w.mu.RUnlock()

	tps := max(5, 20-float64(entities)/2000)

	return snapshot.Sample{
		PlayersOnline: &players,
		TPS:           []float64{tps, tps, tps},
		Source:        "sim",
	}, nil
}

// scanDims runs count for every dimension concurrently under the read lock and
// applies the returned merge functions one at a time.
func (w *World) scanDims(count func(*dimension) func()) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	merges := make(chan func(), len(w.dims))

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for _, d := range w.dims {
		p.Go(func() { merges <- count(d) })
	}
	p.Wait()
	close(merges)

	for merge := range merges {
		merge()
	}
}
