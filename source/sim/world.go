// SPDX-License-Identifier: GPL-3.0-or-later

// Package sim is an in-process game server: players walk around, chunks load
// around them and entities spawn and despawn in loaded chunks. It fires the
// matching events and answers full scans.
package sim

import (
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/netdata/netdata/go/world.d.plugin/agent/engine"
	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
)

var entityTypes = []string{"zombie", "skeleton", "creeper", "spider", "cow", "sheep", "pig", "item"}

type chunkPos struct{ x, z int32 }

type entity struct {
	typ string
	pos chunkPos
}

type dimension struct {
	name     string
	viewers  map[chunkPos]int
	entities []*entity
}

type player struct {
	dim *dimension
	pos chunkPos
}

// World is safe for concurrent use: Step mutates under a write lock and scans read under a read lock.
type World struct {
	*logger.Logger

	cfg Config
	rng *rand.Rand

	mu      sync.RWMutex
	dims    []*dimension
	players []*player
	sink    engine.Events

	dropped atomic.Int64
}

func New(cfg Config) (*World, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w := &World{
		Logger: logger.New().With(slog.String("component", "sim")),
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	for i := 0; i < cfg.Worlds; i++ {
		w.dims = append(w.dims, &dimension{
			name:    worldName(i),
			viewers: make(map[chunkPos]int),
		})
	}
	for i := 0; i < cfg.Players; i++ {
		p := &player{
			dim: w.dims[i%len(w.dims)],
			pos: chunkPos{x: int32(w.rng.Intn(33) - 16), z: int32(w.rng.Intn(33) - 16)},
		}
		w.players = append(w.players, p)
		w.enterView(p)
	}
	for i := 0; i < cfg.Entities && len(w.players) > 0; i++ {
		w.spawn()
	}

	return w, nil
}

// Attach sets the event sink. Events before Attach are not delivered; the
// initial state is meant to be picked up by the first scans.
func (w *World) Attach(sink engine.Events) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sink = sink
}

// Dropped returns the number of events deliberately not delivered.
func (w *World) Dropped() int64 {
	return w.dropped.Load()
}

// Step advances the world by one server tick.
func (w *World) Step() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sink != nil {
		w.sink.TickStarted()
		defer w.sink.TickEnded()
	}

	for _, p := range w.players {
		switch r := w.rng.Float64(); {
		case r < 0.02 && len(w.dims) > 1:
			w.leaveView(p)
			p.dim = w.dims[w.rng.Intn(len(w.dims))]
			w.enterView(p)
		case r < 0.5:
			w.leaveView(p)
			p.pos = step(p.pos, w.rng.Intn(4))
			w.enterView(p)
		}
	}

	if len(w.players) == 0 {
		return
	}

	for i, n := 0, w.rng.Intn(5); i < n && w.entityCount() < w.cfg.Entities*6/5+1; i++ {
		w.spawn()
	}
	for i, n := 0, w.rng.Intn(5); i < n && w.entityCount() > 0; i++ {
		w.despawn()
	}
}

// enterView loads and observes every chunk within view distance of p.
func (w *World) enterView(p *player) {
	w.eachInView(p, func(c chunkPos) {
		if p.dim.viewers[c] == 0 {
			w.emit(func(ev engine.Events) { ev.ChunkLoaded(p.dim.name) })
		}
		p.dim.viewers[c]++
		w.emit(func(ev engine.Events) { ev.ObserverEnter(chunkKey(p.dim, c)) })
	})
}

// leaveView stops observing the chunks around p and unloads those nobody else sees.
func (w *World) leaveView(p *player) {
	w.eachInView(p, func(c chunkPos) {
		w.emit(func(ev engine.Events) { ev.ObserverLeave(chunkKey(p.dim, c)) })
		p.dim.viewers[c]--
		if p.dim.viewers[c] > 0 {
			return
		}
		delete(p.dim.viewers, c)
		w.unloadEntities(p.dim, c)
		w.emit(func(ev engine.Events) { ev.ChunkUnloaded(p.dim.name) })
	})
}

func (w *World) eachInView(p *player, fn func(chunkPos)) {
	r := int32(w.cfg.ViewDistance)
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			fn(chunkPos{x: p.pos.x + dx, z: p.pos.z + dz})
		}
	}
}

func (w *World) unloadEntities(d *dimension, c chunkPos) {
	kept := d.entities[:0]
	for _, e := range d.entities {
		if e.pos == c {
			w.emit(func(ev engine.Events) { ev.EntityRemoved(toEngineEntity(d, e)) })
			continue
		}
		kept = append(kept, e)
	}
	clear(d.entities[len(kept):])
	d.entities = kept
}

// spawn places an entity in a chunk next to a random player, which is always loaded.
func (w *World) spawn() {
	p := w.players[w.rng.Intn(len(w.players))]
	r := w.cfg.ViewDistance
	e := &entity{
		typ: entityTypes[w.rng.Intn(len(entityTypes))],
		pos: chunkPos{
			x: p.pos.x + int32(w.rng.Intn(2*r+1)-r),
			z: p.pos.z + int32(w.rng.Intn(2*r+1)-r),
		},
	}
	p.dim.entities = append(p.dim.entities, e)
	w.emit(func(ev engine.Events) { ev.EntityAdded(toEngineEntity(p.dim, e)) })
}

func (w *World) despawn() {
	d := w.dims[w.rng.Intn(len(w.dims))]
	if len(d.entities) == 0 {
		return
	}
	i := w.rng.Intn(len(d.entities))
	e := d.entities[i]

	last := len(d.entities) - 1
	d.entities[i] = d.entities[last]
	d.entities[last] = nil
	d.entities = d.entities[:last]

	w.emit(func(ev engine.Events) { ev.EntityRemoved(toEngineEntity(d, e)) })
}

func (w *World) entityCount() int {
	var n int
	for _, d := range w.dims {
		n += len(d.entities)
	}
	return n
}

func (w *World) emit(fn func(engine.Events)) {
	if w.sink == nil {
		return
	}
	if w.cfg.DropEvents > 0 && w.rng.Float64() < w.cfg.DropEvents {
		w.dropped.Add(1)
		return
	}
	fn(w.sink)
}

func step(pos chunkPos, dir int) chunkPos {
	switch dir {
	case 0:
		pos.x++
	case 1:
		pos.x--
	case 2:
		pos.z++
	default:
		pos.z--
	}
	return pos
}

func worldName(i int) string {
	switch i {
	case 0:
		return "world"
	case 1:
		return "world_nether"
	case 2:
		return "world_the_end"
	}
	return "world_" + strconv.Itoa(i+1)
}

func chunkKey(d *dimension, c chunkPos) viewers.ChunkKey {
	return viewers.ChunkKey{World: d.name, X: c.x, Z: c.z}
}

func toEngineEntity(d *dimension, e *entity) engine.Entity {
	return engine.Entity{World: d.name, Type: e.typ, X: e.pos.x, Z: e.pos.z}
}
