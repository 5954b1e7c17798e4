// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

var _ Events = (*Engine)(nil)

func (e *Engine) EntityAdded(ent Entity)   { e.entityDelta(ent, 1) }
func (e *Engine) EntityRemoved(ent Entity) { e.entityDelta(ent, -1) }

func (e *Engine) ChunkLoaded(world string)   { e.chunkDelta(world, 1) }
func (e *Engine) ChunkUnloaded(world string) { e.chunkDelta(world, -1) }

func (e *Engine) ObserverEnter(key viewers.ChunkKey) {
	if e.features.Chunks && e.worlds.MatchString(key.World) {
		e.viewers.Enter(key)
	}
}

func (e *Engine) ObserverLeave(key viewers.ChunkKey) {
	if e.features.Chunks && e.worlds.MatchString(key.World) {
		e.viewers.Leave(key)
	}
}

func (e *Engine) TickStarted() {
	if e.features.Tick {
		e.ticks.Start()
	}
}

func (e *Engine) TickEnded() {
	if e.features.Tick {
		e.ticks.End()
	}
}

func (e *Engine) entityDelta(ent Entity, delta int64) {
	if !e.features.Entities || worldkey.World(ent.World).IsBlank() || !e.worlds.MatchString(ent.World) {
		return
	}

	e.entitiesByWorld.Increment(worldkey.World(ent.World), delta)
	if e.features.entityTypes() {
		e.entitiesByType.Increment(worldkey.EntityType(ent.Type), delta)
	}
	if e.features.entityChunks() {
		e.entitiesByChunk.Increment(worldkey.ChunkEntity{World: ent.World, X: ent.X, Z: ent.Z, Type: ent.Type}, delta)
	}

	if delta > 0 {
		e.totals.entitiesAdded.Add(1)
	} else {
		e.totals.entitiesRemoved.Add(1)
	}
}

func (e *Engine) chunkDelta(world string, delta int64) {
	if !e.features.Chunks || worldkey.World(world).IsBlank() || !e.worlds.MatchString(world) {
		return
	}

	e.chunksByWorld.Increment(worldkey.World(world), delta)

	if delta > 0 {
		e.totals.chunksLoaded.Add(1)
	} else {
		e.totals.chunksUnloaded.Add(1)
	}
}
