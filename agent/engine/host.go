// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

// Host is the game server side. Every scan enumerates the live world synchronously;
// a nil scan means there is no authoritative source for that group and its
// gauges are maintained from events alone.
type Host struct {
	ScanEntities        func() (map[worldkey.World]int64, error)
	// ScanEntityTypes counts entity types across the worlds match accepts.
	ScanEntityTypes     func(match func(world string) bool) (map[worldkey.EntityType]int64, error)
	ScanEntitiesByChunk func() (map[worldkey.ChunkEntity]int64, error)
	ScanChunks          func() (map[worldkey.World]int64, error)
	ScanObservers       func() (map[viewers.ChunkKey]int, error)
	// Sampler reports what the host measures itself, typically players online.
	Sampler snapshot.Sampler
}

// Entity is what entity events carry: where it is and what it is.
type Entity struct {
	World string
	Type  string
	X     int32
	Z     int32
}

// Events is the event ingress of the engine. Every method is safe to call from any goroutine.
type Events interface {
	EntityAdded(e Entity)
	EntityRemoved(e Entity)
	ChunkLoaded(world string)
	ChunkUnloaded(world string)
	ObserverEnter(key viewers.ChunkKey)
	ObserverLeave(key viewers.ChunkKey)
	TickStarted()
	TickEnded()
}
