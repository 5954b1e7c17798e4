// SPDX-License-Identifier: GPL-3.0-or-later

// Package snapshot defines the immutable per-tick view of the tracked
// population and the assembler that builds it.
package snapshot

import (
	"maps"
	"slices"
	"time"

	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

// TPS windows, in the order TPS() returns them.
var TPSWindows = []string{"1m", "5m", "15m"}

// Totals are monotonic event counters since start.
type Totals struct {
	EntitiesAdded   int64
	EntitiesRemoved int64
	ChunksLoaded    int64
	ChunksUnloaded  int64
}

// Data carries snapshot contents. A nil map, slice or pointer marks the group
// as not measured; an empty map is a measured zero.
type Data struct {
	Time            time.Time
	Seq             uint64
	PlayersOnline   int64
	EntitiesByWorld map[string]int64
	EntitiesByType  map[string]int64
	EntitiesByChunk map[worldkey.ChunkEntity]int64
	ChunksByWorld   map[string]int64
	ExclusiveChunks *int64
	TPS             []float64
	MSPTAvg         *float64
	MSPTP95         *float64
	ScalarSource    string
	Totals          Totals
}

// Snapshot is never modified after New returns. Accessors hand out copies.
type Snapshot struct {
	d Data
}

// New builds a snapshot from d, copying every map and slice.
func New(d Data) *Snapshot {
	return &Snapshot{d: Data{
		Time:            d.Time,
		Seq:             d.Seq,
		PlayersOnline:   max(0, d.PlayersOnline),
		EntitiesByWorld: maps.Clone(d.EntitiesByWorld),
		EntitiesByType:  maps.Clone(d.EntitiesByType),
		EntitiesByChunk: maps.Clone(d.EntitiesByChunk),
		ChunksByWorld:   maps.Clone(d.ChunksByWorld),
		ExclusiveChunks: clonePtr(d.ExclusiveChunks),
		TPS:             slices.Clone(d.TPS),
		MSPTAvg:         clonePtr(d.MSPTAvg),
		MSPTP95:         clonePtr(d.MSPTP95),
		ScalarSource:    d.ScalarSource,
		Totals:          d.Totals,
	}}
}

// Empty returns the snapshot served before the first tick: everything absent.
func Empty() *Snapshot {
	return &Snapshot{}
}

func (s *Snapshot) Time() time.Time { return s.d.Time }

// Seq is 0 for the empty snapshot and strictly increasing afterwards.
func (s *Snapshot) Seq() uint64 { return s.d.Seq }

func (s *Snapshot) PlayersOnline() int64 { return s.d.PlayersOnline }

func (s *Snapshot) EntitiesByWorld() (map[string]int64, bool) {
	return maps.Clone(s.d.EntitiesByWorld), s.d.EntitiesByWorld != nil
}

// EntitiesTotal sums EntitiesByWorld.
func (s *Snapshot) EntitiesTotal() (int64, bool) {
	return sum(s.d.EntitiesByWorld), s.d.EntitiesByWorld != nil
}

func (s *Snapshot) EntitiesByType() (map[string]int64, bool) {
	return maps.Clone(s.d.EntitiesByType), s.d.EntitiesByType != nil
}

func (s *Snapshot) EntitiesByChunk() (map[worldkey.ChunkEntity]int64, bool) {
	return maps.Clone(s.d.EntitiesByChunk), s.d.EntitiesByChunk != nil
}

func (s *Snapshot) ChunksByWorld() (map[string]int64, bool) {
	return maps.Clone(s.d.ChunksByWorld), s.d.ChunksByWorld != nil
}

// ChunksTotal sums ChunksByWorld.
func (s *Snapshot) ChunksTotal() (int64, bool) {
	return sum(s.d.ChunksByWorld), s.d.ChunksByWorld != nil
}

func (s *Snapshot) ExclusiveChunks() (int64, bool) {
	return deref(s.d.ExclusiveChunks)
}

// TPS returns the 1m, 5m and 15m ticks-per-second averages.
func (s *Snapshot) TPS() ([]float64, bool) {
	return slices.Clone(s.d.TPS), s.d.TPS != nil
}

func (s *Snapshot) MSPTAvg() (float64, bool) { return deref(s.d.MSPTAvg) }

func (s *Snapshot) MSPTP95() (float64, bool) { return deref(s.d.MSPTP95) }

// ScalarSource names the sampler that measured players, TPS and MSPT.
func (s *Snapshot) ScalarSource() string { return s.d.ScalarSource }

func (s *Snapshot) Totals() Totals { return s.d.Totals }

func sum[K comparable](m map[K]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
