// SPDX-License-Identifier: GPL-3.0-or-later

package netdata

import (
	"fmt"
	"strings"
)

const (
	precisionTPS   = 100
	precisionMSPT  = 1000
	precisionRatio = 1000
)

const (
	prioPlayersOnline = 70000 + iota
	prioEntities
	prioEntitiesByType
	prioEntitiesPerChunk
	prioChunks
	prioChunksExclusive
	prioChunksPerPlayer
	prioTPS
	prioMSPT
	prioEntityEvents
	prioChunkEvents
)

type chart struct {
	ID       string
	Title    string
	Units    string
	Fam      string
	Ctx      string
	Type     string
	Priority int
	Dims     []*dim

	created bool
	// dimsAdded marks dimensions added since the chart was last sent
	dimsAdded bool
	obsolete  bool
}

type dim struct {
	ID   string
	Name string
	Algo string
	Mul  int
	Div  int
}

func (c *chart) hasDim(id string) bool {
	for _, d := range c.Dims {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (c *chart) addDim(d *dim) {
	if c.hasDim(d.ID) {
		return
	}
	c.Dims = append(c.Dims, d)
	c.dimsAdded = true
}

func newPlayersChart() *chart {
	return &chart{
		ID:       "players_online",
		Title:    "Players online",
		Units:    "players",
		Fam:      "players",
		Ctx:      "minecraft.players_online",
		Type:     "line",
		Priority: prioPlayersOnline,
		Dims: []*dim{
			{ID: "players_online", Name: "online"},
		},
	}
}

func newEntitiesChart() *chart {
	return &chart{
		ID:       "entities_loaded",
		Title:    "Loaded entities per world",
		Units:    "entities",
		Fam:      "entities",
		Ctx:      "minecraft.entities_loaded",
		Type:     "stacked",
		Priority: prioEntities,
	}
}

func newEntitiesByTypeChart() *chart {
	return &chart{
		ID:       "entities_loaded_by_type",
		Title:    "Loaded entities per type",
		Units:    "entities",
		Fam:      "entities",
		Ctx:      "minecraft.entities_loaded_by_type",
		Type:     "stacked",
		Priority: prioEntitiesByType,
	}
}

func newEntitiesPerChunkChart() *chart {
	return &chart{
		ID:       "entities_per_chunk",
		Title:    "Average entities per loaded chunk",
		Units:    "entities",
		Fam:      "entities",
		Ctx:      "minecraft.entities_per_chunk",
		Type:     "line",
		Priority: prioEntitiesPerChunk,
		Dims: []*dim{
			{ID: "entities_per_chunk", Name: "per_chunk", Div: precisionRatio},
		},
	}
}

func newChunksChart() *chart {
	return &chart{
		ID:       "chunks_loaded",
		Title:    "Loaded chunks per world",
		Units:    "chunks",
		Fam:      "chunks",
		Ctx:      "minecraft.chunks_loaded",
		Type:     "stacked",
		Priority: prioChunks,
	}
}

func newChunksExclusiveChart() *chart {
	return &chart{
		ID:       "chunks_exclusive",
		Title:    "Chunks viewed by exactly one player",
		Units:    "chunks",
		Fam:      "chunks",
		Ctx:      "minecraft.chunks_exclusive",
		Type:     "line",
		Priority: prioChunksExclusive,
		Dims: []*dim{
			{ID: "chunks_exclusive", Name: "exclusive"},
		},
	}
}

func newChunksPerPlayerChart() *chart {
	return &chart{
		ID:       "chunks_per_player",
		Title:    "Loaded chunks per online player",
		Units:    "chunks",
		Fam:      "chunks",
		Ctx:      "minecraft.chunks_loaded_per_player",
		Type:     "line",
		Priority: prioChunksPerPlayer,
		Dims: []*dim{
			{ID: "chunks_per_player_total", Name: "total", Div: precisionRatio},
			{ID: "chunks_per_player_exclusive", Name: "exclusive", Div: precisionRatio},
		},
	}
}

func newTPSChart() *chart {
	return &chart{
		ID:       "tps",
		Title:    "Ticks per second",
		Units:    "ticks",
		Fam:      "performance",
		Ctx:      "minecraft.server_tps",
		Type:     "line",
		Priority: prioTPS,
		Dims: []*dim{
			{ID: "tps_1m", Name: "1min", Div: precisionTPS},
			{ID: "tps_5m", Name: "5min", Div: precisionTPS},
			{ID: "tps_15m", Name: "15min", Div: precisionTPS},
		},
	}
}

func newMSPTChart() *chart {
	return &chart{
		ID:       "mspt",
		Title:    "Milliseconds per tick",
		Units:    "milliseconds",
		Fam:      "performance",
		Ctx:      "minecraft.server_mspt",
		Type:     "line",
		Priority: prioMSPT,
		Dims: []*dim{
			{ID: "mspt_avg", Name: "avg", Div: precisionMSPT},
			{ID: "mspt_p95", Name: "p95", Div: precisionMSPT},
		},
	}
}

func newEntityEventsChart() *chart {
	return &chart{
		ID:       "entity_events",
		Title:    "Entity events",
		Units:    "events/s",
		Fam:      "events",
		Ctx:      "minecraft.entity_events",
		Type:     "line",
		Priority: prioEntityEvents,
		Dims: []*dim{
			{ID: "entities_added", Name: "added", Algo: "incremental"},
			{ID: "entities_removed", Name: "removed", Algo: "incremental", Mul: -1},
		},
	}
}

func newChunkEventsChart() *chart {
	return &chart{
		ID:       "chunk_events",
		Title:    "Chunk events",
		Units:    "events/s",
		Fam:      "events",
		Ctx:      "minecraft.chunk_events",
		Type:     "line",
		Priority: prioChunkEvents,
		Dims: []*dim{
			{ID: "chunks_loaded", Name: "loaded", Algo: "incremental"},
			{ID: "chunks_unloaded", Name: "unloaded", Algo: "incremental", Mul: -1},
		},
	}
}

var idReplacer = strings.NewReplacer(" ", "_", ".", "_", "'", "", "\"", "")

func worldEntitiesDimID(world string) string { return fmt.Sprintf("world_%s_entities", cleanID(world)) }
func worldChunksDimID(world string) string   { return fmt.Sprintf("world_%s_chunks", cleanID(world)) }
func typeEntitiesDimID(typ string) string    { return fmt.Sprintf("type_%s_entities", cleanID(typ)) }

func cleanID(s string) string {
	return idReplacer.Replace(strings.ToLower(s))
}
