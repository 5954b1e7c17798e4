// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"fmt"
	"strings"
)

// ChunkMode selects how finely entities are broken down.
type ChunkMode int

const (
	// ChunkModeOff keeps per-world entity counts only.
	ChunkModeOff ChunkMode = iota
	// ChunkModeLight adds per-type counts.
	ChunkModeLight
	// ChunkModeHeavy adds per-type counts per chunk.
	ChunkModeHeavy
)

func (m ChunkMode) String() string {
	switch m {
	case ChunkModeLight:
		return "light"
	case ChunkModeHeavy:
		return "heavy"
	default:
		return "off"
	}
}

// ParseChunkMode accepts the mode names and their common aliases.
func ParseChunkMode(s string) (ChunkMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false", "0", "disabled", "no":
		return ChunkModeOff, nil
	case "light", "lite":
		return ChunkModeLight, nil
	case "heavy", "full", "on", "true", "1", "enabled", "yes":
		return ChunkModeHeavy, nil
	}
	return ChunkModeOff, fmt.Errorf("unknown entities_by_chunk mode '%s'", s)
}

// Features toggles gauge groups.
type Features struct {
	Tick            bool
	Entities        bool
	EntitiesByChunk ChunkMode
	Chunks          bool
	TPSMSPT         bool
}

// Normalize returns f with dependent toggles resolved: without entities there is no breakdown.
func (f Features) Normalize() Features {
	if !f.Entities {
		f.EntitiesByChunk = ChunkModeOff
	}
	return f
}

func (f Features) entityTypes() bool  { return f.Entities && f.EntitiesByChunk >= ChunkModeLight }
func (f Features) entityChunks() bool { return f.Entities && f.EntitiesByChunk == ChunkModeHeavy }

// AllFeatures enables everything except the per-chunk breakdown.
func AllFeatures() Features {
	return Features{Tick: true, Entities: true, Chunks: true, TPSMSPT: true}
}
