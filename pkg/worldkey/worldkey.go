// SPDX-License-Identifier: GPL-3.0-or-later

// Package worldkey defines the keys population gauges are indexed by.
package worldkey

import (
	"strconv"
	"strings"
)

// World is a world name, e.g. "overworld".
type World string

func (w World) IsBlank() bool { return isBlank(string(w)) }

// EntityType is an entity type identifier, e.g. "zombie".
type EntityType string

func (t EntityType) IsBlank() bool { return isBlank(string(t)) }

// ChunkEntity keys an entity count by world, chunk coordinates and entity type.
type ChunkEntity struct {
	World string
	X     int32
	Z     int32
	Type  string
}

// IsBlank reports whether the world or the entity type is missing.
func (k ChunkEntity) IsBlank() bool {
	return isBlank(k.World) || isBlank(k.Type)
}

func (k ChunkEntity) String() string {
	return k.World + "[" + strconv.Itoa(int(k.X)) + "," + strconv.Itoa(int(k.Z)) + "]/" + k.Type
}

// Blanker is implemented by keys that can be blank without being the zero value.
type Blanker interface {
	IsBlank() bool
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
