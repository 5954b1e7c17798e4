// SPDX-License-Identifier: GPL-3.0-or-later

// Package viewers counts, per chunk, how many observers have it in view and
// keeps the number of chunks seen by exactly one observer.
package viewers

import (
	"fmt"
	"sync"
)

// ChunkKey identifies a chunk within a world.
type ChunkKey struct {
	World string
	X     int32
	Z     int32
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("%s[%d,%d]", k.World, k.X, k.Z)
}

// Tracker keeps viewer counts for chunks with at least one viewer.
// The table and the exclusive counter change together under one lock.
type Tracker struct {
	mu        sync.Mutex
	counts    map[ChunkKey]int
	exclusive int64
}

func New() *Tracker {
	return &Tracker{counts: make(map[ChunkKey]int)}
}

// Enter records one more observer viewing the chunk.
func (t *Tracker) Enter(key ChunkKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.counts[key]
	t.counts[key] = c + 1

	switch c {
	case 0:
		t.exclusive++
	case 1:
		t.decExclusive()
	}
}

// Leave records one observer less. Leaving a chunk nobody views is a no-op.
func (t *Tracker) Leave(key ChunkKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counts[key]
	if !ok {
		return
	}

	switch {
	case c <= 1:
		delete(t.counts, key)
		if c == 1 {
			t.decExclusive()
		}
	case c == 2:
		t.counts[key] = 1
		t.exclusive++
	default:
		t.counts[key] = c - 1
	}
}

// Exclusive returns the number of chunks viewed by exactly one observer.
func (t *Tracker) Exclusive() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.exclusive
}

// Viewers returns the number of observers viewing the chunk.
func (t *Tracker) Viewers(key ChunkKey) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counts[key]
}

// Len returns the number of chunks with at least one viewer.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.counts)
}

// Reset replaces the table with counts from a full scan and recomputes the
// exclusive counter. Non-positive counts are dropped.
func (t *Tracker) Reset(counts map[ChunkKey]int) {
	fresh := make(map[ChunkKey]int, len(counts))
	var exclusive int64
	for k, c := range counts {
		if c <= 0 {
			continue
		}
		fresh[k] = c
		if c == 1 {
			exclusive++
		}
	}

	t.mu.Lock()
	t.counts = fresh
	t.exclusive = exclusive
	t.mu.Unlock()
}

// Recount counts chunks with exactly one viewer by walking the whole table.
func (t *Tracker) Recount() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int64
	for _, c := range t.counts {
		if c == 1 {
			n++
		}
	}
	return n
}

func (t *Tracker) decExclusive() {
	if t.exclusive > 0 {
		t.exclusive--
	}
}
