// SPDX-License-Identifier: GPL-3.0-or-later

// Package gaugestore implements a keyed set of non-negative gauges fed by
// incremental events and periodically replaced by authoritative scans.
package gaugestore

import (
	"sync"

	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

// Store maps keys to counts. Internal values may go negative when events
// arrive out of order; every read path clamps them to zero.
type Store[K comparable] struct {
	mu        sync.Mutex
	values    map[K]int64
	pruneZero bool
}

type Option[K comparable] func(*Store[K])

// WithPruneZero makes Increment delete a key as soon as its count returns to zero.
// Meant for high-cardinality keys that may never see another reconcile.
func WithPruneZero[K comparable]() Option[K] {
	return func(s *Store[K]) { s.pruneZero = true }
}

func New[K comparable](opts ...Option[K]) *Store[K] {
	s := &Store[K]{values: make(map[K]int64)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment adds delta to the key's count. Blank keys are ignored.
func (s *Store[K]) Increment(key K, delta int64) {
	if isBlank(key) || delta == 0 {
		return
	}
	s.mu.Lock()
	v := s.values[key] + delta
	if v == 0 && s.pruneZero {
		delete(s.values, key)
	} else {
		s.values[key] = v
	}
	s.mu.Unlock()
}

func (s *Store[K]) Add(key K) { s.Increment(key, 1) }

func (s *Store[K]) Sub(key K) { s.Increment(key, -1) }

// Get returns the clamped count for key.
func (s *Store[K]) Get(key K) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return max(0, s.values[key])
}

// Len returns the number of tracked keys.
func (s *Store[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.values)
}

// Snapshot returns a fresh copy of all counts, clamped to zero.
func (s *Store[K]) Snapshot() map[K]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[K]int64, len(s.values))
	for k, v := range s.values {
		out[k] = max(0, v)
	}
	return out
}

// ReplaceAll discards every key and adopts exactly the given values, clamped to zero.
// A nil map empties the store.
func (s *Store[K]) ReplaceAll(values map[K]int64) {
	fresh := make(map[K]int64, len(values))
	for k, v := range values {
		if isBlank(k) {
			continue
		}
		fresh[k] = max(0, v)
	}

	s.mu.Lock()
	s.values = fresh
	s.mu.Unlock()
}

func isBlank[K comparable](key K) bool {
	var zero K
	if key == zero {
		return true
	}
	if b, ok := any(key).(worldkey.Blanker); ok {
		return b.IsBlank()
	}
	return false
}
