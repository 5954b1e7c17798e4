// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// maxSelectorCache bounds the remembered match results; names past it are matched on every call.
const maxSelectorCache = 1024

// worldSelector matches world names against glob patterns. No patterns selects every world.
type worldSelector struct {
	patterns []string

	mu    sync.RWMutex
	cache map[string]bool
}

func newWorldSelector(patterns []string) (*worldSelector, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("engine: invalid world pattern '%s'", p)
		}
	}
	return &worldSelector{
		patterns: patterns,
		cache:    make(map[string]bool),
	}, nil
}

func (s *worldSelector) MatchString(world string) bool {
	if len(s.patterns) == 0 {
		return true
	}

	s.mu.RLock()
	v, ok := s.cache[world]
	s.mu.RUnlock()
	if ok {
		return v
	}

	v = s.match(world)

	s.mu.Lock()
	if len(s.cache) < maxSelectorCache {
		s.cache[world] = v
	}
	s.mu.Unlock()

	return v
}

func (s *worldSelector) match(world string) bool {
	for _, p := range s.patterns {
		if ok, _ := doublestar.Match(p, world); ok {
			return true
		}
	}
	return false
}
