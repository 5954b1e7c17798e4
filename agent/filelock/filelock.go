// SPDX-License-Identifier: GPL-3.0-or-later

// Package filelock keeps two plugin processes from tracking the same game server.
package filelock

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const suffix = ".world.lock"

func New(dir string) *Locker {
	return &Locker{
		dir:   dir,
		locks: make(map[string]*flock.Flock),
	}
}

// Locker holds advisory file locks, one per tracked server instance.
type Locker struct {
	dir string

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

// Lock takes the lock for instance without blocking. It reports false if
// another process holds it. Locking an instance this Locker already holds succeeds.
func (l *Locker) Lock(instance string) (bool, error) {
	filename := l.filename(instance)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.locks[filename]; ok {
		return true, nil
	}

	locker := flock.New(filename)

	ok, err := locker.TryLock()
	if ok {
		l.locks[filename] = locker
	} else {
		_ = locker.Close()
	}

	return ok, err
}

func (l *Locker) Unlock(instance string) {
	filename := l.filename(instance)

	l.mu.Lock()
	defer l.mu.Unlock()

	if locker, ok := l.locks[filename]; ok {
		delete(l.locks, filename)
		_ = locker.Close()
	}
}

func (l *Locker) UnlockAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, locker := range l.locks {
		delete(l.locks, key)
		_ = locker.Close()
	}
}

func (l *Locker) isLocked(instance string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.locks[l.filename(instance)]
	return ok
}

// filename maps an instance name (often host:port) to a safe file name.
func (l *Locker) filename(instance string) string {
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(instance)
	return filepath.Join(l.dir, name+suffix)
}
