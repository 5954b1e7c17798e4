// SPDX-License-Identifier: GPL-3.0-or-later

package engine

import (
	"slices"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
)

// Listener receives every published snapshot on the tick goroutine.
type Listener interface {
	OnSnapshot(s *snapshot.Snapshot)
}

type ListenerFunc func(s *snapshot.Snapshot)

func (f ListenerFunc) OnSnapshot(s *snapshot.Snapshot) { f(s) }

// Subscription identifies a registered listener.
type Subscription uuid.UUID

func (s Subscription) String() string { return uuid.UUID(s).String() }

type subscriber struct {
	id Subscription
	l  Listener
}

// Subscribe registers l. Listeners are notified in subscription order.
func (e *Engine) Subscribe(l Listener) Subscription {
	sub := Subscription(uuid.New())

	e.listenersMu.Lock()
	e.listeners = append(e.listeners, subscriber{id: sub, l: l})
	e.listenersMu.Unlock()

	return sub
}

// Unsubscribe removes the listener. It reports whether the subscription was known.
func (e *Engine) Unsubscribe(sub Subscription) bool {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	n := len(e.listeners)
	e.listeners = slices.DeleteFunc(e.listeners, func(s subscriber) bool { return s.id == sub })

	return len(e.listeners) != n
}

func (e *Engine) notify(snap *snapshot.Snapshot) {
	e.listenersMu.Lock()
	subs := slices.Clone(e.listeners)
	e.listenersMu.Unlock()

	for _, s := range subs {
		var pc panics.Catcher
		pc.Try(func() { s.l.OnSnapshot(snap) })

		if rec := pc.Recovered(); rec != nil {
			e.Warningf("listener %s panicked: %v", s.id, rec.Value)
			e.Debugf("listener panic stack:\n%s", rec.Stack)
		}
	}
}
