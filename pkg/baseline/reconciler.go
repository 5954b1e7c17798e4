// SPDX-License-Identifier: GPL-3.0-or-later

// Package baseline periodically overwrites incrementally maintained gauges
// with the result of an authoritative full scan.
package baseline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/gaugestore"
)

var (
	errNegativeInterval = errors.New("baseline: negative interval")
	errNoStore          = errors.New("baseline: store not set")
	errNoScan           = errors.New("baseline: scan function not set")
)

// ScanFunc enumerates the current authoritative counts. It is called
// synchronously from the reconcile path and must be safe to call repeatedly.
type ScanFunc[K comparable] func() (map[K]int64, error)

type Config[K comparable] struct {
	Name     string
	Store    *gaugestore.Store[K]
	Scan     ScanFunc[K]
	Interval time.Duration
	// Enabled reports whether the gauge group is collected. Nil means always.
	Enabled func() bool
	// EventsComplete reports whether the incremental event stream alone keeps the
	// store accurate. While it does, due passes skip the scan.
	EventsComplete func() bool
	Logger         *logger.Logger
}

// Result describes what a Reconcile call did.
type Result struct {
	Due     bool
	Scanned bool
	Applied bool
	Err     error
}

type Reconciler[K comparable] struct {
	*logger.Logger

	name           string
	store          *gaugestore.Store[K]
	scan           ScanFunc[K]
	interval       time.Duration
	enabled        func() bool
	eventsComplete func() bool

	mu      sync.Mutex
	lastRun time.Time
}

func New[K comparable](cfg Config[K]) (*Reconciler[K], error) {
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("%w (%s): %s", errNegativeInterval, cfg.Name, cfg.Interval)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w (%s)", errNoStore, cfg.Name)
	}
	if cfg.Scan == nil {
		return nil, fmt.Errorf("%w (%s)", errNoScan, cfg.Name)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}

	return &Reconciler[K]{
		Logger:         log.With(slog.String("component", "baseline"), slog.String("gauge", cfg.Name)),
		name:           cfg.Name,
		store:          cfg.Store,
		scan:           cfg.Scan,
		interval:       cfg.Interval,
		enabled:        cfg.Enabled,
		eventsComplete: cfg.EventsComplete,
	}, nil
}

func (r *Reconciler[K]) Name() string { return r.name }

// LastRun returns the time of the last due pass, zero if none happened yet.
func (r *Reconciler[K]) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastRun
}

// Due reports whether a reconcile pass at now would run.
func (r *Reconciler[K]) Due(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.isDue(now)
}

// Reconcile runs one pass. The last run time advances whenever the pass is due,
// regardless of whether a scan happens or succeeds. A disabled group is emptied
// on every call.
func (r *Reconciler[K]) Reconcile(now time.Time) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res Result

	if r.isDue(now) {
		res.Due = true
		r.lastRun = now
	}

	if r.enabled != nil && !r.enabled() {
		r.store.ReplaceAll(nil)
		res.Applied = true
		return res
	}

	if !res.Due || (r.eventsComplete != nil && r.eventsComplete()) {
		return res
	}

	res.Scanned = true

	values, err := r.runScan()
	if err != nil {
		r.Warningf("scan failed, keeping previous values: %v", err)
		res.Err = err
		return res
	}

	r.store.ReplaceAll(values)
	res.Applied = true

	r.Debugf("baseline applied: %d keys", len(values))

	return res
}

func (r *Reconciler[K]) isDue(now time.Time) bool {
	return r.lastRun.IsZero() || now.Sub(r.lastRun) >= r.interval
}

func (r *Reconciler[K]) runScan() (values map[K]int64, err error) {
	var pc panics.Catcher
	pc.Try(func() { values, err = r.scan() })

	if rec := pc.Recovered(); rec != nil {
		r.Debugf("scan panic stack:\n%s", rec.Stack)
		return nil, rec.AsError()
	}
	return values, err
}
