// SPDX-License-Identifier: GPL-3.0-or-later

// Package engine owns the population gauges of one game server: it applies
// host events, reconciles against full scans, and publishes one snapshot per tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/baseline"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/gaugestore"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/tickstat"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

type Config struct {
	Features         Features
	BaselineInterval time.Duration
	// Worlds are glob patterns of tracked worlds. Empty tracks all.
	Worlds []string
	// Sampler is the preferred scalar source (e.g. RCON). Fields it does not
	// measure come from the host sampler and the tick recorder.
	Sampler snapshot.Sampler
	Logger  *logger.Logger
}

type reconciler interface {
	Name() string
	Reconcile(now time.Time) baseline.Result
}

type Engine struct {
	*logger.Logger

	features Features
	worlds   *worldSelector
	host     Host

	entitiesByWorld *gaugestore.Store[worldkey.World]
	entitiesByType  *gaugestore.Store[worldkey.EntityType]
	entitiesByChunk *gaugestore.Store[worldkey.ChunkEntity]
	chunksByWorld   *gaugestore.Store[worldkey.World]
	viewers         *viewers.Tracker
	ticks           *tickstat.Recorder

	reconcilers []reconciler
	assembler   *snapshot.Assembler

	entityEvents atomic.Bool
	totals       struct {
		entitiesAdded   atomic.Int64
		entitiesRemoved atomic.Int64
		chunksLoaded    atomic.Int64
		chunksUnloaded  atomic.Int64
	}

	tickMu sync.Mutex
	latest atomic.Pointer[snapshot.Snapshot]

	listenersMu sync.Mutex
	listeners   []subscriber

	now func() time.Time
}

func New(cfg Config, host Host) (*Engine, error) {
	if cfg.BaselineInterval < 0 {
		return nil, errors.New("engine: negative baseline interval")
	}

	worlds, err := newWorldSelector(cfg.Worlds)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}

	e := &Engine{
		Logger:          log.With(slog.String("component", "engine")),
		features:        cfg.Features.Normalize(),
		worlds:          worlds,
		host:            host,
		entitiesByWorld: gaugestore.New[worldkey.World](),
		entitiesByType:  gaugestore.New[worldkey.EntityType](),
		entitiesByChunk: gaugestore.New(gaugestore.WithPruneZero[worldkey.ChunkEntity]()),
		chunksByWorld:   gaugestore.New[worldkey.World](),
		viewers:         viewers.New(),
		ticks:           tickstat.New(tickstat.DefaultWindow),
		now:             time.Now,
	}
	e.latest.Store(snapshot.Empty())

	if err := e.initReconcilers(cfg.BaselineInterval, log); err != nil {
		return nil, err
	}
	e.assembler = snapshot.NewAssembler(e.assemblerConfig(cfg.Sampler, log))

	return e, nil
}

func (e *Engine) Features() Features { return e.features }

// SetEntityEventsAvailable tells whether the host delivers every entity add and remove.
// While it does, entity gauges are not reconciled against scans.
func (e *Engine) SetEntityEventsAvailable(v bool) {
	e.entityEvents.Store(v)
}

// Init seeds every gauge group from the host scans and the viewer table from
// the observer scan.
func (e *Engine) Init() {
	now := e.now()
	for _, r := range e.reconcilers {
		if res := r.Reconcile(now); res.Err != nil {
			e.Warningf("initial baseline of '%s' failed: %v", r.Name(), res.Err)
		}
	}

	if !e.features.Chunks || e.host.ScanObservers == nil {
		return
	}
	var (
		counts map[viewers.ChunkKey]int
		err    error
		pc     panics.Catcher
	)
	pc.Try(func() { counts, err = e.host.ScanObservers() })
	if rec := pc.Recovered(); rec != nil {
		err = rec.AsError()
	}
	if err != nil {
		e.Warningf("initial observer scan failed: %v", err)
		return
	}
	for k := range counts {
		if !e.worlds.MatchString(k.World) {
			delete(counts, k)
		}
	}
	e.viewers.Reset(counts)
	e.Debugf("observer table initialized: %d chunks, %d exclusive", e.viewers.Len(), e.viewers.Exclusive())
}

// Tick reconciles due gauge groups, builds a snapshot, publishes it and
// notifies listeners in subscription order.
func (e *Engine) Tick(now time.Time) *snapshot.Snapshot {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	for _, r := range e.reconcilers {
		r.Reconcile(now)
	}

	snap := e.assembler.Build(now)
	e.latest.Store(snap)

	if logger.Level.Enabled(slog.LevelDebug) && e.features.Chunks {
		if got, want := e.viewers.Exclusive(), e.viewers.Recount(); got != want {
			e.Debugf("exclusive chunk counter %d differs from recount %d", got, want)
		}
	}

	e.notify(snap)

	return snap
}

// Snapshot returns the latest published snapshot, or an empty one before the first tick.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return e.latest.Load()
}

func (e *Engine) initReconcilers(interval time.Duration, log *logger.Logger) error {
	f := e.features
	eventsComplete := e.entityEvents.Load

	var errs []error
	add := func(r reconciler, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		e.reconcilers = append(e.reconcilers, r)
	}

	if scan := e.host.ScanEntities; scan != nil && f.Entities {
		add(baseline.New(baseline.Config[worldkey.World]{
			Name:           "entities",
			Store:          e.entitiesByWorld,
			Scan:           filterWorlds(e.worlds, scan, func(k worldkey.World) string { return string(k) }),
			Interval:       interval,
			EventsComplete: eventsComplete,
			Logger:         log,
		}))
	}
	if scan := e.host.ScanEntityTypes; scan != nil && f.entityTypes() {
		add(baseline.New(baseline.Config[worldkey.EntityType]{
			Name:  "entities_by_type",
			Store: e.entitiesByType,
			Scan: func() (map[worldkey.EntityType]int64, error) {
				return scan(e.worlds.MatchString)
			},
			Interval:       interval,
			EventsComplete: eventsComplete,
			Logger:         log,
		}))
	}
	if scan := e.host.ScanEntitiesByChunk; scan != nil && f.entityChunks() {
		add(baseline.New(baseline.Config[worldkey.ChunkEntity]{
			Name:           "entities_by_chunk",
			Store:          e.entitiesByChunk,
			Scan:           filterWorlds(e.worlds, scan, func(k worldkey.ChunkEntity) string { return k.World }),
			Interval:       interval,
			EventsComplete: eventsComplete,
			Logger:         log,
		}))
	}
	if scan := e.host.ScanChunks; scan != nil && f.Chunks {
		add(baseline.New(baseline.Config[worldkey.World]{
			Name:     "chunks",
			Store:    e.chunksByWorld,
			Scan:     filterWorlds(e.worlds, scan, func(k worldkey.World) string { return string(k) }),
			Interval: interval,
			Logger:   log,
		}))
	}

	if len(errs) > 0 {
		return fmt.Errorf("engine: %w", errors.Join(errs...))
	}
	return nil
}

func (e *Engine) assemblerConfig(primary snapshot.Sampler, log *logger.Logger) snapshot.AssemblerConfig {
	f := e.features

	cfg := snapshot.AssemblerConfig{
		Sampler: e.scalarSampler(primary),
		Totals:  e.totalsSnapshot,
		Logger:  log,
	}
	if f.Entities {
		cfg.EntitiesByWorld = e.entitiesByWorld
	}
	if f.entityTypes() {
		cfg.EntitiesByType = e.entitiesByType
	}
	if f.entityChunks() {
		cfg.EntitiesByChunk = e.entitiesByChunk
	}
	if f.Chunks {
		cfg.ChunksByWorld = e.chunksByWorld
		cfg.Viewers = e.viewers
	}
	return cfg
}

func (e *Engine) scalarSampler(primary snapshot.Sampler) snapshot.Sampler {
	var tick snapshot.Sampler
	if e.features.Tick {
		tick = snapshot.SamplerFunc(func() (snapshot.Sample, error) {
			avg, p95, ok := e.ticks.MSPT()
			if !ok {
				return snapshot.Sample{Source: "tick"}, nil
			}
			return snapshot.Sample{MSPTAvg: &avg, MSPTP95: &p95, Source: "tick"}, nil
		})
	}

	chain := snapshot.Fallback(primary, snapshot.Fallback(e.host.Sampler, tick))

	if e.features.TPSMSPT {
		return chain
	}
	return snapshot.SamplerFunc(func() (snapshot.Sample, error) {
		smp, err := chain.Sample()
		smp.TPS, smp.MSPTAvg, smp.MSPTP95 = nil, nil, nil
		return smp, err
	})
}

func (e *Engine) totalsSnapshot() snapshot.Totals {
	return snapshot.Totals{
		EntitiesAdded:   e.totals.entitiesAdded.Load(),
		EntitiesRemoved: e.totals.entitiesRemoved.Load(),
		ChunksLoaded:    e.totals.chunksLoaded.Load(),
		ChunksUnloaded:  e.totals.chunksUnloaded.Load(),
	}
}

func filterWorlds[K comparable](sel *worldSelector, scan func() (map[K]int64, error), world func(K) string) baseline.ScanFunc[K] {
	return func() (map[K]int64, error) {
		values, err := scan()
		if err != nil {
			return nil, err
		}
		for k := range values {
			if !sel.MatchString(world(k)) {
				delete(values, k)
			}
		}
		return values, nil
	}
}
