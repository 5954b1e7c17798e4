// SPDX-License-Identifier: GPL-3.0-or-later

// Package sampling drives the periodic snapshot tick.
package sampling

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
)

const (
	penaltyStep = 5
	maxPenalty  = 600
)

type Config struct {
	// UpdateEvery is the tick interval in seconds.
	UpdateEvery int
	Tick        func(now time.Time)
	Logger      *logger.Logger
}

// Scheduler runs Tick every UpdateEvery seconds. A tick that arrives while the
// previous one still runs is skipped. Panics in Tick are recovered; repeated
// panics stretch the interval.
type Scheduler struct {
	*logger.Logger

	updateEvery int
	tickFn      func(now time.Time)
	tick        chan int
	now         func() time.Time

	retries  int
	panicked atomic.Bool
	prevRun  time.Time
}

func New(cfg Config) *Scheduler {
	if cfg.UpdateEvery <= 0 {
		cfg.UpdateEvery = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}
	return &Scheduler{
		Logger:      log.With(slog.String("component", "sampling")),
		updateEvery: cfg.UpdateEvery,
		tickFn:      cfg.Tick,
		tick:        make(chan int),
		now:         time.Now,
	}
}

func (s *Scheduler) UpdateEvery() int { return s.updateEvery }

// Panicked reports whether the last run panicked.
func (s *Scheduler) Panicked() bool { return s.panicked.Load() }

// Tick hands the clock to the run loop. It reports false if the loop is busy.
func (s *Scheduler) Tick(clock int) bool {
	select {
	case s.tick <- clock:
		return true
	default:
		s.Debug("skip the tick due to previous run hasn't been finished")
		return false
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Infof("started, sampling interval %ds", s.updateEvery)
	defer func() { s.Info("stopped") }()

	tk := newTicker(time.Second)
	defer tk.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case clock := <-tk.C:
				s.Tick(clock)
			}
		}
	}()

	s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case clock := <-s.tick:
			if clock%(s.updateEvery+s.penalty()) == 0 {
				s.runOnce()
			}
		}
	}
}

func (s *Scheduler) runOnce() {
	now := s.now()
	if !s.prevRun.IsZero() {
		s.Debugf("since last run: %s", now.Sub(s.prevRun).Round(time.Millisecond))
	}
	s.prevRun = now

	s.run(now)

	if s.panicked.Load() {
		s.retries++
	} else {
		s.retries = 0
	}
}

func (s *Scheduler) run(now time.Time) {
	s.panicked.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.panicked.Store(true)
			s.Errorf("PANIC: %v", r)
			if logger.Level.Enabled(slog.LevelDebug) {
				s.Errorf("STACK: %s", debug.Stack())
			}
		}
	}()
	s.tickFn(now)
}

func (s *Scheduler) penalty() int {
	v := s.retries / penaltyStep * penaltyStep * s.updateEvery / 2
	if v > maxPenalty {
		return maxPenalty
	}
	return v
}
