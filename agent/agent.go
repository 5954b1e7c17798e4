// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent wires the state engine to its host, samplers and exporters
// and runs them until a termination signal.
package agent

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/netdata/netdata/go/world.d.plugin/agent/engine"
	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/netdataapi"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/safewriter"
)

var isTerminal = isatty.IsTerminal(os.Stdout.Fd())

// Options are the command line settings an Agent starts with.
type Options struct {
	Name       string
	ConfigPath string
	// UpdateEvery overrides the configured interval when set.
	UpdateEvery int
	// Debug keeps the debug log level regardless of the configured one.
	Debug bool
}

// Agent represents orchestrator.
type Agent struct {
	*logger.Logger

	Name        string
	ConfigPath  string
	UpdateEvery int
	Debug       bool
	Out         io.Writer

	api *netdataapi.API

	restart      chan struct{}
	dontObsolete atomic.Bool
}

func New(opts Options) *Agent {
	return &Agent{
		Logger: logger.New().With(
			slog.String("component", "agent"),
		),
		Name:        opts.Name,
		ConfigPath:  opts.ConfigPath,
		UpdateEvery: opts.UpdateEvery,
		Debug:       opts.Debug,
		Out:         safewriter.Stdout,
		api:         netdataapi.New(safewriter.Stdout),
		restart:     make(chan struct{}, 1),
	}
}

// Run starts the Agent. It returns only through os.Exit.
func (a *Agent) Run() {
	go a.keepAlive()
	serve(a)
}

func serve(a *Agent) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	var wg sync.WaitGroup

	var exit bool

	for {
		ctx, cancel := context.WithCancel(context.Background())

		wg.Add(1)
		go func() { defer wg.Done(); a.runInstance(ctx) }()

		select {
		case sig := <-ch:
			switch sig {
			case syscall.SIGHUP:
				a.Infof("received %s signal (%d). Restarting running instance", sig, sig)
			default:
				a.Infof("received %s signal (%d). Terminating...", sig, sig)
				a.dontObsolete.Store(true)
				exit = true
			}
		case <-a.restart:
			a.Info("configuration changed. Restarting running instance")
		}

		cancel()

		func() {
			timeout := time.Second * 10
			t := time.NewTimer(timeout)
			defer t.Stop()
			done := make(chan struct{})

			go func() { wg.Wait(); close(done) }()

			select {
			case <-t.C:
				a.Errorf("stopping all goroutines timed out after %s. Exiting...", timeout)
				os.Exit(0)
			case <-done:
			}
		}()

		if exit {
			os.Exit(0)
		}

		time.Sleep(time.Second)
	}
}

func (a *Agent) runInstance(ctx context.Context) {
	a.Info("instance is started")
	defer func() { a.Info("instance is stopped") }()

	cfg, err := a.loadConfig()
	if err != nil {
		a.Errorf("load config: %v", err)
		if isTerminal {
			os.Exit(1)
		}
		a.api.DISABLE()
		return
	}
	a.Infof("using config: %s", cfg)

	inst, err := a.setup(cfg)
	if err != nil {
		a.Error(err)
		if isTerminal {
			os.Exit(1)
		}
		return
	}
	defer inst.cleanup(!a.dontObsolete.Load())

	if err := inst.run(ctx, a.restart); err != nil {
		a.Errorf("instance: %v", err)
	}
}

func (a *Agent) loadConfig() (Config, error) {
	cfg, err := LoadConfig(a.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if a.UpdateEvery > 0 {
		cfg.UpdateEvery = clamp(a.UpdateEvery, minUpdateEvery, maxUpdateEvery)
	}
	if _, err := engine.ParseChunkMode(cfg.EntitiesByChunk.Mode); err != nil {
		a.Warningf("config: %v, using '%s' from enable.entities_by_chunk", err, cfg.ChunkMode())
	}
	if cfg.LogLevel != "" && !a.Debug {
		if err := logger.Level.SetByName(cfg.LogLevel); err != nil {
			a.Warningf("config: %v", err)
		}
	}
	return cfg, nil
}

func (a *Agent) keepAlive() {
	if isTerminal {
		return
	}

	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	var n int
	for range tk.C {
		if err := a.api.EMPTYLINE(); err != nil {
			a.Infof("keepAlive: %v", err)
			n++
		} else {
			n = 0
		}
		if n == 3 {
			a.Info("too many keepAlive errors. Terminating...")
			os.Exit(0)
		}
	}
}
