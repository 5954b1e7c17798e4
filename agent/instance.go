// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netdata/netdata/go/world.d.plugin/agent/confwatch"
	"github.com/netdata/netdata/go/world.d.plugin/agent/engine"
	"github.com/netdata/netdata/go/world.d.plugin/agent/filelock"
	"github.com/netdata/netdata/go/world.d.plugin/agent/sampling"
	"github.com/netdata/netdata/go/world.d.plugin/export/netdata"
	"github.com/netdata/netdata/go/world.d.plugin/export/prom"
	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/source/rcon"
	"github.com/netdata/netdata/go/world.d.plugin/source/sim"
)

// simStepEvery is the game server tick length, 20 ticks per second.
const simStepEvery = 50 * time.Millisecond

// instance is one configured run: everything between two restarts.
type instance struct {
	*logger.Logger

	cfg        Config
	configPath string

	locker   *filelock.Locker
	world    *sim.World
	rcon     *rcon.Sampler
	engine   *engine.Engine
	exporter *netdata.Exporter
	sub      engine.Subscription
	sched    *sampling.Scheduler
	httpSrv  *http.Server
}

func (a *Agent) setup(cfg Config) (*instance, error) {
	inst := &instance{
		Logger:     a.Logger,
		cfg:        cfg,
		configPath: a.ConfigPath,
	}

	if err := inst.init(a.Name, a.Out); err != nil {
		inst.cleanup(false)
		return nil, err
	}
	return inst, nil
}

func (inst *instance) init(pluginName string, out io.Writer) error {
	cfg := inst.cfg

	if cfg.LockDir != "" {
		locker := filelock.New(cfg.LockDir)
		ok, err := locker.Lock(cfg.Instance)
		if err != nil {
			return fmt.Errorf("lock instance '%s': %v", cfg.Instance, err)
		}
		if !ok {
			return fmt.Errorf("instance '%s' is tracked by another process", cfg.Instance)
		}
		inst.locker = locker
	}

	world, err := sim.New(cfg.Sim)
	if err != nil {
		return err
	}
	inst.world = world

	var primary snapshot.Sampler
	if cfg.rconEnabled() {
		s, err := rcon.New(cfg.RCON)
		if err != nil {
			inst.Warningf("rcon sampler disabled: %v", err)
		} else {
			inst.rcon = s
			primary = s
		}
	}

	eng, err := engine.New(engine.Config{
		Features:         cfg.features(),
		BaselineInterval: cfg.baselineInterval(),
		Worlds:           cfg.Worlds,
		Sampler:          primary,
	}, world.Host())
	if err != nil {
		return err
	}
	inst.engine = eng

	// seed from scans first: with complete entity events scans are skipped
	eng.Init()
	world.Attach(eng)
	eng.SetEntityEventsAvailable(cfg.Sim.DropEvents == 0)

	if out != nil {
		exp, err := netdata.New(netdata.Config{
			Out:         out,
			PluginName:  pluginName,
			Instance:    cfg.Instance,
			UpdateEvery: cfg.UpdateEvery,
			Labels:      map[string]string{"instance": cfg.Instance, "source": cfg.Source},
		})
		if err != nil {
			return err
		}
		inst.exporter = exp
		inst.sub = eng.Subscribe(exp)
	}

	inst.sched = sampling.New(sampling.Config{
		UpdateEvery: cfg.UpdateEvery,
		Tick:        func(now time.Time) { eng.Tick(now) },
	})

	if cfg.HTTP.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.NewHandler(eng.Snapshot, nil))
		inst.httpSrv = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return nil
}

// run blocks until ctx is done or a component fails. A configuration change
// is reported on restart.
func (inst *instance) run(ctx context.Context, restart chan<- struct{}) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { inst.sched.Run(ctx); return nil })
	g.Go(func() error { inst.stepWorld(ctx); return nil })

	if inst.httpSrv != nil {
		g.Go(func() error { return inst.serveHTTP(ctx) })
	}

	if inst.configPath != "" {
		g.Go(func() error {
			inst.watchConfig(ctx, restart)
			return nil
		})
	}

	return g.Wait()
}

func (inst *instance) stepWorld(ctx context.Context) {
	tk := time.NewTicker(simStepEvery)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			inst.world.Step()
		}
	}
}

func (inst *instance) serveHTTP(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		inst.Infof("serving metrics on '%s'", inst.httpSrv.Addr)
		errCh <- inst.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %v", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = inst.httpSrv.Shutdown(sctx)
		return nil
	}
}

func (inst *instance) watchConfig(ctx context.Context, restart chan<- struct{}) {
	changed := make(chan struct{})
	w := confwatch.New(inst.configPath, func(path string) (any, error) { return LoadConfig(path) })

	go w.Run(ctx, changed)

	select {
	case <-ctx.Done():
	case <-changed:
		select {
		case restart <- struct{}{}:
		default:
		}
	}
}

// cleanup releases everything init acquired. Charts are marked obsolete
// unless the plugin is terminating.
func (inst *instance) cleanup(obsolete bool) {
	if inst.engine != nil && inst.exporter != nil {
		inst.engine.Unsubscribe(inst.sub)
		if obsolete {
			inst.exporter.Cleanup()
		}
	}
	if inst.rcon != nil {
		inst.rcon.Close()
	}
	if inst.locker != nil {
		inst.locker.UnlockAll()
	}
}
