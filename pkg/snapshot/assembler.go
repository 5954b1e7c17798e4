// SPDX-License-Identifier: GPL-3.0-or-later

package snapshot

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/gaugestore"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/viewers"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

// AssemblerConfig lists the sources a snapshot is read from.
// A nil source disables its group.
type AssemblerConfig struct {
	EntitiesByWorld *gaugestore.Store[worldkey.World]
	EntitiesByType  *gaugestore.Store[worldkey.EntityType]
	EntitiesByChunk *gaugestore.Store[worldkey.ChunkEntity]
	ChunksByWorld   *gaugestore.Store[worldkey.World]
	Viewers         *viewers.Tracker
	Sampler         Sampler
	Totals          func() Totals
	Logger          *logger.Logger
}

type Assembler struct {
	*logger.Logger

	cfg AssemblerConfig
	seq atomic.Uint64
}

func NewAssembler(cfg AssemblerConfig) *Assembler {
	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}
	return &Assembler{
		Logger: log.With(slog.String("component", "snapshot")),
		cfg:    cfg,
	}
}

// Build reads every source once and returns a new snapshot stamped with now.
func (a *Assembler) Build(now time.Time) *Snapshot {
	d := Data{
		Time: now,
		Seq:  a.seq.Add(1),
	}

	if s := a.cfg.EntitiesByWorld; s != nil {
		d.EntitiesByWorld = stringKeys(s.Snapshot())
	}
	if s := a.cfg.EntitiesByType; s != nil {
		d.EntitiesByType = stringKeys(s.Snapshot())
	}
	if s := a.cfg.EntitiesByChunk; s != nil {
		d.EntitiesByChunk = s.Snapshot()
	}
	if s := a.cfg.ChunksByWorld; s != nil {
		d.ChunksByWorld = stringKeys(s.Snapshot())
	}
	if a.cfg.Viewers != nil {
		v := a.cfg.Viewers.Exclusive()
		d.ExclusiveChunks = &v
	}
	if a.cfg.Totals != nil {
		d.Totals = a.cfg.Totals()
	}

	smp := a.sample()
	if smp.PlayersOnline != nil {
		d.PlayersOnline = *smp.PlayersOnline
	}
	d.TPS = smp.TPS
	d.MSPTAvg = smp.MSPTAvg
	d.MSPTP95 = smp.MSPTP95
	d.ScalarSource = smp.Source

	return New(d)
}

// sample returns the measured scalars. Errors and panics are logged and leave
// the fields the sampler did not return absent.
func (a *Assembler) sample() Sample {
	if a.cfg.Sampler == nil {
		return Sample{}
	}

	var (
		smp Sample
		err error
		pc  panics.Catcher
	)
	pc.Try(func() { smp, err = a.cfg.Sampler.Sample() })

	if rec := pc.Recovered(); rec != nil {
		a.Warningf("scalar sample: PANIC: %v", rec.Value)
		a.Debugf("sampler panic stack:\n%s", rec.Stack)
		return Sample{}
	}
	if err != nil {
		a.Warningf("scalar sample: %v", err)
	}
	return smp
}

func stringKeys[K ~string](m map[K]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
