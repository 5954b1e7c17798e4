// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"io"
	"time"

	"github.com/netdata/netdata/go/world.d.plugin/export/prom"
)

// Dump runs one sampling round without exporters and writes the snapshot to w
// in the Prometheus text format.
func (a *Agent) Dump(w io.Writer) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	cfg.LockDir = ""
	cfg.HTTP.Listen = ""

	inst := &instance{Logger: a.Logger, cfg: cfg}
	defer inst.cleanup(false)

	if err := inst.init(a.Name, nil); err != nil {
		return err
	}

	inst.world.Step()
	snap := inst.engine.Tick(time.Now())

	return prom.WriteText(w, snap)
}
