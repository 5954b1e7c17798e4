// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/netdata/netdata/go/world.d.plugin/agent/engine"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/confopt"
	"github.com/netdata/netdata/go/world.d.plugin/source/rcon"
	"github.com/netdata/netdata/go/world.d.plugin/source/sim"
)

const (
	minUpdateEvery      = 1
	maxUpdateEvery      = 60
	minBaselineInterval = 5
	maxBaselineInterval = 300

	sourceSim = "sim"
)

// Config is the plugin configuration file.
type Config struct {
	Instance             string   `yaml:"instance"`
	LogLevel             string   `yaml:"log_level"`
	UpdateEvery          int      `yaml:"update_every"`
	BaselineScanInterval int      `yaml:"baseline_scan_interval"`
	Worlds               []string `yaml:"worlds"`
	Enable               struct {
		Tick     confopt.FlexBool `yaml:"tick"`
		Entities confopt.FlexBool `yaml:"entities"`
		// EntitiesByChunk is the legacy switch. It picks heavy or off when entities_by_chunk.mode
		// is blank or unknown.
		EntitiesByChunk confopt.FlexBool `yaml:"entities_by_chunk"`
		Chunks          confopt.FlexBool `yaml:"chunks"`
		TPSMSPT         confopt.FlexBool `yaml:"tps_mspt"`
	} `yaml:"enable"`
	EntitiesByChunk struct {
		Mode string `yaml:"mode"`
	} `yaml:"entities_by_chunk"`
	PreferRCON confopt.FlexBool `yaml:"prefer_rcon"`
	RCON       rcon.Config      `yaml:"rcon"`
	Source     string           `yaml:"source"`
	Sim        sim.Config       `yaml:"sim"`
	HTTP       struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	LockDir string `yaml:"lock_dir"`

	chunkMode engine.ChunkMode
}

func DefaultConfig() Config {
	var cfg Config
	cfg.Instance = "local"
	cfg.UpdateEvery = 1
	cfg.BaselineScanInterval = 10
	cfg.Worlds = []string{"*"}
	cfg.Enable.Tick = true
	cfg.Enable.Entities = true
	cfg.Enable.Chunks = true
	cfg.Enable.TPSMSPT = true
	cfg.PreferRCON = true
	cfg.RCON = rcon.DefaultConfig()
	cfg.Source = sourceSim
	cfg.Sim = sim.DefaultConfig()
	return cfg
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("config: '%s': %v", path, err)
	}

	return cfg.normalize()
}

func (c Config) normalize() (Config, error) {
	if c.BaselineScanInterval < 0 {
		return c, fmt.Errorf("config: negative baseline_scan_interval (%d)", c.BaselineScanInterval)
	}
	if c.UpdateEvery < 0 {
		return c, fmt.Errorf("config: negative update_every (%d)", c.UpdateEvery)
	}

	c.UpdateEvery = clamp(c.UpdateEvery, minUpdateEvery, maxUpdateEvery)
	c.BaselineScanInterval = clamp(c.BaselineScanInterval, minBaselineInterval, maxBaselineInterval)

	c.Instance = strings.TrimSpace(c.Instance)
	if c.Instance == "" {
		c.Instance = "local"
	}
	if c.Source == "" {
		c.Source = sourceSim
	}
	if c.Source != sourceSim {
		return c, fmt.Errorf("config: unknown source '%s'", c.Source)
	}
	c.chunkMode = c.resolveChunkMode()
	if !c.Enable.Entities {
		c.chunkMode = engine.ChunkModeOff
	}
	if len(c.Worlds) == 0 {
		return c, errors.New("config: 'worlds' selects nothing")
	}

	return c, nil
}

func (c Config) String() string {
	return fmt.Sprintf("instance '%s', update_every '%d', baseline_scan_interval '%d', worlds '%s', entities_by_chunk '%s', source '%s'",
		c.Instance, c.UpdateEvery, c.BaselineScanInterval, strings.Join(c.Worlds, ","), c.chunkMode, c.Source)
}

func (c Config) features() engine.Features {
	return engine.Features{
		Tick:            c.Enable.Tick.Bool(),
		Entities:        c.Enable.Entities.Bool(),
		EntitiesByChunk: c.chunkMode,
		Chunks:          c.Enable.Chunks.Bool(),
		TPSMSPT:         c.Enable.TPSMSPT.Bool(),
	}
}

// ChunkMode is the resolved entities_by_chunk mode.
func (c Config) ChunkMode() engine.ChunkMode { return c.chunkMode }

func (c Config) resolveChunkMode() engine.ChunkMode {
	if mode, err := engine.ParseChunkMode(c.EntitiesByChunk.Mode); err == nil && strings.TrimSpace(c.EntitiesByChunk.Mode) != "" {
		return mode
	}
	if c.Enable.EntitiesByChunk {
		return engine.ChunkModeHeavy
	}
	return engine.ChunkModeOff
}

func (c Config) baselineInterval() time.Duration {
	return time.Duration(c.BaselineScanInterval) * time.Second
}

func (c Config) rconEnabled() bool {
	return c.PreferRCON.Bool() && c.RCON.Address != "" && c.RCON.Password != ""
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
