// SPDX-License-Identifier: GPL-3.0-or-later

package sim

import (
	"errors"
	"fmt"
)

type Config struct {
	Seed     int64 `yaml:"seed" json:"seed"`
	Worlds   int   `yaml:"worlds" json:"worlds"`
	Players  int   `yaml:"players" json:"players"`
	Entities int   `yaml:"entities" json:"entities"`
	// DropEvents is the fraction of events that are never delivered.
	DropEvents float64 `yaml:"drop_events" json:"drop_events"`
	// ViewDistance is the radius, in chunks, every player keeps loaded.
	ViewDistance int `yaml:"view_distance" json:"view_distance"`
}

func DefaultConfig() Config {
	return Config{
		Seed:         1,
		Worlds:       3,
		Players:      8,
		Entities:     200,
		ViewDistance: 2,
	}
}

func (c Config) validate() error {
	if c.Worlds < 1 {
		return errors.New("sim: at least one world required")
	}
	if c.Players < 0 || c.Entities < 0 {
		return errors.New("sim: negative population")
	}
	if c.DropEvents < 0 || c.DropEvents > 1 {
		return fmt.Errorf("sim: drop_events must be within [0, 1], got %v", c.DropEvents)
	}
	if c.ViewDistance < 0 || c.ViewDistance > 16 {
		return fmt.Errorf("sim: view_distance must be within [0, 16], got %d", c.ViewDistance)
	}
	return nil
}
