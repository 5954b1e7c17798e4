// SPDX-License-Identifier: GPL-3.0-or-later

// Package rcon samples TPS and the online player count from a game server over RCON.
package rcon

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/confopt"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
)

type Config struct {
	Address  string           `yaml:"address" json:"address"`
	Password string           `yaml:"password" json:"password"`
	Timeout  confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// DefaultConfig points at the default RCON port on localhost.
func DefaultConfig() Config {
	return Config{
		Address: "127.0.0.1:25575",
		Timeout: confopt.Duration(time.Second),
	}
}

// Sampler implements snapshot.Sampler. The connection is opened lazily and
// dropped after any failed query; the next Sample dials again.
type Sampler struct {
	*logger.Logger

	cfg     Config
	newConn func(Config) rconConn

	mu   sync.Mutex
	conn rconConn
}

var _ snapshot.Sampler = (*Sampler)(nil)

func New(cfg Config) (*Sampler, error) {
	if cfg.Address == "" {
		return nil, errors.New("config: 'address' required but not set")
	}
	if cfg.Password == "" {
		return nil, errors.New("config: 'password' required but not set")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Sampler{
		Logger:  logger.New().With(slog.String("component", "rcon"), slog.String("address", cfg.Address)),
		cfg:     cfg,
		newConn: newRconConn,
	}, nil
}

func (s *Sampler) Sample() (snapshot.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn := s.newConn(s.cfg)
		if err := conn.connect(); err != nil {
			return snapshot.Sample{}, err
		}
		s.conn = conn
	}

	tps, err := s.sampleTPS()
	if err != nil {
		s.disconnect()
		return snapshot.Sample{}, fmt.Errorf("failed to collect '%s': %v", cmdTPS, err)
	}

	players, err := s.samplePlayers()
	if err != nil {
		s.disconnect()
		return snapshot.Sample{}, fmt.Errorf("failed to collect '%s': %v", cmdList, err)
	}

	return snapshot.Sample{
		PlayersOnline: &players,
		TPS:           tps,
		Source:        "rcon",
	}, nil
}

// Close drops the connection.
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnect()
}

func (s *Sampler) sampleTPS() ([]float64, error) {
	resp, err := s.conn.queryTps()
	if err != nil {
		return nil, err
	}
	s.Debugf("cmd '%s' response: %s", cmdTPS, resp)

	tps := make([]float64, len(snapshot.TPSWindows))
	err = parseResponse(resp, reTPS, func(name string, v float64) {
		switch name {
		case "tps_1min":
			tps[0] = v
		case "tps_5min":
			tps[1] = v
		case "tps_15min":
			tps[2] = v
		}
	})
	return tps, err
}

func (s *Sampler) samplePlayers() (int64, error) {
	resp, err := s.conn.queryList()
	if err != nil {
		return 0, err
	}
	s.Debugf("cmd '%s' response: %s", cmdList, resp)

	var players int64
	err = parseResponse(resp, reList, func(name string, v float64) {
		switch name {
		case "players", "hidden_players":
			players += int64(v)
		}
	})
	return players, err
}

func (s *Sampler) disconnect() {
	if s.conn == nil {
		return
	}
	if err := s.conn.disconnect(); err != nil {
		s.Warningf("error on disconnect: %s", err)
	}
	s.conn = nil
}
