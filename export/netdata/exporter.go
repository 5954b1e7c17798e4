// SPDX-License-Identifier: GPL-3.0-or-later

// Package netdata renders engine snapshots as netdata external plugin charts.
package netdata

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/netdataapi"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
)

const labelSourceAuto = 1

type Config struct {
	Out         io.Writer
	PluginName  string
	Instance    string
	UpdateEvery int
	Labels      map[string]string
	Logger      *logger.Logger
}

// Exporter is an engine listener that writes every snapshot to Out.
// Charts are created the first time their group is present in a snapshot.
type Exporter struct {
	*logger.Logger

	out         io.Writer
	pluginName  string
	typeID      string
	updateEvery int
	labels      map[string]string

	mu      sync.Mutex
	buf     *bytes.Buffer
	api     *netdataapi.API
	charts  []*chart
	byID    map[string]*chart
	prevRun time.Time
}

func New(cfg Config) (*Exporter, error) {
	if cfg.Out == nil {
		return nil, errors.New("netdata: nil output")
	}
	if cfg.Instance == "" {
		return nil, errors.New("netdata: empty instance name")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New()
	}

	buf := &bytes.Buffer{}

	return &Exporter{
		Logger:      log.With(slog.String("component", "netdata exporter")),
		out:         cfg.Out,
		pluginName:  cfg.PluginName,
		typeID:      "world_" + cleanID(cfg.Instance),
		updateEvery: max(cfg.UpdateEvery, 1),
		labels:      cfg.Labels,
		buf:         buf,
		api:         netdataapi.New(buf),
		byID:        make(map[string]*chart),
	}, nil
}

// OnSnapshot implements engine.Listener.
func (e *Exporter) OnSnapshot(s *snapshot.Snapshot) {
	if s == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mx := collect(s)
	e.ensureCharts(s)

	since := 0
	if !e.prevRun.IsZero() {
		since = int(s.Time().Sub(e.prevRun).Microseconds())
	}
	e.prevRun = s.Time()

	for _, c := range e.charts {
		if c.obsolete {
			continue
		}
		if !c.created || c.dimsAdded {
			e.createChart(c)
		}
		e.updateChart(c, mx, since)
	}

	e.flush()
}

// Cleanup marks every created chart obsolete.
func (e *Exporter) Cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.charts {
		if !c.created || c.obsolete {
			continue
		}
		c.obsolete = true
		e.api.CHART(e.chartOpts(c, "obsolete"))
	}
	e.flush()
}

func (e *Exporter) flush() {
	if e.buf.Len() == 0 {
		return
	}
	if _, err := io.Copy(e.out, e.buf); err != nil {
		e.Warningf("write: %v", err)
	}
	e.buf.Reset()
}

func (e *Exporter) chart(id string, newChart func() *chart) *chart {
	if c, ok := e.byID[id]; ok {
		return c
	}
	c := newChart()
	e.byID[id] = c
	e.charts = append(e.charts, c)
	slices.SortStableFunc(e.charts, func(a, b *chart) int { return a.Priority - b.Priority })
	return c
}

func (e *Exporter) ensureCharts(s *snapshot.Snapshot) {
	e.chart("players_online", newPlayersChart)

	entities, hasEntities := s.EntitiesByWorld()
	if hasEntities {
		c := e.chart("entities_loaded", newEntitiesChart)
		for _, w := range sortedKeys(entities) {
			c.addDim(&dim{ID: worldEntitiesDimID(w), Name: w})
		}
		e.chart("entity_events", newEntityEventsChart)
	}
	if types, ok := s.EntitiesByType(); ok {
		c := e.chart("entities_loaded_by_type", newEntitiesByTypeChart)
		for _, t := range sortedKeys(types) {
			c.addDim(&dim{ID: typeEntitiesDimID(t), Name: t})
		}
	}

	chunks, hasChunks := s.ChunksByWorld()
	if hasChunks {
		c := e.chart("chunks_loaded", newChunksChart)
		for _, w := range sortedKeys(chunks) {
			c.addDim(&dim{ID: worldChunksDimID(w), Name: w})
		}
		e.chart("chunks_per_player", newChunksPerPlayerChart)
		e.chart("chunk_events", newChunkEventsChart)
	}
	if hasEntities && hasChunks {
		e.chart("entities_per_chunk", newEntitiesPerChunkChart)
	}
	if _, ok := s.ExclusiveChunks(); ok {
		e.chart("chunks_exclusive", newChunksExclusiveChart)
	}

	if _, ok := s.TPS(); ok {
		e.chart("tps", newTPSChart)
	}
	_, hasAvg := s.MSPTAvg()
	_, hasP95 := s.MSPTP95()
	if hasAvg || hasP95 {
		e.chart("mspt", newMSPTChart)
	}
}

func (e *Exporter) chartOpts(c *chart, options string) netdataapi.ChartOpts {
	return netdataapi.ChartOpts{
		TypeID:      e.typeID,
		ID:          c.ID,
		Title:       c.Title,
		Units:       c.Units,
		Family:      c.Fam,
		Context:     c.Ctx,
		ChartType:   c.Type,
		Priority:    c.Priority,
		UpdateEvery: e.updateEvery,
		Options:     options,
		Plugin:      e.pluginName,
		Module:      "world",
	}
}

func (e *Exporter) createChart(c *chart) {
	e.api.CHART(e.chartOpts(c, ""))

	for _, k := range sortedKeys(e.labels) {
		e.api.CLABEL(k, e.labels[k], labelSourceAuto)
	}
	e.api.CLABEL("_collect_plugin", e.pluginName, labelSourceAuto)
	e.api.CLABELCOMMIT()

	for _, d := range c.Dims {
		e.api.DIMENSION(netdataapi.DimensionOpts{
			ID:         d.ID,
			Name:       d.Name,
			Algorithm:  orDefault(d.Algo, "absolute"),
			Multiplier: orDefault(d.Mul, 1),
			Divisor:    orDefault(d.Div, 1),
		})
	}

	c.created = true
	c.dimsAdded = false
}

func (e *Exporter) updateChart(c *chart, mx map[string]int64, since int) {
	e.api.BEGIN(e.typeID, c.ID, since)
	for _, d := range c.Dims {
		if v, ok := mx[d.ID]; ok {
			e.api.SET(d.ID, v)
		} else {
			e.api.SETEMPTY(d.ID)
		}
	}
	e.api.END()
}

func collect(s *snapshot.Snapshot) map[string]int64 {
	mx := map[string]int64{
		"players_online": s.PlayersOnline(),
	}
	players := s.PlayersOnline()

	entitiesTotal, hasEntities := s.EntitiesTotal()
	if m, ok := s.EntitiesByWorld(); ok {
		for w, v := range m {
			mx[worldEntitiesDimID(w)] += v
		}
	}
	if m, ok := s.EntitiesByType(); ok {
		for t, v := range m {
			mx[typeEntitiesDimID(t)] += v
		}
	}

	chunksTotal, hasChunks := s.ChunksTotal()
	if m, ok := s.ChunksByWorld(); ok {
		for w, v := range m {
			mx[worldChunksDimID(w)] += v
		}
		if players > 0 {
			mx["chunks_per_player_total"] = chunksTotal * precisionRatio / players
		}
	}

	if v, ok := s.ExclusiveChunks(); ok {
		mx["chunks_exclusive"] = v
		if players > 0 {
			mx["chunks_per_player_exclusive"] = v * precisionRatio / players
		}
	}

	if hasEntities && hasChunks && chunksTotal > 0 {
		mx["entities_per_chunk"] = entitiesTotal * precisionRatio / chunksTotal
	}

	if tps, ok := s.TPS(); ok {
		for i, w := range snapshot.TPSWindows {
			if i < len(tps) {
				mx["tps_"+w] = int64(math.Round(tps[i] * precisionTPS))
			}
		}
	}
	if v, ok := s.MSPTAvg(); ok {
		mx["mspt_avg"] = int64(math.Round(v * precisionMSPT))
	}
	if v, ok := s.MSPTP95(); ok {
		mx["mspt_p95"] = int64(math.Round(v * precisionMSPT))
	}

	t := s.Totals()
	mx["entities_added"] = t.EntitiesAdded
	mx["entities_removed"] = t.EntitiesRemoved
	mx["chunks_loaded"] = t.ChunksLoaded
	mx["chunks_unloaded"] = t.ChunksUnloaded

	return mx
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
