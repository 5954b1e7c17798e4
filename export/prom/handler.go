// SPDX-License-Identifier: GPL-3.0-or-later

// Package prom exposes the latest engine snapshot in the Prometheus text format.
package prom

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/snapshot"
	"github.com/netdata/netdata/go/world.d.plugin/pkg/worldkey"
)

const namespace = "minecraft_"

// SnapshotFunc returns the latest published snapshot.
type SnapshotFunc func() *snapshot.Snapshot

type Handler struct {
	*logger.Logger
	latest SnapshotFunc
}

func NewHandler(latest SnapshotFunc, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New()
	}
	return &Handler{
		Logger: log.With(slog.String("component", "prometheus handler")),
		latest: latest,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var s *snapshot.Snapshot
	if h.latest != nil {
		s = h.latest()
	}
	if s == nil {
		s = snapshot.Empty()
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, s); err != nil {
		h.Warning(err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(buf.Bytes())
	}
}

// WriteText writes s to w in the Prometheus text exposition format.
func WriteText(w io.Writer, s *snapshot.Snapshot) error {
	for _, mf := range Families(s) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode '%s': %v", mf.GetName(), err)
		}
	}
	return nil
}

// Families converts s into metric families. Groups absent from s produce no family.
func Families(s *snapshot.Snapshot) []*dto.MetricFamily {
	var mfs []*dto.MetricFamily

	mfs = append(mfs, gauge("players_online", "Players currently online.", metric(float64(s.PlayersOnline()))))

	if m, ok := s.EntitiesByWorld(); ok {
		mfs = append(mfs, gauge("entities_loaded", "Loaded entities per world.", byLabel(m, "world")...))
	}
	if m, ok := s.EntitiesByType(); ok {
		mfs = append(mfs, gauge("entities_loaded_by_type", "Loaded entities per entity type.", byLabel(m, "entity_type")...))
	}
	if m, ok := s.EntitiesByChunk(); ok {
		mfs = append(mfs, gauge("entities_loaded_by_type_chunk", "Loaded entities per chunk and entity type.", byChunk(m)...))
	}
	if m, ok := s.ChunksByWorld(); ok {
		mfs = append(mfs, gauge("chunks_loaded", "Loaded chunks per world.", byLabel(m, "world")...))
	}
	if v, ok := s.ExclusiveChunks(); ok {
		mfs = append(mfs, gauge("chunks_exclusive", "Chunks viewed by exactly one player.", metric(float64(v))))
	}

	if tps, ok := s.TPS(); ok {
		var ms []*dto.Metric
		for i, w := range snapshot.TPSWindows {
			if i < len(tps) {
				ms = append(ms, metric(tps[i], "window", w))
			}
		}
		mfs = append(mfs, gauge("server_tps", "Server ticks per second.", ms...))
	}
	if v, ok := s.MSPTAvg(); ok {
		mfs = append(mfs, gauge("server_mspt_avg", "Average milliseconds per tick.", metric(v)))
	}
	if v, ok := s.MSPTP95(); ok {
		mfs = append(mfs, gauge("server_mspt_p95", "95th percentile milliseconds per tick.", metric(v)))
	}

	t := s.Totals()
	mfs = append(mfs,
		counter("entities_added_total", "Entity add events since start.", t.EntitiesAdded),
		counter("entities_removed_total", "Entity remove events since start.", t.EntitiesRemoved),
		counter("chunks_loaded_total", "Chunk load events since start.", t.ChunksLoaded),
		counter("chunks_unloaded_total", "Chunk unload events since start.", t.ChunksUnloaded),
	)

	// the text encoder rejects families without samples
	return slices.DeleteFunc(mfs, func(mf *dto.MetricFamily) bool { return len(mf.Metric) == 0 })
}

func gauge(name, help string, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(namespace + name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: ms,
	}
}

func counter(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(float64(v))}},
		},
	}
}

// metric builds a gauge sample; labels are name/value pairs.
func metric(v float64, labels ...string) *dto.Metric {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	return m
}

func byLabel(m map[string]int64, label string) []*dto.Metric {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ms := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		ms = append(ms, metric(float64(m[k]), label, k))
	}
	return ms
}

func byChunk(m map[worldkey.ChunkEntity]int64) []*dto.Metric {
	keys := make([]worldkey.ChunkEntity, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b worldkey.ChunkEntity) int {
		return cmp.Or(
			cmp.Compare(a.World, b.World),
			cmp.Compare(a.X, b.X),
			cmp.Compare(a.Z, b.Z),
			cmp.Compare(a.Type, b.Type),
		)
	})

	ms := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		ms = append(ms, metric(float64(m[k]),
			"world", k.World,
			"chunk_x", strconv.Itoa(int(k.X)),
			"chunk_z", strconv.Itoa(int(k.Z)),
			"entity_type", k.Type,
		))
	}
	return ms
}
