package dataset

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives build progress events. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordCell(split string)
	RecordSkip(reason string)
	RecordUnknownTokens(n int)
	RecordShard(split string, sizeBytes int64)
}

// NopMetrics discards all events.
type NopMetrics struct{}

func (NopMetrics) RecordCell(string)         {}
func (NopMetrics) RecordSkip(string)         {}
func (NopMetrics) RecordUnknownTokens(int)   {}
func (NopMetrics) RecordShard(string, int64) {}

var expvarSeq uint64

// ExpvarMetrics publishes build counters via expvar for deployments that
// prefer process-local metrics without external dependencies.
type ExpvarMetrics struct {
	name string

	mu         sync.Mutex
	cells      map[string]int64
	skips      map[string]int64
	unknown    int64
	shardBytes map[string]int64
	shards     map[string]int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded counters.
type ExpvarMetricsSnapshot struct {
	Cells      map[string]int64 `json:"cells_total"`
	Skips      map[string]int64 `json:"skipped_total"`
	Unknown    int64            `json:"unknown_tokens_total"`
	ShardBytes map[string]int64 `json:"shard_bytes_total"`
	Shards     map[string]int64 `json:"shards_total"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// NewExpvarMetrics constructs an expvar-backed recorder published under the
// supplied name. When name is empty, a unique identifier is generated.
func NewExpvarMetrics(name string) *ExpvarMetrics {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("dataset_build_metrics_%d", id)
	}
	rec := &ExpvarMetrics{
		name:       name,
		cells:      make(map[string]int64),
		skips:      make(map[string]int64),
		shardBytes: make(map[string]int64),
		shards:     make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetrics) Name() string { return r.name }

// Snapshot returns an immutable copy of the aggregated counters.
func (r *ExpvarMetrics) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarMetricsSnapshot{
		Cells:      cloneCounts(r.cells),
		Skips:      cloneCounts(r.skips),
		Unknown:    r.unknown,
		ShardBytes: cloneCounts(r.shardBytes),
		Shards:     cloneCounts(r.shards),
		RecordedAt: time.Now().UTC(),
	}
}

func (r *ExpvarMetrics) RecordCell(split string) {
	r.mu.Lock()
	r.cells[split]++
	r.mu.Unlock()
}

func (r *ExpvarMetrics) RecordSkip(reason string) {
	r.mu.Lock()
	r.skips[reason]++
	r.mu.Unlock()
}

func (r *ExpvarMetrics) RecordUnknownTokens(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.unknown += int64(n)
	r.mu.Unlock()
}

func (r *ExpvarMetrics) RecordShard(split string, sizeBytes int64) {
	r.mu.Lock()
	r.shards[split]++
	r.shardBytes[split] += sizeBytes
	r.mu.Unlock()
}

func cloneCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// PrometheusMetrics exposes build counters on a prometheus registry.
type PrometheusMetrics struct {
	cells      *prometheus.CounterVec
	skips      *prometheus.CounterVec
	unknown    prometheus.Counter
	shards     *prometheus.CounterVec
	shardBytes *prometheus.CounterVec
}

// NewPrometheusMetrics registers the build counters on the supplied
// registerer and returns the recorder.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellseq_dataset_cells_total",
			Help: "Records written to the dataset, by split.",
		}, []string{"split"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellseq_dataset_skipped_records_total",
			Help: "Records skipped during dataset construction, by reason.",
		}, []string{"reason"}),
		unknown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cellseq_dataset_unknown_tokens_total",
			Help: "Unknown-gene tokens encountered while writing records.",
		}),
		shards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellseq_dataset_shards_total",
			Help: "Shards flushed, by split.",
		}, []string{"split"}),
		shardBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cellseq_dataset_shard_bytes_total",
			Help: "Bytes flushed to shard artifacts, by split.",
		}, []string{"split"}),
	}
	for _, c := range []prometheus.Collector{m.cells, m.skips, m.unknown, m.shards, m.shardBytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordCell(split string) {
	m.cells.WithLabelValues(split).Inc()
}

func (m *PrometheusMetrics) RecordSkip(reason string) {
	m.skips.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordUnknownTokens(n int) {
	if n > 0 {
		m.unknown.Add(float64(n))
	}
}

func (m *PrometheusMetrics) RecordShard(split string, sizeBytes int64) {
	m.shards.WithLabelValues(split).Inc()
	m.shardBytes.WithLabelValues(split).Add(float64(sizeBytes))
}
