package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"cellseq/internal/blob"
	"cellseq/internal/manifest"
	"cellseq/internal/vocab"
)

// DefaultShardSize is the number of records per shard when unconfigured.
// It bounds builder memory: at most one shard per split is buffered.
const DefaultShardSize = 1024

// BuilderConfig wires a dataset build run.
type BuilderConfig struct {
	// RunID names the run and prefixes every artifact key. Required.
	RunID string
	// Seed feeds split assignment. Same seed, same assignments.
	Seed string
	// Ratios partition cells into splits; nil selects DefaultRatios.
	Ratios []SplitRatio
	// ShardSize is records per shard; zero selects DefaultShardSize.
	ShardSize int
	// Vocabulary is the exact vocabulary the sentences were encoded with.
	// It is persisted with the dataset so decoding stays well-defined.
	Vocabulary *vocab.Vocabulary
	// Store receives all artifacts. Required.
	Store blob.Store
	// Manifests records run provenance and flushed shards. Required.
	Manifests manifest.Store
	// Metrics is optional; nil selects NopMetrics.
	Metrics MetricsRecorder
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Builder materializes streams of encoded cells into split-partitioned
// shard artifacts. Each split owns a disjoint sequence of shard keys, so
// concurrent upstream encoding never interleaves records within a shard.
type Builder struct {
	cfg      BuilderConfig
	assigner *Assigner
	ratios   []SplitRatio
}

// NewBuilder validates the configuration and returns a builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.RunID == "" {
		return nil, ValidationError{Reason: "run id required"}
	}
	if cfg.Vocabulary == nil {
		return nil, ValidationError{Reason: "vocabulary required"}
	}
	if cfg.Store == nil {
		return nil, ValidationError{Reason: "artifact store required"}
	}
	if cfg.Manifests == nil {
		return nil, ValidationError{Reason: "manifest store required"}
	}
	ratios := cfg.Ratios
	if ratios == nil {
		ratios = DefaultRatios()
	}
	assigner, err := NewAssigner(cfg.Seed, ratios)
	if err != nil {
		return nil, err
	}
	if cfg.ShardSize == 0 {
		cfg.ShardSize = DefaultShardSize
	}
	if cfg.ShardSize < 0 {
		return nil, ValidationError{Reason: "shard size must be positive"}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Builder{cfg: cfg, assigner: assigner, ratios: ratios}, nil
}

// shardLine is the persisted JSONL form of one record.
type shardLine struct {
	CellID   string            `json:"cell_id"`
	Split    string            `json:"split"`
	Tokens   []string          `json:"tokens"`
	InputIDs []int             `json:"input_ids"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type splitState struct {
	buf     bytes.Buffer
	pending int
	seq     int
	records int64
	bytes   int64
	shards  int
}

// Build consumes the record stream and materializes the dataset. Records
// with per-cell failures or missing identifiers are counted and skipped,
// never fatal; an entirely empty stream is a validation error. Build resumes
// an interrupted run of the same RunID: shards already recorded in the
// manifest are verified by checksum and not rewritten.
func (b *Builder) Build(ctx context.Context, records <-chan Record) (Summary, error) {
	m, err := b.openManifest(ctx)
	if err != nil {
		return Summary{}, err
	}
	if err := b.ensureVocabularyArtifact(ctx); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		RunID:        b.cfg.RunID,
		SplitRecords: make(map[string]int64),
		SplitShards:  make(map[string]int),
		SplitBytes:   make(map[string]int64),
		SkipReasons:  make(map[string]int64),
	}
	states := make(map[string]*splitState, len(b.ratios))
	for _, r := range b.ratios {
		states[r.Name] = &splitState{}
	}

	for {
		var rec Record
		var open bool
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		case rec, open = <-records:
		}
		if !open {
			break
		}
		if rec.Err != nil {
			b.skip(&summary, "encode_failure")
			continue
		}
		if rec.CellID == "" {
			b.skip(&summary, "missing_cell_id")
			continue
		}
		split := b.assigner.Assign(rec.CellID)
		state := states[split]

		line := shardLine{
			CellID:   rec.CellID,
			Split:    split,
			Tokens:   rec.Sentence,
			InputIDs: rec.Sentence.Indices(b.cfg.Vocabulary),
			Metadata: rec.Metadata,
		}
		payload, err := json.Marshal(line)
		if err != nil {
			b.skip(&summary, "marshal_failure")
			continue
		}
		state.buf.Write(payload)
		state.buf.WriteByte('\n')
		state.pending++
		state.records++
		summary.SplitRecords[split]++
		b.cfg.Metrics.RecordCell(split)
		if len(rec.Sentence) == 0 {
			summary.EmptySentences++
		}
		if unknown := rec.Sentence.UnknownCount(); unknown > 0 {
			summary.UnknownTokens += int64(unknown)
			b.cfg.Metrics.RecordUnknownTokens(unknown)
		}

		if state.pending >= b.cfg.ShardSize {
			if err := b.flushShard(ctx, &m, split, state); err != nil {
				return summary, err
			}
		}
	}

	for _, r := range b.ratios {
		state := states[r.Name]
		if state.pending > 0 {
			if err := b.flushShard(ctx, &m, r.Name, state); err != nil {
				return summary, err
			}
		}
	}

	if summary.TotalRecords() == 0 {
		return summary, ValidationError{Reason: "no cells in input stream"}
	}

	for _, r := range b.ratios {
		state := states[r.Name]
		summary.SplitShards[r.Name] = state.shards
		summary.SplitBytes[r.Name] = state.bytes
	}

	if err := b.writeSummary(ctx, summary); err != nil {
		return summary, err
	}

	m.Completed = true
	m.UpdatedAt = b.cfg.Now()
	if err := b.cfg.Manifests.Save(ctx, m); err != nil {
		return summary, fmt.Errorf("save manifest: %w", err)
	}
	return summary, nil
}

func (b *Builder) skip(summary *Summary, reason string) {
	summary.Skipped++
	summary.SkipReasons[reason]++
	b.cfg.Metrics.RecordSkip(reason)
}

// openManifest loads the run manifest for resume, verifying provenance, or
// starts a fresh one.
func (b *Builder) openManifest(ctx context.Context) (manifest.Manifest, error) {
	m, ok, err := b.cfg.Manifests.Load(ctx, b.cfg.RunID)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("load manifest: %w", err)
	}
	if !ok {
		now := b.cfg.Now()
		ratios := make(map[string]float64, len(b.ratios))
		for _, r := range b.ratios {
			ratios[r.Name] = r.Fraction
		}
		m = manifest.Manifest{
			ID:            b.cfg.RunID,
			VocabChecksum: b.cfg.Vocabulary.Checksum(),
			Seed:          b.cfg.Seed,
			Ratios:        ratios,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := b.cfg.Manifests.Save(ctx, m); err != nil {
			return manifest.Manifest{}, fmt.Errorf("save manifest: %w", err)
		}
		return m, nil
	}
	if m.VocabChecksum != b.cfg.Vocabulary.Checksum() {
		return manifest.Manifest{}, ValidationError{Reason: fmt.Sprintf("run %s was started with a different vocabulary", b.cfg.RunID)}
	}
	if m.Seed != b.cfg.Seed {
		return manifest.Manifest{}, ValidationError{Reason: fmt.Sprintf("run %s was started with a different seed", b.cfg.RunID)}
	}
	return m, nil
}

func (b *Builder) vocabularyKey() string {
	return b.cfg.RunID + "/vocabulary.json"
}

func (b *Builder) ensureVocabularyArtifact(ctx context.Context) error {
	key := b.vocabularyKey()
	if info, err := b.cfg.Store.Head(ctx, key); err == nil {
		if got := info.Metadata["checksum"]; got != "" && got != b.cfg.Vocabulary.Checksum() {
			return ValidationError{Reason: "persisted vocabulary does not match the configured one"}
		}
		return nil
	}
	payload, err := b.cfg.Vocabulary.MarshalArtifact(b.cfg.Now())
	if err != nil {
		return fmt.Errorf("marshal vocabulary: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"checksum": b.cfg.Vocabulary.Checksum()},
	}
	if _, err := b.cfg.Store.Put(ctx, key, bytes.NewReader(payload), opts); err != nil {
		return WriteError{Key: key, Err: err}
	}
	return nil
}

// flushShard writes the buffered records for one split as an immutable
// shard artifact and records it in the manifest. A shard already present in
// the manifest with a matching checksum was flushed by an earlier attempt of
// the same run and is skipped without rewriting.
func (b *Builder) flushShard(ctx context.Context, m *manifest.Manifest, split string, state *splitState) error {
	key := fmt.Sprintf("%s/%s/shard-%05d.jsonl", b.cfg.RunID, split, state.seq)
	payload := state.buf.Bytes()
	sum := sha256.Sum256(payload)
	checksum := hex.EncodeToString(sum[:])

	if prev, ok := m.ShardByKey(key); ok {
		if prev.Checksum != checksum {
			return ValidationError{Reason: fmt.Sprintf("shard %s changed since last attempt; input stream differs", key)}
		}
		state.bytes += prev.SizeBytes
		state.shards++
		state.seq++
		state.pending = 0
		state.buf.Reset()
		return nil
	}

	opts := blob.PutOptions{
		ContentType: "application/jsonl",
		Metadata: map[string]string{
			"split":    split,
			"records":  fmt.Sprintf("%d", state.pending),
			"checksum": checksum,
		},
	}
	info, err := b.cfg.Store.Put(ctx, key, bytes.NewReader(payload), opts)
	if err != nil {
		return WriteError{Key: key, Err: err}
	}
	m.Shards = append(m.Shards, manifest.Shard{
		Key:       key,
		Split:     split,
		Records:   state.pending,
		SizeBytes: info.Size,
		Checksum:  checksum,
		FlushedAt: b.cfg.Now(),
	})
	m.UpdatedAt = b.cfg.Now()
	if err := b.cfg.Manifests.Save(ctx, *m); err != nil {
		return fmt.Errorf("save manifest after shard %s: %w", key, err)
	}
	b.cfg.Metrics.RecordShard(split, info.Size)
	state.bytes += info.Size
	state.shards++
	state.seq++
	state.pending = 0
	state.buf.Reset()
	return nil
}

// writeSummary materializes the run summary as JSON and CSV artifacts.
// Summaries are replaced on retry rather than treated as immutable.
func (b *Builder) writeSummary(ctx context.Context, summary Summary) error {
	jsonPayload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := b.replaceArtifact(ctx, b.cfg.RunID+"/summary.json", jsonPayload, "application/json"); err != nil {
		return err
	}

	splits := make([]string, 0, len(summary.SplitRecords))
	for split := range summary.SplitRecords {
		splits = append(splits, split)
	}
	sort.Strings(splits)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"split", "records", "shards", "bytes"}); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	for _, split := range splits {
		row := []string{
			split,
			fmt.Sprintf("%d", summary.SplitRecords[split]),
			fmt.Sprintf("%d", summary.SplitShards[split]),
			fmt.Sprintf("%d", summary.SplitBytes[split]),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary csv: %w", err)
	}
	return b.replaceArtifact(ctx, b.cfg.RunID+"/summary.csv", buf.Bytes(), "text/csv")
}

func (b *Builder) replaceArtifact(ctx context.Context, key string, payload []byte, contentType string) error {
	if _, err := b.cfg.Store.Delete(ctx, key); err != nil {
		return WriteError{Key: key, Err: err}
	}
	if _, err := b.cfg.Store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType}); err != nil {
		return WriteError{Key: key, Err: err}
	}
	return nil
}
