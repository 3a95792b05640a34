// Package dataset assembles encoded cells into reproducible, split-
// partitioned dataset artifacts. Construction is streaming: records are
// consumed, bucketed into per-split shards, and flushed incrementally, so
// memory stays bounded regardless of corpus size.
package dataset

import (
	"fmt"

	"cellseq/internal/sentence"
)

// Record is one encoded cell entering the builder. An empty sentence is a
// valid record (an all-zero cell), not a dropped one.
type Record struct {
	CellID   string
	Sentence sentence.Sentence
	Metadata map[string]string

	// Err carries an upstream per-cell encoding failure. Failed records are
	// counted and skipped without aborting the batch.
	Err error
}

// ValidationError reports a dataset construction problem that must abort the
// whole run: malformed ratios, an empty stream, or provenance that no longer
// matches the manifest.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("dataset validation: %s", e.Reason)
}

// WriteError reports an artifact write failure. Writes are retryable:
// already-flushed shards are immutable and a retried run resumes past them.
type WriteError struct {
	Key string
	Err error
}

func (e WriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Key, e.Err)
}

func (e WriteError) Unwrap() error { return e.Err }

// Summary reports end-of-run counts for caller-side verification.
type Summary struct {
	RunID          string           `json:"run_id"`
	SplitRecords   map[string]int64 `json:"split_records"`
	SplitShards    map[string]int   `json:"split_shards"`
	SplitBytes     map[string]int64 `json:"split_bytes"`
	EmptySentences int64            `json:"empty_sentences"`
	UnknownTokens  int64            `json:"unknown_tokens"`
	Skipped        int64            `json:"skipped"`
	SkipReasons    map[string]int64 `json:"skip_reasons,omitempty"`
}

// TotalRecords sums the per-split record counts.
func (s Summary) TotalRecords() int64 {
	var total int64
	for _, n := range s.SplitRecords {
		total += n
	}
	return total
}
