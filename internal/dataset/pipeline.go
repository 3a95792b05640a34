package dataset

import (
	"context"
	"fmt"
	"sync"

	"cellseq/internal/expression"
	"cellseq/internal/sentence"
	"cellseq/internal/vocab"
)

// Cell is one raw cell entering the encoding pipeline.
type Cell struct {
	ID string
	// Counts are raw expression counts per gene identifier.
	Counts expression.Vector
	// TotalOverride, when positive, replaces the vector's own total as the
	// normalization denominator.
	TotalOverride float64
	Metadata      map[string]string
}

// EncoderConfig wires the encoding stage of the pipeline.
type EncoderConfig struct {
	Normalizer expression.Normalizer
	Vocabulary *vocab.Vocabulary
	// MaxLength caps sentence length in tokens.
	MaxLength int
	// Workers is the number of concurrent encoders; zero selects 1.
	Workers int
}

// EncodeCells runs the normalize-then-encode transform over the cell stream
// with a pool of workers and emits records for the builder. Per-cell failures
// are reported on the record's Err field rather than stopping the pool, so
// one malformed cell never poisons a batch. The returned channel closes once
// the input closes and all workers drain.
func EncodeCells(ctx context.Context, cfg EncoderConfig, cells <-chan Cell) (<-chan Record, error) {
	if cfg.Vocabulary == nil {
		return nil, ValidationError{Reason: "vocabulary required"}
	}
	if cfg.MaxLength <= 0 {
		return nil, ValidationError{Reason: "max length must be positive"}
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	out := make(chan Record)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				var cell Cell
				var open bool
				select {
				case <-ctx.Done():
					return
				case cell, open = <-cells:
				}
				if !open {
					return
				}
				rec := encodeCell(cfg, cell)
				select {
				case <-ctx.Done():
					return
				case out <- rec:
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func encodeCell(cfg EncoderConfig, cell Cell) Record {
	rec := Record{CellID: cell.ID, Metadata: cell.Metadata}
	scores, err := cfg.Normalizer.Normalize(cell.Counts, cell.TotalOverride)
	if err != nil {
		rec.Err = fmt.Errorf("normalize cell %s: %w", cell.ID, err)
		return rec
	}
	sent, err := sentence.Encode(scores, cfg.Vocabulary, cfg.MaxLength)
	if err != nil {
		rec.Err = fmt.Errorf("encode cell %s: %w", cell.ID, err)
		return rec
	}
	rec.Sentence = sent
	return rec
}
