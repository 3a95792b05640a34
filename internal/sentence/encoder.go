// Package sentence implements the bidirectional transform between
// normalized expression vectors and ordered gene-token sequences. Encoding
// and decoding are pure functions over the input and an immutable shared
// vocabulary, so any number of cells can be processed concurrently.
package sentence

import (
	"fmt"
	"sort"

	"cellseq/internal/expression"
	"cellseq/internal/vocab"
)

// Sentence is an ordered sequence of gene tokens representing one cell by
// descending expression rank. Out-of-vocabulary genes appear as the unknown
// token. An empty sentence is a valid encoding of an all-zero cell.
type Sentence []string

// UnknownCount reports how many tokens are the unknown token.
func (s Sentence) UnknownCount() int {
	n := 0
	for _, tok := range s {
		if tok == vocab.UnknownToken {
			n++
		}
	}
	return n
}

// Indices maps the sentence through the vocabulary into token indices.
func (s Sentence) Indices(v *vocab.Vocabulary) []int {
	out := make([]int, len(s))
	for i, tok := range s {
		out[i] = v.Lookup(tok)
	}
	return out
}

// ValidationError reports a malformed encode/decode configuration.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("sentence validation: %s", e.Reason)
}

// Encode ranks genes by descending normalized score and emits the cell
// sentence. Exact score ties break by ascending gene identifier so encoding
// is deterministic. Genes at the sentinel score are not qualifying and never
// appear; if fewer qualifying genes exist than maxLength the sentence simply
// stops there, with no padding injected. Out-of-vocabulary genes are emitted
// as the unknown token.
func Encode(scores expression.NormalizedVector, v *vocab.Vocabulary, maxLength int) (Sentence, error) {
	if v == nil {
		return nil, ValidationError{Reason: "nil vocabulary"}
	}
	if maxLength <= 0 {
		return nil, ValidationError{Reason: fmt.Sprintf("max length must be positive, got %d", maxLength)}
	}

	type ranked struct {
		gene  string
		score float64
	}
	qualifying := make([]ranked, 0, len(scores))
	for gene, score := range scores {
		if score > expression.SentinelScore {
			qualifying = append(qualifying, ranked{gene: gene, score: score})
		}
	}
	sort.Slice(qualifying, func(i, j int) bool {
		if qualifying[i].score != qualifying[j].score {
			return qualifying[i].score > qualifying[j].score
		}
		return qualifying[i].gene < qualifying[j].gene
	})
	if len(qualifying) > maxLength {
		qualifying = qualifying[:maxLength]
	}

	out := make(Sentence, 0, len(qualifying))
	for _, r := range qualifying {
		if v.Contains(r.gene) {
			out = append(out, r.gene)
		} else {
			out = append(out, vocab.UnknownToken)
		}
	}
	return out, nil
}
