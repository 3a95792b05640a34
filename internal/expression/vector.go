// Package expression models per-cell expression vectors and the
// deterministic normalization applied before ranking. Vectors are sparse:
// memory stays proportional to the number of expressed genes, and a gene
// absent from the map is zero expression, never missing data.
package expression

import (
	"fmt"
	"math"
)

// Vector maps gene identifier to a non-negative raw count for one cell.
type Vector map[string]float64

// NormalizedVector maps gene identifier to a real-valued comparable score.
// Zero-count genes carry the sentinel minimal score and rank after any
// strictly positive gene.
type NormalizedVector map[string]float64

// SentinelScore is the score assigned to zero-count genes.
const SentinelScore = 0

// ValidationError reports a malformed expression vector or configuration.
type ValidationError struct {
	Gene   string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Gene != "" {
		return fmt.Sprintf("expression validation: gene %s: %s", e.Gene, e.Reason)
	}
	return fmt.Sprintf("expression validation: %s", e.Reason)
}

// Total returns the summed raw counts of the vector.
func (v Vector) Total() float64 {
	var total float64
	for _, count := range v {
		total += count
	}
	return total
}

// Validate checks every count is finite and non-negative.
func (v Vector) Validate() error {
	for gene, count := range v {
		if gene == "" {
			return ValidationError{Reason: "empty gene identifier"}
		}
		if math.IsNaN(count) || math.IsInf(count, 0) {
			return ValidationError{Gene: gene, Reason: "count is not finite"}
		}
		if count < 0 {
			return ValidationError{Gene: gene, Reason: "negative count"}
		}
	}
	return nil
}

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for gene, count := range v {
		out[gene] = count
	}
	return out
}
