package dataset

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// ratioTolerance bounds how far split fractions may drift from summing to 1.
const ratioTolerance = 1e-6

// SplitRatio names one split and its share of the corpus.
type SplitRatio struct {
	Name     string
	Fraction float64
}

// DefaultRatios is the conventional train/valid/test partition.
func DefaultRatios() []SplitRatio {
	return []SplitRatio{
		{Name: "train", Fraction: 0.8},
		{Name: "valid", Fraction: 0.1},
		{Name: "test", Fraction: 0.1},
	}
}

// ValidateRatios checks names are unique and non-empty, fractions are
// non-negative and finite, and the fractions sum to 1 within tolerance.
func ValidateRatios(ratios []SplitRatio) error {
	if len(ratios) == 0 {
		return ValidationError{Reason: "no split ratios configured"}
	}
	seen := make(map[string]struct{}, len(ratios))
	var sum float64
	for _, r := range ratios {
		if r.Name == "" {
			return ValidationError{Reason: "split name must not be empty"}
		}
		if _, dup := seen[r.Name]; dup {
			return ValidationError{Reason: fmt.Sprintf("duplicate split name %q", r.Name)}
		}
		seen[r.Name] = struct{}{}
		if r.Fraction < 0 || math.IsNaN(r.Fraction) || math.IsInf(r.Fraction, 0) {
			return ValidationError{Reason: fmt.Sprintf("split %q fraction must be non-negative and finite", r.Name)}
		}
		sum += r.Fraction
	}
	if math.Abs(sum-1) > ratioTolerance {
		return ValidationError{Reason: fmt.Sprintf("split fractions sum to %v, want 1", sum)}
	}
	return nil
}

// Assigner deterministically maps cell identifiers to splits. Assignment is
// a pure function of (seed, cell id): it does not depend on input order and
// does not change for existing cells when new cells are added, so datasets
// rebuilt with the same seed never leak cells across splits.
type Assigner struct {
	seed  string
	names []string
	cum   []float64
}

// NewAssigner validates the ratios and builds an assigner for the seed.
func NewAssigner(seed string, ratios []SplitRatio) (*Assigner, error) {
	if err := ValidateRatios(ratios); err != nil {
		return nil, err
	}
	names := make([]string, len(ratios))
	cum := make([]float64, len(ratios))
	var running float64
	for i, r := range ratios {
		running += r.Fraction
		names[i] = r.Name
		cum[i] = running
	}
	return &Assigner{seed: seed, names: names, cum: cum}, nil
}

// Assign returns the split for a cell identifier.
func (a *Assigner) Assign(cellID string) string {
	x := unitInterval(a.seed, cellID)
	for i, bound := range a.cum {
		if x < bound {
			return a.names[i]
		}
	}
	// Rounding can leave the last bound fractionally below 1.
	return a.names[len(a.names)-1]
}

// unitInterval hashes (seed, id) into [0, 1).
func unitInterval(seed, id string) float64 {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte{0x1f})
	h.Write([]byte(id))
	sum := h.Sum(nil)
	u := binary.BigEndian.Uint64(sum[:8])
	// Keep 53 bits so the float64 mantissa holds the value exactly.
	return float64(u>>11) / (1 << 53)
}
