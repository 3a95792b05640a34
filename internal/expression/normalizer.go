package expression

import "math"

// DefaultTargetSum is the per-cell total every vector is scaled to before
// log compression, matching the conventional 10k counts-per-cell target.
const DefaultTargetSum = 10_000

// Normalizer converts raw count vectors into comparable per-cell scores.
// The transform is, in order: size-factor scaling so cells with different
// sequencing depth are comparable, then log10(1+x) compression so a handful
// of highly expressed genes cannot dominate the dynamic range. For a fixed
// total the transform is strictly monotonic in raw count, which keeps the
// downstream ranking well-defined.
type Normalizer struct {
	// TargetSum is the per-cell total after size-factor scaling.
	// Zero selects DefaultTargetSum.
	TargetSum float64
}

// Normalize converts a raw vector into scores. totalOverride, when positive,
// replaces the vector's own total as the size factor denominator; callers use
// it to normalize partial vectors against a known library size. A cell with
// zero total yields all-sentinel scores.
func (n Normalizer) Normalize(vec Vector, totalOverride float64) (NormalizedVector, error) {
	if err := vec.Validate(); err != nil {
		return nil, err
	}
	target := n.TargetSum
	if target == 0 {
		target = DefaultTargetSum
	}
	if target < 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, ValidationError{Reason: "target sum must be positive and finite"}
	}
	if totalOverride < 0 || math.IsNaN(totalOverride) || math.IsInf(totalOverride, 0) {
		return nil, ValidationError{Reason: "total override must be non-negative and finite"}
	}

	total := totalOverride
	if total == 0 {
		total = vec.Total()
	}

	out := make(NormalizedVector, len(vec))
	if total == 0 {
		for gene := range vec {
			out[gene] = SentinelScore
		}
		return out, nil
	}
	factor := target / total
	for gene, count := range vec {
		if count == 0 {
			out[gene] = SentinelScore
			continue
		}
		out[gene] = math.Log10(1 + count*factor)
	}
	return out, nil
}

// Score reports the normalized score a single count would receive within a
// cell of the given total. Exposed for decoder calibration.
func (n Normalizer) Score(count, total float64) float64 {
	if count <= 0 || total <= 0 {
		return SentinelScore
	}
	target := n.TargetSum
	if target == 0 {
		target = DefaultTargetSum
	}
	return math.Log10(1 + count*target/total)
}
