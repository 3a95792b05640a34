package sentence

import (
	"fmt"
	"math"
	"sort"

	"cellseq/internal/expression"
	"cellseq/internal/vocab"
)

// VocabularyMismatchError is returned when the vocabulary offered at decode
// time does not match the one recorded at encode time. Decoding with the
// wrong vocabulary would silently reconstruct the wrong genes, so this is
// always fatal.
type VocabularyMismatchError struct {
	Want string
	Got  string
}

func (e VocabularyMismatchError) Error() string {
	return fmt.Sprintf("vocabulary mismatch: artifact checksum %s, offered %s", e.Want, e.Got)
}

// Curve maps a 0-based sentence rank to a normalized-score estimate. The
// default is log-linear in rank, the shape the encoding pipeline's rank vs
// log-expression relationship follows; any strictly decreasing curve
// satisfies the decoding contract.
type Curve struct {
	// Intercept is the score estimate at rank 0.
	Intercept float64
	// Slope is the change in score per decade of rank; must be negative.
	Slope float64
}

// DefaultCurve is calibrated against the normalizer's default target sum:
// the top-ranked gene is assumed near the top of the compressed range.
func DefaultCurve() Curve {
	return Curve{Intercept: math.Log10(1 + expression.DefaultTargetSum), Slope: -1}
}

func (c Curve) validate() error {
	if c.Slope >= 0 || math.IsNaN(c.Slope) || math.IsInf(c.Slope, 0) {
		return ValidationError{Reason: "curve slope must be negative and finite"}
	}
	if math.IsNaN(c.Intercept) || math.IsInf(c.Intercept, 0) {
		return ValidationError{Reason: "curve intercept must be finite"}
	}
	return nil
}

// Score evaluates the curve at a 0-based rank.
func (c Curve) Score(rank int) float64 {
	return c.Intercept + c.Slope*math.Log10(float64(rank)+1)
}

// Decoder reconstructs monotone rank-consistent expression estimates from
// generated sentences. Decoding is intentionally lossy: only rank order is
// guaranteed, never the original magnitudes.
type Decoder struct {
	// Curve is the rank-to-score mapping; zero value selects DefaultCurve.
	Curve Curve
	// ExpectChecksum, when set, is verified against the vocabulary before
	// any reconstruction happens.
	ExpectChecksum string
}

// Decode converts a sentence into a normalized-score estimate per gene.
// Unknown and padding tokens contribute no gene-level estimate; unknown
// tokens still consume their rank position so subsequent genes keep their
// relative ordering, while the first padding token terminates the sentence.
// A positive totalHint rescales the implied counts so their sum matches the
// hint, for consumers that need absolute rather than relative magnitudes.
func (d Decoder) Decode(s Sentence, v *vocab.Vocabulary, totalHint float64) (expression.NormalizedVector, error) {
	if v == nil {
		return nil, ValidationError{Reason: "nil vocabulary"}
	}
	if d.ExpectChecksum != "" && d.ExpectChecksum != v.Checksum() {
		return nil, VocabularyMismatchError{Want: d.ExpectChecksum, Got: v.Checksum()}
	}
	curve := d.Curve
	if curve == (Curve{}) {
		curve = DefaultCurve()
	}
	if err := curve.validate(); err != nil {
		return nil, err
	}
	if totalHint < 0 || math.IsNaN(totalHint) || math.IsInf(totalHint, 0) {
		return nil, ValidationError{Reason: "total hint must be non-negative and finite"}
	}

	out := make(expression.NormalizedVector)
	rank := 0
	for _, tok := range s {
		if tok == vocab.PadToken {
			break
		}
		if tok == vocab.UnknownToken || !v.Contains(tok) {
			// No gene-level estimate, but the slot still holds a rank.
			rank++
			continue
		}
		if _, dup := out[tok]; dup {
			rank++
			continue
		}
		out[tok] = curve.Score(rank)
		rank++
	}

	if totalHint > 0 && len(out) > 0 {
		rescaleToTotal(out, totalHint)
	}
	return out, nil
}

// rescaleToTotal converts scores to implied counts, scales them so their sum
// matches the hint, and maps back into score space. Order is preserved
// because every step is strictly monotonic.
func rescaleToTotal(scores expression.NormalizedVector, hint float64) {
	var sum float64
	counts := make(map[string]float64, len(scores))
	for gene, score := range scores {
		c := math.Pow(10, score) - 1
		if c < 0 {
			c = 0
		}
		counts[gene] = c
		sum += c
	}
	if sum <= 0 {
		return
	}
	factor := hint / sum
	for gene, c := range counts {
		scores[gene] = math.Log10(1 + c*factor)
	}
}

// RankAgreement measures how well reconstructed scores preserve the rank
// order of a reference vector over their shared genes, as a Spearman rank
// correlation in [-1, 1]. Genes present in only one vector are ignored.
func RankAgreement(reference, reconstructed expression.NormalizedVector) float64 {
	shared := make([]string, 0, len(reference))
	for gene := range reference {
		if _, ok := reconstructed[gene]; ok {
			shared = append(shared, gene)
		}
	}
	n := len(shared)
	if n < 2 {
		return 1
	}
	refRank := ranksOf(shared, reference)
	recRank := ranksOf(shared, reconstructed)
	var d2 float64
	for gene := range refRank {
		d := refRank[gene] - recRank[gene]
		d2 += d * d
	}
	nf := float64(n)
	return 1 - 6*d2/(nf*(nf*nf-1))
}

func ranksOf(genes []string, scores expression.NormalizedVector) map[string]float64 {
	ordered := append([]string(nil), genes...)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := scores[ordered[i]], scores[ordered[j]]
		if si != sj {
			return si > sj
		}
		return ordered[i] < ordered[j]
	})
	out := make(map[string]float64, len(ordered))
	for i, gene := range ordered {
		out[gene] = float64(i)
	}
	return out
}
