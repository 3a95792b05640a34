package expression

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize_MonotonicForFixedTotal(t *testing.T) {
	n := Normalizer{}
	vec := Vector{"A": 100, "B": 50, "C": 0, "D": 1}
	scores, err := n.Normalize(vec, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !(scores["A"] > scores["B"] && scores["B"] > scores["D"] && scores["D"] > scores["C"]) {
		t.Fatalf("monotonicity violated: %+v", scores)
	}
	if scores["C"] != SentinelScore {
		t.Fatalf("zero count must map to sentinel, got %v", scores["C"])
	}
}

func TestNormalize_SizeFactorComparability(t *testing.T) {
	n := Normalizer{}
	shallow, err := n.Normalize(Vector{"A": 10, "B": 10}, 0)
	if err != nil {
		t.Fatalf("normalize shallow: %v", err)
	}
	deep, err := n.Normalize(Vector{"A": 1000, "B": 1000}, 0)
	if err != nil {
		t.Fatalf("normalize deep: %v", err)
	}
	// Same relative composition must score identically despite depth.
	if math.Abs(shallow["A"]-deep["A"]) > 1e-12 {
		t.Fatalf("size factor not applied: %v vs %v", shallow["A"], deep["A"])
	}
}

func TestNormalize_TotalOverride(t *testing.T) {
	n := Normalizer{}
	withOwn, err := n.Normalize(Vector{"A": 5}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	withOverride, err := n.Normalize(Vector{"A": 5}, 100)
	if err != nil {
		t.Fatalf("normalize override: %v", err)
	}
	if withOverride["A"] >= withOwn["A"] {
		t.Fatalf("larger library size must shrink the score: %v vs %v", withOverride["A"], withOwn["A"])
	}
	want := math.Log10(1 + 5*DefaultTargetSum/100)
	if math.Abs(withOverride["A"]-want) > 1e-12 {
		t.Fatalf("override score: got %v want %v", withOverride["A"], want)
	}
}

func TestNormalize_AllZeroCell(t *testing.T) {
	n := Normalizer{}
	scores, err := n.Normalize(Vector{"A": 0, "B": 0}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	for gene, s := range scores {
		if s != SentinelScore {
			t.Fatalf("gene %s expected sentinel, got %v", gene, s)
		}
	}
}

func TestNormalize_MalformedVector(t *testing.T) {
	n := Normalizer{}
	cases := []Vector{
		{"A": -1},
		{"A": math.NaN()},
		{"A": math.Inf(1)},
		{"": 3},
	}
	for i, vec := range cases {
		_, err := n.Normalize(vec, 0)
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if _, err := n.Normalize(Vector{"A": 1}, -5); err == nil {
		t.Fatalf("negative override should fail")
	}
}

func TestVector_TotalAndClone(t *testing.T) {
	vec := Vector{"A": 2, "B": 3}
	if vec.Total() != 5 {
		t.Fatalf("total: %v", vec.Total())
	}
	cp := vec.Clone()
	cp["A"] = 100
	if vec["A"] != 2 {
		t.Fatalf("clone aliases original")
	}
}
