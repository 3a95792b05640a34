package sentence

import (
	"testing"

	"cellseq/internal/expression"
	"cellseq/internal/vocab"
)

func buildVocab(t *testing.T, genes ...string) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.Build(genes, 0)
	if err != nil {
		t.Fatalf("build vocab: %v", err)
	}
	return v
}

func TestEncode_DescendingScoreOrder(t *testing.T) {
	v := buildVocab(t, "A", "B", "C", "D")
	n := expression.Normalizer{}
	scores, err := n.Normalize(expression.Vector{"A": 100, "B": 50, "C": 0, "D": 75}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := Encode(scores, v, 10)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := Sentence{"A", "D", "B"}
	if len(s) != len(want) {
		t.Fatalf("sentence %v, want %v", s, want)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("position %d: got %q want %q", i, s[i], want[i])
		}
	}
}

func TestEncode_TieBreakLexical(t *testing.T) {
	v := buildVocab(t, "Gene2", "Gene10")
	// Identical raw counts yield identical normalized scores.
	n := expression.Normalizer{}
	scores, err := n.Normalize(expression.Vector{"Gene2": 7, "Gene10": 7}, 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	s, err := Encode(scores, v, 5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// ASCII '1' < '2', so Gene10 sorts before Gene2.
	if len(s) != 2 || s[0] != "Gene10" || s[1] != "Gene2" {
		t.Fatalf("tie-break order wrong: %v", s)
	}
}

func TestEncode_TruncationAndNoPadding(t *testing.T) {
	v := buildVocab(t, "A", "B", "C")
	scores := expression.NormalizedVector{"A": 3, "B": 2, "C": 1}
	s, err := Encode(scores, v, 2)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(s) != 2 || s[0] != "A" || s[1] != "B" {
		t.Fatalf("truncation wrong: %v", s)
	}
	// Fewer qualifying genes than max length: sentence just stops.
	short, err := Encode(expression.NormalizedVector{"A": 1}, v, 5)
	if err != nil {
		t.Fatalf("encode short: %v", err)
	}
	if len(short) != 1 {
		t.Fatalf("expected no padding, got %v", short)
	}
}

func TestEncode_AllZeroCellIsEmptySentence(t *testing.T) {
	v := buildVocab(t, "A")
	s, err := Encode(expression.NormalizedVector{"A": expression.SentinelScore}, v, 4)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected empty sentence, got %v", s)
	}
}

func TestEncode_UnknownGeneSubstitution(t *testing.T) {
	v := buildVocab(t, "A")
	scores := expression.NormalizedVector{"A": 1, "NOVEL": 2}
	s, err := Encode(scores, v, 5)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(s) != 2 || s[0] != vocab.UnknownToken || s[1] != "A" {
		t.Fatalf("unknown substitution wrong: %v", s)
	}
	if s.UnknownCount() != 1 {
		t.Fatalf("unknown count: %d", s.UnknownCount())
	}
	idx := s.Indices(v)
	if idx[0] != vocab.UnknownIndex {
		t.Fatalf("unknown token index: %d", idx[0])
	}
}

func TestEncode_InvalidConfig(t *testing.T) {
	v := buildVocab(t, "A")
	if _, err := Encode(expression.NormalizedVector{"A": 1}, v, 0); err == nil {
		t.Fatalf("expected max length error")
	}
	if _, err := Encode(expression.NormalizedVector{"A": 1}, nil, 3); err == nil {
		t.Fatalf("expected nil vocabulary error")
	}
}

func TestEncode_MaxLengthBound(t *testing.T) {
	v := buildVocab(t, "A", "B", "C", "D", "E")
	scores := expression.NormalizedVector{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}
	for maxLen := 1; maxLen <= 7; maxLen++ {
		s, err := Encode(scores, v, maxLen)
		if err != nil {
			t.Fatalf("encode maxLen=%d: %v", maxLen, err)
		}
		if len(s) > maxLen {
			t.Fatalf("length %d exceeds max %d", len(s), maxLen)
		}
	}
}
