// Package vocab maintains the fixed gene vocabulary shared by sentence
// encoding and decoding. A vocabulary is built once from a corpus of gene
// identifiers, is immutable afterwards, and is passed by handle to every
// encode/decode call so those stay pure functions.
package vocab

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Reserved token positions are fixed by artifact convention so any consumer
// of a persisted vocabulary can rely on them without reading metadata.
const (
	PadIndex     = 0
	UnknownIndex = 1

	PadToken     = "<pad>"
	UnknownToken = "<unk>"
)

// reservedCount is the number of leading slots occupied by reserved tokens.
const reservedCount = 2

// ValidationError reports a vocabulary construction problem.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("vocabulary validation: %s", e.Reason)
}

// Vocabulary is an ordered catalog mapping gene identifiers to dense integer
// indices. Indices 0 and 1 are the padding and unknown tokens. The zero value
// is not usable; construct via Build or LoadArtifact.
type Vocabulary struct {
	tokens   []string
	index    map[string]int
	checksum string
}

// Build constructs a vocabulary from a corpus of gene identifiers. The corpus
// may contain repeats; occurrence count is the prevalence ranking used to
// decide which genes survive truncation to maxSize. Ranking is descending
// prevalence with ties broken by ascending identifier, so the result is
// deterministic for identical corpus content. maxSize bounds the number of
// gene entries, excluding the two reserved tokens; maxSize <= 0 means
// unbounded.
func Build(corpus []string, maxSize int) (*Vocabulary, error) {
	counts := make(map[string]int)
	for _, gene := range corpus {
		gene = strings.TrimSpace(gene)
		if gene == "" {
			continue
		}
		counts[gene]++
	}
	if len(counts) == 0 {
		return nil, ValidationError{Reason: "empty corpus"}
	}

	genes := make([]string, 0, len(counts))
	for gene := range counts {
		genes = append(genes, gene)
	}
	sort.Slice(genes, func(i, j int) bool {
		ci, cj := counts[genes[i]], counts[genes[j]]
		if ci != cj {
			return ci > cj
		}
		return genes[i] < genes[j]
	})
	if maxSize > 0 && len(genes) > maxSize {
		genes = genes[:maxSize]
	}

	tokens := make([]string, 0, len(genes)+reservedCount)
	tokens = append(tokens, PadToken, UnknownToken)
	tokens = append(tokens, genes...)
	return fromTokens(tokens)
}

func fromTokens(tokens []string) (*Vocabulary, error) {
	if len(tokens) < reservedCount || tokens[PadIndex] != PadToken || tokens[UnknownIndex] != UnknownToken {
		return nil, ValidationError{Reason: "reserved token positions violated"}
	}
	index := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, dup := index[tok]; dup {
			return nil, ValidationError{Reason: fmt.Sprintf("duplicate token %q", tok)}
		}
		index[tok] = i
	}
	return &Vocabulary{tokens: tokens, index: index, checksum: checksumOf(tokens)}, nil
}

func checksumOf(tokens []string) string {
	h := sha256.New()
	for _, tok := range tokens {
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Size returns the total number of tokens, reserved slots included.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// GeneCount returns the number of gene entries, reserved slots excluded.
func (v *Vocabulary) GeneCount() int { return len(v.tokens) - reservedCount }

// Checksum returns a stable digest of the ordered token list. Two
// vocabularies with the same checksum encode and decode identically.
func (v *Vocabulary) Checksum() string { return v.checksum }

// Lookup resolves a gene identifier to its index, soft-failing to the
// unknown-token index for out-of-vocabulary genes. Unseen genes are expected
// at inference time and are never an error.
func (v *Vocabulary) Lookup(identifier string) int {
	if idx, ok := v.index[identifier]; ok {
		return idx
	}
	return UnknownIndex
}

// IndexOf reports the index for an in-vocabulary identifier.
func (v *Vocabulary) IndexOf(identifier string) (int, bool) {
	idx, ok := v.index[identifier]
	return idx, ok
}

// IdentifierOf reports the identifier stored at the given index. It is the
// exact inverse of IndexOf for every in-vocabulary entry.
func (v *Vocabulary) IdentifierOf(index int) (string, bool) {
	if index < 0 || index >= len(v.tokens) {
		return "", false
	}
	return v.tokens[index], true
}

// Contains reports whether the identifier is an in-vocabulary gene token.
func (v *Vocabulary) Contains(identifier string) bool {
	_, ok := v.index[identifier]
	return ok
}

// Tokens returns a copy of the ordered token list, reserved slots included.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}
