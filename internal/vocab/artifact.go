package vocab

import (
	"encoding/json"
	"fmt"
	"time"
)

// artifactVersion identifies the persisted layout. Bump on breaking changes.
const artifactVersion = 1

// Artifact is the persisted form of a vocabulary. It must travel alongside
// every dataset built with it so decoding remains well-defined indefinitely.
type Artifact struct {
	Version   int       `json:"version"`
	Checksum  string    `json:"checksum"`
	Tokens    []string  `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalArtifact serializes the vocabulary. Output is byte-for-byte
// reproducible for the same vocabulary and timestamp.
func (v *Vocabulary) MarshalArtifact(createdAt time.Time) ([]byte, error) {
	art := Artifact{
		Version:   artifactVersion,
		Checksum:  v.checksum,
		Tokens:    v.Tokens(),
		CreatedAt: createdAt.UTC(),
	}
	return json.MarshalIndent(art, "", "  ")
}

// LoadArtifact reconstructs a vocabulary from its persisted form, verifying
// the embedded checksum against the token list.
func LoadArtifact(payload []byte) (*Vocabulary, error) {
	var art Artifact
	if err := json.Unmarshal(payload, &art); err != nil {
		return nil, fmt.Errorf("decode vocabulary artifact: %w", err)
	}
	if art.Version != artifactVersion {
		return nil, ValidationError{Reason: fmt.Sprintf("unsupported artifact version %d", art.Version)}
	}
	v, err := fromTokens(art.Tokens)
	if err != nil {
		return nil, err
	}
	if art.Checksum != "" && art.Checksum != v.checksum {
		return nil, ValidationError{Reason: "artifact checksum mismatch"}
	}
	return v, nil
}
