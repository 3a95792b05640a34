// Package manifest records dataset build provenance: which vocabulary a run
// used, its seed and split ratios, and every shard flushed so far. An
// interrupted build resumes from the manifest without duplicating records,
// and decoders verify vocabulary provenance against it.
package manifest

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Shard describes one flushed dataset shard.
type Shard struct {
	Key       string    `json:"key"`
	Split     string    `json:"split"`
	Records   int       `json:"records"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	FlushedAt time.Time `json:"flushed_at"`
}

// Manifest captures one dataset build run.
type Manifest struct {
	ID            string             `json:"id"`
	VocabChecksum string             `json:"vocab_checksum"`
	Seed          string             `json:"seed"`
	Ratios        map[string]float64 `json:"ratios"`
	Shards        []Shard            `json:"shards,omitempty"`
	Completed     bool               `json:"completed"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Clone returns an independent copy of the manifest.
func (m Manifest) Clone() Manifest {
	out := m
	if m.Ratios != nil {
		out.Ratios = make(map[string]float64, len(m.Ratios))
		for k, v := range m.Ratios {
			out.Ratios[k] = v
		}
	}
	out.Shards = append([]Shard(nil), m.Shards...)
	return out
}

// ShardByKey returns the flushed shard with the given key, if recorded.
func (m Manifest) ShardByKey(key string) (Shard, bool) {
	for _, s := range m.Shards {
		if s.Key == key {
			return s, true
		}
	}
	return Shard{}, false
}

// Store persists manifests. Save is a full-snapshot upsert, mirroring how
// the rest of the system treats artifacts as immutable-or-replaced wholes.
type Store interface {
	Save(ctx context.Context, m Manifest) error
	Load(ctx context.Context, id string) (Manifest, bool, error)
	List(ctx context.Context) ([]Manifest, error)
}

// MemoryStore implements Store in process memory. Intended for tests and
// ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	manifests map[string]Manifest
}

// NewMemoryStore returns an empty in-memory manifest store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{manifests: make(map[string]Manifest)}
}

func (s *MemoryStore) Save(_ context.Context, m Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Manifest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[id]
	if !ok {
		return Manifest{}, false, nil
	}
	return m.Clone(), true, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Manifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
