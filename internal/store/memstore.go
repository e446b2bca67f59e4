package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

// MemoryStore is an in-memory Store used in tests and embedded setups.
// It applies the same version compare-and-swap discipline as FileStore.
type MemoryStore struct {
	mu       sync.RWMutex
	episodes map[string]*episode.Episode
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{episodes: make(map[string]*episode.Episode)}
}

// Save persists a new episode at version 1.
func (s *MemoryStore) Save(ctx context.Context, ep *episode.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("validating episode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ep.Version = 1
	s.episodes[ep.ID] = clone(ep)
	return nil
}

// List returns all episodes, newest first.
func (s *MemoryStore) List(ctx context.Context) (*ListResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &ListResult{Episodes: make([]*episode.Episode, 0, len(s.episodes))}
	for _, ep := range s.episodes {
		result.Episodes = append(result.Episodes, clone(ep))
	}
	sort.Slice(result.Episodes, func(i, j int) bool {
		return result.Episodes[i].TimestampStart.After(result.Episodes[j].TimestampStart)
	})
	return result, nil
}

// Load finds an episode by full ID or unique short prefix.
func (s *MemoryStore) Load(ctx context.Context, id string) (*episode.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return clone(ep), nil
}

// Update performs a compare-and-swap on the record version.
func (s *MemoryStore) Update(ctx context.Context, ep *episode.Episode) error {
	if err := ep.Validate(); err != nil {
		return fmt.Errorf("validating episode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.episodes[ep.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ep.ID)
	}
	if current.Version != ep.Version {
		return fmt.Errorf("%w: have %d, stored %d", ErrVersionConflict, ep.Version, current.Version)
	}

	ep.Version++
	s.episodes[ep.ID] = clone(ep)
	return nil
}

// Delete removes the record.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, err := s.find(id)
	if err != nil {
		return err
	}
	delete(s.episodes, ep.ID)
	return nil
}

// find resolves a full ID or >=8 char prefix. Caller holds the lock.
func (s *MemoryStore) find(id string) (*episode.Episode, error) {
	if ep, ok := s.episodes[id]; ok {
		return ep, nil
	}
	if len(id) < 8 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var match *episode.Episode
	for key, ep := range s.episodes {
		if strings.HasPrefix(key, id) {
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
			}
			match = ep
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

// clone deep-copies an episode through JSON so callers cannot mutate
// stored state behind the store's back.
func clone(ep *episode.Episode) *episode.Episode {
	data, err := json.Marshal(ep)
	if err != nil {
		// Episode is a plain data struct; marshaling cannot fail.
		panic(err)
	}
	var out episode.Episode
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	return &out
}
