package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var ErrNotStored = errors.New("room not stored")

// Store persists rooms as JSON documents keyed by room name. Callers outside
// the registry must not use it directly: it offers no read-modify-write
// protection of its own.
type Store interface {
	Load(ctx context.Context, name string) (*Room, error)
	Save(ctx context.Context, r *Room) error
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context) ([]string, error)
}

// FinishedLister is implemented by stores that can list finished rooms last
// updated before cutoff. The names are candidates only; deletion goes
// through the registry.
type FinishedLister interface {
	FinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

func Encode(r *Room) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize room %s: %w", r.Name, err)
	}
	return data, nil
}

func Decode(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to deserialize room: %w", err)
	}
	return &r, nil
}

// MemoryStore keeps encoded documents so every Load hands out a fresh copy,
// the same as the networked stores.
type MemoryStore struct {
	docs map[string][]byte
	mu   sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
	}
}

func (s *MemoryStore) Load(_ context.Context, name string) (*Room, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotStored
	}
	return Decode(data)
}

func (s *MemoryStore) Save(_ context.Context, r *Room) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[r.Name] = data
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, name)
	return nil
}

func (s *MemoryStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *MemoryStore) FinishedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, data := range s.docs {
		r, err := Decode(data)
		if err != nil {
			return nil, err
		}
		if r.Status == StatusFinished && r.UpdatedAt.Before(cutoff) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}
