package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/psantana5/opsim/pkg/sim"
)

type memorySlot struct {
	data []byte
	info SlotInfo
}

// MemoryStore is an in-memory implementation of the store; snapshots are kept encoded
// so later changes to the simulation never leak into a saved slot
type MemoryStore struct {
	slots map[string]memorySlot
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]memorySlot)}
}

// Save stores the snapshot under slot
func (s *MemoryStore) Save(ctx context.Context, slot string, state *sim.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	slot = slotOrDefault(slot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot] = memorySlot{
		data: data,
		info: SlotInfo{Slot: slot, Version: state.Version, Time: state.Time, SavedAt: time.Now()},
	}
	return nil
}

// Load returns the snapshot in slot
func (s *MemoryStore) Load(ctx context.Context, slot string) (*sim.State, error) {
	slot = slotOrDefault(slot)

	s.mu.RLock()
	defer s.mu.RUnlock()
	saved, ok := s.slots[slot]
	if !ok {
		return nil, notFound(slot)
	}
	return decodeState(saved.data)
}

// List returns every slot, sorted by name
func (s *MemoryStore) List(ctx context.Context) ([]SlotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SlotInfo, 0, len(s.slots))
	for _, saved := range s.slots {
		out = append(out, saved.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

// Delete removes a slot
func (s *MemoryStore) Delete(ctx context.Context, slot string) error {
	slot = slotOrDefault(slot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot]; !ok {
		return notFound(slot)
	}
	delete(s.slots, slot)
	return nil
}

// HealthCheck always succeeds
func (s *MemoryStore) HealthCheck() error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }
