package wizard

import (
	"context"
	"encoding/json"
	"sync"
)

// InMemorySnapshotStore keeps snapshots per session in process memory.
// Values round-trip through JSON so reads can never alias writes, matching
// the durable implementations.
type InMemorySnapshotStore struct {
	mu     sync.RWMutex
	slots  map[string]map[Slot][]byte
	shared map[string]map[string]string
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		slots:  make(map[string]map[Slot][]byte),
		shared: make(map[string]map[string]string),
	}
}

func (s *InMemorySnapshotStore) SaveSlot(_ context.Context, sessionID string, slot Slot, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[sessionID] == nil {
		s.slots[sessionID] = make(map[Slot][]byte)
	}
	s.slots[sessionID][slot] = raw
	return nil
}

func (s *InMemorySnapshotStore) LoadSlot(_ context.Context, sessionID string, slot Slot) (Snapshot, error) {
	s.mu.RLock()
	raw, ok := s.slots[sessionID][slot]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *InMemorySnapshotStore) DeleteSlot(_ context.Context, sessionID string, slot Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots[sessionID], slot)
	return nil
}

func (s *InMemorySnapshotStore) SaveShared(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shared[sessionID] == nil {
		s.shared[sessionID] = make(map[string]string)
	}
	s.shared[sessionID][key] = value
	return nil
}

func (s *InMemorySnapshotStore) LoadShared(_ context.Context, sessionID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.shared[sessionID][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *InMemorySnapshotStore) PurgeExcept(_ context.Context, sessionID string, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot := range s.slots[sessionID] {
		if slot != SlotFinal {
			delete(s.slots[sessionID], slot)
		}
	}
	for key := range s.shared[sessionID] {
		if !keepSet[key] {
			delete(s.shared[sessionID], key)
		}
	}
	return nil
}

// InMemoryClaimStore stores submitted claims for tests and local runs.
type InMemoryClaimStore struct {
	mu     sync.RWMutex
	claims map[string]Claim
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{claims: make(map[string]Claim)}
}

func (s *InMemoryClaimStore) Save(_ context.Context, claim Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[claim.ID] = claim
	return nil
}

func (s *InMemoryClaimStore) FindByID(_ context.Context, id string) (Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claim, ok := s.claims[id]
	if !ok {
		return Claim{}, ErrNotFound
	}
	return claim, nil
}
