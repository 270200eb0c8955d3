package registrations

import (
	"context"
	"sync"

	"chapter/internal/models"
)

// MemoryStore keeps registrations in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]models.Participant
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]models.Participant)}
}

func (s *MemoryStore) Register(_ context.Context, eventID string, p models.Participant) error {
	p, err := Normalize(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Email != "" {
		for _, existing := range s.events[eventID] {
			if existing.Email == p.Email {
				return ErrAlreadyRegistered
			}
		}
	}
	s.events[eventID] = append(s.events[eventID], p)
	return nil
}

func (s *MemoryStore) List(_ context.Context, eventID string) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Participant{}, s.events[eventID]...), nil
}

func (s *MemoryStore) Clear(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, eventID)
	return nil
}
