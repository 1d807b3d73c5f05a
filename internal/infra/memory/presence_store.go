package memory

import (
	"context"
	"sync"

	"evaly-service/internal/domain"
)

// PresenceStore is an in-memory implementation of app.PresenceRepository.
type PresenceStore struct {
	mu    sync.RWMutex
	rows  map[string]domain.TestPresence
	order []string
}

func NewPresenceStore() *PresenceStore {
	return &PresenceStore{rows: make(map[string]domain.TestPresence)}
}

func (s *PresenceStore) Get(_ context.Context, testID, participantID string) (domain.TestPresence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[s.key(testID, participantID)]
	if !ok {
		return domain.TestPresence{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *PresenceStore) Put(_ context.Context, presence domain.TestPresence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.key(presence.TestID, presence.ParticipantID)
	if _, ok := s.rows[key]; !ok {
		s.order = append(s.order, key)
	}
	s.rows[key] = presence
	return nil
}

func (s *PresenceStore) ListPresent(_ context.Context, testID string, limit int) ([]domain.TestPresence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TestPresence, 0)
	for _, key := range s.order {
		p := s.rows[key]
		if p.TestID != testID || !p.Present {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *PresenceStore) key(testID, participantID string) string {
	return testID + "\x00" + participantID
}
