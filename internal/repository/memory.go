package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"chat-widget/internal/domain"
)

// MemoryStore is the single-process transcript store used for local serving.
// Expired pages are dropped when loaded, and swept at most once per TTL.
type MemoryStore struct {
	mu        sync.Mutex
	pages     map[string]domain.PageSession
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		pages: make(map[string]domain.PageSession),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, pageID string) (domain.PageSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ps, ok := s.pages[pageID]
	if !ok {
		return domain.PageSession{ID: pageID}, nil
	}
	if ps.TTL <= s.now().Unix() {
		delete(s.pages, pageID)
		return domain.PageSession{ID: pageID}, nil
	}
	ps.Turns = append([]domain.ChatMessage(nil), ps.Turns...)
	return ps, nil
}

func (s *MemoryStore) Save(_ context.Context, ps domain.PageSession) error {
	if strings.TrimSpace(ps.ID) == "" {
		return errors.New("repository: Save: page id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.pages[ps.ID].Version
	if current != ps.Version {
		return ErrConflict
	}

	now := s.now().UTC()
	ps.Turns = append([]domain.ChatMessage(nil), ps.Turns...)
	ps.Version++
	ps.LastActivity = now.Format(time.RFC3339)
	ps.TTL = now.Add(s.ttl).Unix()
	s.pages[ps.ID] = ps
	s.maybeSweepLocked(now)
	return nil
}

func (s *MemoryStore) maybeSweepLocked(now time.Time) {
	if s.lastSweep.IsZero() {
		s.lastSweep = now
		return
	}
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, ps := range s.pages {
		if ps.TTL <= now.Unix() {
			delete(s.pages, id)
		}
	}
}

// Len reports the number of pages currently held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}
