package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for development without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

type memorySession struct {
	Session
	result json.RawMessage
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memorySession), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, errors.New("sessions: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		return Session{}, fmt.Errorf("sessions: create: session %s already exists", id)
	}
	return s.insertLocked(id), nil
}

func (s *MemoryStore) Ensure(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("sessions: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.insertLocked(id)
	}
	return nil
}

func (s *MemoryStore) insertLocked(id string) Session {
	sess := Session{ID: id, CreatedAt: s.now().UTC(), Status: StatusActive}
	s.sessions[id] = &memorySession{Session: sess}
	return sess
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.Session, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Session, error) {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n := listLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, u Update) error {
	if u.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if u.PatientName != nil {
		sess.PatientName = u.PatientName
	}
	if u.Status != nil {
		sess.Status = *u.Status
	}
	if u.ConditionName != nil {
		sess.ConditionName = u.ConditionName
	}
	if u.ResultType != nil {
		sess.ResultType = u.ResultType
	}
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, id string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.result = append(json.RawMessage(nil), result...)
	return nil
}

func (s *MemoryStore) GetResult(_ context.Context, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if len(sess.result) == 0 {
		return nil, nil
	}
	return append(json.RawMessage(nil), sess.result...), nil
}

func (s *MemoryStore) DeleteInactive(_ context.Context) (int64, error) {
	return s.deleteActive(func(*memorySession) bool { return true })
}

func (s *MemoryStore) DeleteInactiveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return s.deleteActive(func(sess *memorySession) bool { return sess.CreatedAt.Before(cutoff) })
}

func (s *MemoryStore) deleteActive(match func(*memorySession) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.sessions {
		if sess.Status == StatusActive && match(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
