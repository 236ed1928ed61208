// Package memory keeps sessions in process memory, sessions are lost on
// restart and not shared between replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/navikt/meraki-connect/pkg/errs"
	"github.com/navikt/meraki-connect/pkg/service"
)

var _ service.SessionStorage = &sessionStorage{}

type sessionStorage struct {
	mu       sync.RWMutex
	sessions map[string]service.Session
	now      func() time.Time
}

func (s *sessionStorage) GetSession(_ context.Context, id string) (*service.Session, error) {
	const op errs.Op = "memory.GetSession"

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || session.Expired(s.now()) {
		return nil, errs.E(errs.NotExist, op, errs.Parameter("session"), errs.Str("session not found"))
	}

	return &session, nil
}

func (s *sessionStorage) SaveSession(_ context.Context, session *service.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = *session

	return nil
}

func (s *sessionStorage) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)

	return nil
}

func (s *sessionStorage) DeleteExpiredSessions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	var n int64
	for id, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}

	return n, nil
}

func NewSessionStorage(now func() time.Time) *sessionStorage {
	if now == nil {
		now = time.Now
	}

	return &sessionStorage{
		sessions: map[string]service.Session{},
		now:      now,
	}
}
