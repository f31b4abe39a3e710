package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrFull = errors.New("session limit reached")

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	engine   *Engine
	ttl      time.Duration
	max      int
	log      *slog.Logger
}

func NewStore(engine *Engine, ttl time.Duration, maxSessions int, log *slog.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		engine:   engine,
		ttl:      ttl,
		max:      maxSessions,
		log:      log,
	}
}

// Create parses text into a new session. Expired sessions are evicted first
// when the store is full.
func (s *Store) Create(name, text string) (*Session, error) {
	if s.max > 0 && s.Len() >= s.max {
		s.Cleanup()
		if s.Len() >= s.max {
			return nil, fmt.Errorf("create session: %w (%d)", ErrFull, s.max)
		}
	}

	sess := newSession(s.engine, name, text)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.engine.rec.SetSessions(n)
	s.log.Info("session created", "session_id", sess.ID, "name", name, "segments", len(sess.Message().Segments))
	return sess, nil
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.close()
	s.engine.rec.SetSessions(n)
	s.log.Info("session deleted", "session_id", id)
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and returns how many were removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	removed := s.evictLocked(time.Now())
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range removed {
		sess.close()
		s.log.Info("session expired", "session_id", sess.ID)
	}
	if len(removed) > 0 {
		s.engine.rec.SetSessions(n)
	}
	return len(removed)
}

func (s *Store) evictLocked(now time.Time) []*Session {
	var removed []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.lastUpdate()) > s.ttl {
			delete(s.sessions, id)
			removed = append(removed, sess)
		}
	}
	return removed
}

// Run evicts expired sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
