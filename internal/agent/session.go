package agent

import (
	"sync"
	"time"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Session is one user's conversation state. Each session carries its own
// mutex; the engine holds it for the whole turn so concurrent requests for
// the same session id serialize instead of racing.
type Session struct {
	mu sync.Mutex

	ID                string
	UserName          string
	Phase             models.Phase
	Context           models.RepairContext
	SuggestedServices []models.ServiceItem
	SelectedServices  []models.ServiceItem
	PendingOrder      *models.OrderSummary
	CurrentQuery      string
	History           []models.HistoryEntry

	CreatedAt time.Time
	LastSeen  time.Time
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Phase:     models.PhaseGreeting,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// Reset clears all transient conversation state back to a fresh greeting
func (s *Session) Reset() {
	s.Phase = models.PhaseGreeting
	s.Context = models.RepairContext{}
	s.SuggestedServices = nil
	s.SelectedServices = nil
	s.PendingOrder = nil
	s.CurrentQuery = ""
}

// View builds the read-only projection exposed by the session endpoint.
// It takes the session mutex so a view never observes a turn mid-mutation.
func (s *Session) View() models.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.SessionView{
		SessionID:              s.ID,
		UserName:               s.UserName,
		ConversationState:      string(s.Phase),
		SuggestedServicesCount: len(s.SuggestedServices),
		SelectedServicesCount:  len(s.SelectedServices),
		HasPendingOrder:        s.PendingOrder != nil,
	}
}

// Store maps session ids to sessions. Sessions are created lazily on first
// contact. With a positive TTL a janitor goroutine evicts idle sessions;
// TTL zero keeps them for the process lifetime.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *logrus.Logger
}

func NewStore(ttl time.Duration, logger *logrus.Logger) *Store {
	store := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
	}

	if ttl > 0 {
		go store.evictIdle()
	}

	return store
}

// Get returns the session for id, creating it on first contact
func (s *Store) Get(id string) *Session {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session
	}

	session = newSession(id)
	s.sessions[id] = session
	s.logger.WithField("session_id", id).Debug("Session created")
	return session
}

// Peek returns the session for id without creating one
func (s *Store) Peek(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Delete removes the session for id
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) evictIdle() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-s.ttl)

		s.mu.Lock()
		for id, session := range s.sessions {
			if session.LastSeen.Before(cutoff) {
				delete(s.sessions, id)
				s.logger.WithField("session_id", id).Debug("Idle session evicted")
			}
		}
		s.mu.Unlock()
	}
}
