package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CovenantBits/Covforge/src/internal"
	"github.com/CovenantBits/Covforge/src/internal/logger"
)

// Turn is one completed generation in a conversation.
type Turn struct {
	Number      int                     `json:"turn"`
	Intent      string                  `json:"intent"`
	IntentModel internal.IntentModel    `json:"intent_model"`
	Code        string                  `json:"code"`
	TollGate    internal.TollGateResult `json:"toll_gate"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Session holds one conversation's history. CurrentCode tracks the latest
// successful contract for follow-up edits.
type Session struct {
	ID          string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	Turns       []Turn    `json:"turns"`
	CurrentCode string    `json:"current_code"`
}

// Store is the conversation persistence seam. StoreTurn is called only
// after a generation fully succeeds.
type Store interface {
	GetOrCreate(id string) *Session
	Get(id string) (*Session, bool)
	StoreTurn(id string, t Turn) error
	Delete(id string) bool
}

// MemoryStore is the default store. One process, mutex-guarded map.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (s *MemoryStore) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok {
			return sess
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	sess := &Session{ID: id, CreatedAt: time.Now()}
	s.sessions[id] = sess
	logger.Info("Session created: %s", id)
	return sess
}

func (s *MemoryStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *MemoryStore) StoreTurn(id string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	t.Number = len(sess.Turns) + 1
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	sess.Turns = append(sess.Turns, t)
	sess.CurrentCode = t.Code
	logger.Info("Session %s: turn %d stored", id, t.Number)
	return nil
}

func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		logger.Info("Session deleted: %s", id)
		return true
	}
	return false
}
