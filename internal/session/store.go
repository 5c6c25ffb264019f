package session

import (
	"strings"
	"sync"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingPath         State = "awaiting_path"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateReady                State = "ready"
)

// Session is a snapshot of one identity's conversation.
type Session struct {
	UserID      int64  `json:"user_id"`
	State       State  `json:"state"`
	ProjectPath string `json:"project_path,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	session Session
}

// Store owns every session. Operations on one identity are serialised; different identities never contend.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

func NewStore() *Store {
	return &Store{entries: map[int64]*entry{}}
}

func (s *Store) entry(userID int64) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{session: Session{UserID: userID, State: StateIdle}}
		s.entries[userID] = e
	}
	return e
}

func (s *Store) Get(userID int64) Session {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Update runs fn with exclusive access to the identity's session and stores the result.
func (s *Store) Update(userID int64, fn func(*Session)) Session {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
	e.session.UserID = userID
	return e.session
}

// Start moves the identity to AwaitingPath from any state.
func (s *Store) Start(userID int64) Session {
	return s.Update(userID, func(sess *Session) {
		sess.State = StateAwaitingPath
	})
}

// ProjectOpened records path and asks for confirmation.
func (s *Store) ProjectOpened(userID int64, path string) Session {
	return s.Update(userID, func(sess *Session) {
		sess.State = StateAwaitingConfirmation
		sess.ProjectPath = path
	})
}

// Confirm applies the operator's answer and reports whether it was affirmative.
func (s *Store) Confirm(userID int64, answer string) (Session, bool) {
	ok := IsAffirmative(answer)
	sess := s.Update(userID, func(sess *Session) {
		if sess.State != StateAwaitingConfirmation {
			return
		}
		if ok {
			sess.State = StateReady
		} else {
			sess.State = StateAwaitingPath
		}
	})
	return sess, ok
}

func (s *Store) List() []Session {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.session)
		e.mu.Unlock()
	}
	return out
}

func IsAffirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func IsStartCommand(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "start", "/start":
		return true
	default:
		return false
	}
}
