package state

import (
	"errors"
	"time"
)

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
)

// ErrNoSession is returned when a user has no live session.
var ErrNoSession = errors.New("state: no session")

// Session stores the conversation step and the values collected so far.
type Session struct {
	State     State
	Data      map[string]string
	UpdatedAt time.Time
}

// Value returns the value stored under key.
func (s *Session) Value(key string) (string, bool) {
	if s == nil || s.Data == nil {
		return "", false
	}
	v, ok := s.Data[key]
	return v, ok
}

func (s *Session) clone() *Session {
	cp := &Session{State: s.State, UpdatedAt: s.UpdatedAt, Data: make(map[string]string, len(s.Data))}
	for k, v := range s.Data {
		cp.Data[k] = v
	}
	return cp
}

// Manager owns user sessions.
type Manager interface {
	// Lock serialises event handling for a single user and returns the unlock func.
	Lock(userID int64) func()

	// Get returns a copy of the live session or ErrNoSession.
	Get(userID int64) (*Session, error)
	// Put stores the session, replacing any previous one.
	Put(userID int64, s *Session)
	// Start replaces any session with a fresh one in the given state.
	Start(userID int64, st State) *Session
	// Delete removes the session and reports whether one existed.
	Delete(userID int64) bool

	GetState(userID int64) State
	InProgress(userID int64) bool
	Len() int
}
