package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/crmbot/core/logger"
)

// DefaultTTL bounds how long an untouched session stays live.
const DefaultTTL = 30 * time.Minute

// MemoryOptions configures the in-memory manager.
type MemoryOptions struct {
	// TTL of an idle session; zero selects DefaultTTL, negative disables expiry.
	TTL time.Duration
	Now func() time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// MemoryManager is a mutex-guarded Manager backed by a map.
type MemoryManager struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager(opts MemoryOptions) *MemoryManager {
	if opts.TTL == 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MemoryManager{
		ttl:      opts.TTL,
		now:      opts.Now,
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
	}
}

// Lock acquires the per-user lock. Lock entries are dropped once nobody holds or waits on them.
func (m *MemoryManager) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			m.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(m.locks, userID)
			}
			m.locksMu.Unlock()
		})
	}
}

func (m *MemoryManager) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// Get returns a copy of the live session for a user.
func (m *MemoryManager) Get(userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok || m.expired(s) {
		return nil, ErrNoSession
	}
	return s.clone(), nil
}

// Put stores a copy of s and refreshes its timestamp.
func (m *MemoryManager) Put(userID int64, s *Session) {
	if s == nil {
		return
	}
	cp := s.clone()
	cp.UpdatedAt = m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = cp
}

// Start replaces any session for the user with an empty one in state st.
func (m *MemoryManager) Start(userID int64, st State) *Session {
	s := &Session{State: st, Data: make(map[string]string), UpdatedAt: m.now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = s
	return s.clone()
}

// Delete removes the session for a user.
func (m *MemoryManager) Delete(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	delete(m.sessions, userID)
	return !m.expired(s)
}

// GetState returns the current state of a user, or StateIdle if none exists.
func (m *MemoryManager) GetState(userID int64) State {
	s, err := m.Get(userID)
	if err != nil {
		return StateIdle
	}
	return s.State
}

// InProgress reports whether the user currently has a live session.
func (m *MemoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

// Len returns the number of stored sessions, expired ones included until swept.
func (m *MemoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryManager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *MemoryManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug(ctx, "flow", "session.sweep",
					slog.String("status", "ok"),
					slog.Int("swept", n),
					slog.Int("sessions", m.Len()),
				)
			}
		}
	}
}
