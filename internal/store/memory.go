package store

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tracelens/rootgraph/internal/models"
	"github.com/tracelens/rootgraph/internal/sim"
	"github.com/tracelens/rootgraph/internal/view"
)

// Session is one built graph and its interaction state. The graph is
// rebuilt wholesale on new input; nothing here is ever persisted.
type Session struct {
	ID         string
	Graph      *models.GraphData
	Sim        *sim.Simulation
	Viewport   *view.Viewport
	Controller *view.Controller
	Player     *view.Player
	Filter     view.FilterOptions
	CreatedAt  time.Time

	mu sync.Mutex
}

// Lock serialises access to the session's viewport and interaction state.
// The simulation and player carry their own synchronisation.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

type entry struct {
	session   *Session
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-memory session store with TTL expiry.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	clk      clock.Clock
	// onEvict runs for every expired or deleted session so its
	// simulation and player loops get stopped.
	onEvict func(*Session)
}

// NewMemoryStore creates a store whose sessions expire after ttl. A zero
// ttl keeps sessions until deleted. A nil clock uses the wall clock.
func NewMemoryStore(ttl time.Duration, clk clock.Clock, onEvict func(*Session)) *MemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryStore{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		clk:      clk,
		onEvict:  onEvict,
	}
}

// Put stores a session, refreshing its expiry.
func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expires time.Time
	if m.ttl > 0 {
		expires = m.clk.Now().Add(m.ttl)
	}
	m.sessions[s.ID] = &entry{session: s, expiresAt: expires}
}

// Get returns a live session, refreshing its expiry. Expired sessions are
// evicted on access.
func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	if !e.expiresAt.IsZero() && m.clk.Now().After(e.expiresAt) {
		delete(m.sessions, id)
		m.mu.Unlock()
		m.evict(e.session)
		return nil, false
	}
	if m.ttl > 0 {
		e.expiresAt = m.clk.Now().Add(m.ttl)
	}
	m.mu.Unlock()
	return e.session, true
}

// Delete removes a session and runs the evict hook.
func (m *MemoryStore) Delete(id string) bool {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.evict(e.session)
	return true
}

// Len returns the number of stored sessions, expired ones included until
// the next sweep.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts all expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.clk.Now()

	m.mu.Lock()
	expired := make([]*Session, 0)
	for id, e := range m.sessions {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.sessions, id)
			expired = append(expired, e.session)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.evict(s)
	}
	return len(expired)
}

// Run sweeps periodically until the context is cancelled.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := m.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryStore) evict(s *Session) {
	if m.onEvict != nil {
		m.onEvict(s)
	}
}
