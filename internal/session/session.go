package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hmansour/progression/internal/engine"
	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/signal"
	"github.com/hmansour/progression/internal/story"
)

// #region session

// Session bundles one user's store, engine, and resolver. Sessions are
// isolated: no cross-session shared mutable state, one writer per profile.
type Session struct {
	ID       string
	Store    *signal.Store
	Engine   *engine.Engine
	Resolver *story.Resolver

	// Mu serializes engine access for callers outside the single-threaded
	// model, e.g. one websocket connection goroutine per session.
	Mu sync.Mutex
}

// #endregion session

// #region manager

// AdapterFactory builds the persistence adapter for a session id. Returning
// nil gives the session an in-memory store.
type AdapterFactory func(sessionID string) (persist.Adapter, error)

// Manager lazily constructs one engine per session id.
type Manager struct {
	mu         sync.Mutex
	graph      *graph.Graph
	factory    AdapterFactory
	sessions   map[string]*Session
	saveWindow time.Duration
}

// NewManager creates a session manager over a shared immutable graph.
func NewManager(g *graph.Graph, factory AdapterFactory) *Manager {
	return &Manager{
		graph:      g,
		factory:    factory,
		sessions:   make(map[string]*Session),
		saveWindow: signal.DefaultSaveWindow,
	}
}

// SetSaveWindow overrides the write-coalescing window applied to stores of
// sessions created after the call.
func (m *Manager) SetSaveWindow(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveWindow = d
}

// Get returns the session for id, creating it on first use. An empty id is
// assigned a fresh one.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.New().String()
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	var adapter persist.Adapter
	if m.factory != nil {
		var err error
		adapter, err = m.factory(id)
		if err != nil {
			return nil, fmt.Errorf("session %s adapter: %w", id, err)
		}
	}

	store := signal.NewStore(adapter, id)
	store.SetSaveWindow(m.saveWindow)
	store.Load()
	eng := engine.New(m.graph, store)
	resolver := story.NewResolver(store, eng)
	eng.Start()

	s := &Session{ID: id, Store: store, Engine: eng, Resolver: resolver}
	m.sessions[id] = s
	return s, nil
}

// Close flushes and removes one session.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Store.Close()
	}
}

// CloseAll flushes and removes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Store.Close()
	}
}

// #endregion manager
