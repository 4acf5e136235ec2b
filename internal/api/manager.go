// Package api exposes the session command pipeline over HTTP and the
// signal bus over WebSocket. Grounded on pkg/api/server.go's Server
// composition (config + collaborators wired into a mux, auth and CORS
// middleware wrapping it) and pkg/api/ws.go's hub (here thinned down:
// internal/bus already does the fan-out and backpressure dropping, so
// the hub's job is only to pump one session's subscription over one
// socket instead of rebuilding a broadcast registry).
package api

import (
	"sync"

	"github.com/docflow/docflow/internal/agent"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/registry"
)

// Manager hands out one persistent *agent.Agent per session, so that a
// session's mutex and in-process state survive across HTTP requests
// (spec §5: exactly one agent owns a session's State at a time).
type Manager struct {
	mu       sync.Mutex
	registry *registry.Registry
	agents   map[domain.SessionID]*agent.Agent
	deps     agent.Deps
}

// NewManager returns a Manager backed by reg, building agents with deps.
func NewManager(reg *registry.Registry, deps agent.Deps) *Manager {
	return &Manager{
		registry: reg,
		agents:   make(map[domain.SessionID]*agent.Agent),
		deps:     deps,
	}
}

// AgentFor returns the Agent for an already-known session id, starting
// its session.State lazily if this is the first reference to it.
func (m *Manager) AgentFor(id domain.SessionID) *agent.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[id]; ok {
		return a
	}
	st := m.registry.EnsureSession(id)
	a := agent.New(st, m.deps)
	m.agents[id] = a
	return a
}

// AgentForPath derives the deterministic session id for path, ensures
// its session.State and Agent exist, and returns both.
func (m *Manager) AgentForPath(path string) (domain.SessionID, *agent.Agent) {
	id, st := m.registry.EnsureSessionByPath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[id]; ok {
		return id, a
	}
	a := agent.New(st, m.deps)
	m.agents[id] = a
	return id, a
}

// Forget drops the cached Agent for id, e.g. after idle reclaim removes
// its underlying session.State from the registry.
func (m *Manager) Forget(id domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, id)
}

// ForgetAll drops the cached Agents for every id in ids.
func (m *Manager) ForgetAll(ids []domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.agents, id)
	}
}

// Registry exposes the underlying session registry for status endpoints.
func (m *Manager) Registry() *registry.Registry { return m.registry }
