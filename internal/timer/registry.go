package timer

import "sync"

// Registry holds one Manager per session.
type Registry struct {
	clock    Clock
	onExpire ExpireFunc

	mu       sync.Mutex
	sessions map[string]*Manager
}

func NewRegistry(clock Clock, onExpire ExpireFunc) *Registry {
	return &Registry{clock: clock, onExpire: onExpire, sessions: make(map[string]*Manager)}
}

// Session returns the session's manager, creating it on first use.
func (r *Registry) Session(sessionID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.sessions[sessionID]
	if !ok {
		m = NewManager(sessionID, r.clock, r.onExpire)
		r.sessions[sessionID] = m
	}
	return m
}

func (r *Registry) Lookup(sessionID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sessions[sessionID]
	return m, ok
}

// Drop stops and forgets a session's countdowns.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	m, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		m.StopAll()
	}
}

// Snapshot returns the countdowns of every session.
func (r *Registry) Snapshot() map[string][]Snapshot {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.sessions))
	for _, m := range r.sessions {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	out := make(map[string][]Snapshot, len(managers))
	for _, m := range managers {
		out[m.sessionID] = m.Snapshot()
	}
	return out
}

// Close disarms every pending expiry. Countdown states are kept so a
// Snapshot taken afterwards can be restored on the next start.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.sessions {
		m.disarm()
	}
}
