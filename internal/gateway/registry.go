package gateway

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks live sessions per user. A user may hold several sockets
// (multiple tabs or devices); turn serialization is per session, not per user.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID][]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[uuid.UUID][]*Session{}}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.userID] = append(r.sessions[s.userID], s)
}

func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := r.sessions[s.userID]
	for i, candidate := range live {
		if candidate == s {
			r.sessions[s.userID] = append(live[:i], live[i+1:]...)
			break
		}
	}
	if len(r.sessions[s.userID]) == 0 {
		delete(r.sessions, s.userID)
	}
}

func (r *Registry) CountForUser(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}
