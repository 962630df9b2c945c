package app

import (
	"sync"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry maps connection identity to the participant session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*core.Session),
	}
}

// Register binds s to its connection id, replacing a previous session of the
// same connection.
func (r *Registry) Register(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("name", string(s.Name())).Msg("registered session")
}

func (r *Registry) GetByID(sid core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

// GetByName finds the session called name inside room. Linear scan; rooms
// resolve peers through their own membership map first.
func (r *Registry) GetByName(room domain.RoomName, name domain.ParticipantName) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.Name() == name && s.RoomName() == room {
			return s, true
		}
	}
	return nil, false
}

// Unregister removes s if it is still the session bound to its connection.
func (r *Registry) Unregister(s *core.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID()]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.ID())
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Msg("unregistered session")
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
