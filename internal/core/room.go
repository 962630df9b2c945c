package core

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/groupcall/internal/domain"
)

// Room holds the room's pipeline and its authoritative membership set.
//
// Membership changes and endpoint wiring inside the room run under
// Exclusive; the read accessors may be used from anywhere.
type Room struct {
	name     domain.RoomName
	pipeline Pipeline

	op sync.Mutex

	mu           sync.RWMutex
	participants map[domain.ParticipantName]*Session
	closed       bool
}

func NewRoom(name domain.RoomName, pipeline Pipeline) *Room {
	return &Room{
		name:         name,
		pipeline:     pipeline,
		participants: make(map[domain.ParticipantName]*Session),
	}
}

func (r *Room) Name() domain.RoomName { return r.name }
func (r *Room) Pipeline() Pipeline    { return r.pipeline }

// Exclusive runs fn with the room's operation lock held.
func (r *Room) Exclusive(fn func() error) error {
	r.op.Lock()
	defer r.op.Unlock()
	return fn()
}

func (r *Room) AddParticipant(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[s.Name()] = s
}

func (r *Room) RemoveParticipant(name domain.ParticipantName) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.participants, name)
}

func (r *Room) Participant(name domain.ParticipantName) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.participants[name]
	return s, ok
}

// Participants returns the members sorted by name.
func (r *Room) Participants() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.participants))
	for _, s := range r.participants {
		out = append(out, s)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.Name(), b.Name()) })
	return out
}

// ParticipantNames returns the sorted member names, without except.
func (r *Room) ParticipantNames(except domain.ParticipantName) []domain.ParticipantName {
	out := make([]domain.ParticipantName, 0)
	for _, s := range r.Participants() {
		if s.Name() != except {
			out = append(out, s.Name())
		}
	}
	return out
}

func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// MarkClosed flags the room as destroyed. A closed room accepts no joins.
func (r *Room) MarkClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *Room) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Room) Info() RoomInfo {
	info := RoomInfo{
		Name:         r.name,
		Participants: r.ParticipantNames(""),
	}
	info.ParticipantCount = len(info.Participants)
	if r.pipeline != nil {
		info.PipelineID = r.pipeline.ID()
	}
	return info
}
