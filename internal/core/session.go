package core

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/dkeye/groupcall/internal/domain"
)

// SessionID is the identity of one signaling connection.
type SessionID string

// Session is the per-participant state of a joined connection.
//
// A session outside a room owns no endpoints and has an empty candidate queue.
// Candidates addressed to an endpoint that does not exist yet are queued per
// target peer and flushed in arrival order when the endpoint is bound.
type Session struct {
	id   SessionID
	name domain.ParticipantName
	conn SignalConnection

	mu       sync.Mutex
	roomName domain.RoomName
	outgoing Endpoint
	incoming map[domain.ParticipantName]Endpoint
	iceQueue map[domain.ParticipantName][]IceCandidate
}

func NewSession(id SessionID, name domain.ParticipantName, conn SignalConnection) *Session {
	return &Session{
		id:       id,
		name:     name,
		conn:     conn,
		incoming: make(map[domain.ParticipantName]Endpoint),
		iceQueue: make(map[domain.ParticipantName][]IceCandidate),
	}
}

func (s *Session) ID() SessionID                { return s.id }
func (s *Session) Name() domain.ParticipantName { return s.name }
func (s *Session) Conn() SignalConnection       { return s.conn }

// Send serializes v and queues it on the session's connection.
func (s *Session) Send(v any) error {
	if s.conn == nil {
		return ErrConnClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.conn.TrySend(b)
}

func (s *Session) RoomName() domain.RoomName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomName
}

func (s *Session) SetRoom(name domain.RoomName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomName = name
}

func (s *Session) OutgoingMedia() Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outgoing
}

// BindOutgoing stores the publish endpoint and flushes the candidates queued
// under the session's own name into it. It returns how many were flushed.
func (s *Session) BindOutgoing(ctx context.Context, ep Endpoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outgoing = ep
	return s.flushLocked(ctx, s.name, ep)
}

func (s *Session) IncomingMedia(peer domain.ParticipantName) (Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.incoming[peer]
	return ep, ok
}

// IncomingPeers lists the peers this session currently receives from, sorted.
func (s *Session) IncomingPeers() []domain.ParticipantName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.incoming))
}

// BindIncoming stores the subscribe endpoint toward peer and flushes the
// candidates queued under peer's name into it.
func (s *Session) BindIncoming(ctx context.Context, peer domain.ParticipantName, ep Endpoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incoming[peer] = ep
	return s.flushLocked(ctx, peer, ep)
}

// TakeIncoming removes and returns the subscribe endpoint toward peer.
func (s *Session) TakeIncoming(peer domain.ParticipantName) Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.incoming[peer]
	if !ok {
		return nil
	}
	delete(s.incoming, peer)
	return ep
}

// Detach drops the room association and hands every endpoint the session
// owned back to the caller for release. The candidate queue is discarded.
func (s *Session) Detach() (outgoing Endpoint, incoming map[domain.ParticipantName]Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outgoing, incoming = s.outgoing, s.incoming
	s.outgoing = nil
	s.incoming = make(map[domain.ParticipantName]Endpoint)
	s.iceQueue = make(map[domain.ParticipantName][]IceCandidate)
	s.roomName = ""
	return outgoing, incoming
}

// AddIceCandidate hands c to the endpoint addressed by target, or queues it
// when that endpoint does not exist yet. queued reports which happened.
func (s *Session) AddIceCandidate(ctx context.Context, target domain.ParticipantName, c IceCandidate) (queued bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ep Endpoint
	if target == s.name {
		ep = s.outgoing
	} else {
		ep = s.incoming[target]
	}
	if ep == nil {
		s.iceQueue[target] = append(s.iceQueue[target], c)
		return true, nil
	}
	return false, ep.AddIceCandidate(ctx, c)
}

// QueuedCandidates returns a copy of the candidates buffered for target.
func (s *Session) QueuedCandidates(target domain.ParticipantName) []IceCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.iceQueue[target])
}

func (s *Session) flushLocked(ctx context.Context, target domain.ParticipantName, ep Endpoint) (int, error) {
	queue := s.iceQueue[target]
	delete(s.iceQueue, target)
	var errs []error
	for _, c := range queue {
		if err := ep.AddIceCandidate(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return len(queue), errors.Join(errs...)
}
