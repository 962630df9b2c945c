package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/metrics"
	"github.com/rs/zerolog/log"
)

// joinAttempts bounds retries when the room is torn down between lookup and lock.
const joinAttempts = 3

// Join admits the connection sid into roomName under name, creating the room
// and its pipeline on first use.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, conn core.SignalConnection, roomName domain.RoomName, name domain.ParticipantName) error {
	const op = "joinRoom"
	if prev, ok := o.Registry.GetByID(sid); ok && prev.RoomName() != "" {
		return core.ConflictError(op, fmt.Errorf("%w: %s", core.ErrAlreadyJoined, prev.RoomName()))
	}

	for range joinAttempts {
		var room *core.Room
		err := o.call(ctx, func(ctx context.Context) error {
			var err error
			room, err = o.Rooms.GetOrCreate(ctx, roomName)
			return err
		})
		if err != nil {
			return core.EngineError(op, err)
		}
		err = room.Exclusive(func() error {
			return o.join(ctx, room, sid, conn, name)
		})
		if errors.Is(err, core.ErrRoomClosed) {
			continue
		}
		return err
	}
	return core.EngineError(op, core.ErrRoomClosed)
}

// join runs with the room's operation lock held.
func (o *Orchestrator) join(ctx context.Context, room *core.Room, sid core.SessionID, conn core.SignalConnection, name domain.ParticipantName) error {
	const op = "joinRoom"
	if room.Closed() {
		return core.ErrRoomClosed
	}
	if _, taken := room.Participant(name); taken {
		return core.ConflictError(op, fmt.Errorf("%w: %q in %s", core.ErrNameTaken, name, room.Name()))
	}

	sess := core.NewSession(sid, name, conn)
	sess.SetRoom(room.Name())
	o.Registry.Register(sess)

	outgoing, err := o.createEndpoint(ctx, room, metrics.RolePublish)
	if err != nil {
		o.abortJoin(ctx, room, sess)
		return core.EngineError(op, err)
	}
	o.bindOutgoing(ctx, sess, outgoing)
	if err := o.call(ctx, func(ctx context.Context) error {
		return outgoing.OnIceCandidate(ctx, o.candidateRelay(room, sess, name))
	}); err != nil {
		o.abortJoin(ctx, room, sess)
		return core.EngineError(op, err)
	}

	for _, member := range room.Participants() {
		o.deliver(room, member, core.NewNewParticipantArrived(name))
	}
	o.deliver(room, sess, core.NewExistingParticipants(room.ParticipantNames(name), room.Name()))
	room.AddParticipant(sess)
	o.Metrics.SessionJoined()

	log.Info().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("room", string(room.Name())).
		Str("name", string(name)).
		Int("participants", room.Len()).
		Msg("joined room")
	return nil
}

// bindOutgoing stores the publish endpoint and flushes candidates the client
// sent ahead of it. A rejected candidate does not fail the join.
func (o *Orchestrator) bindOutgoing(ctx context.Context, sess *core.Session, ep core.Endpoint) {
	var flushed int
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		flushed, err = sess.BindOutgoing(ctx, ep)
		return err
	})
	o.Metrics.CandidatesFlushedN(flushed)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Msg("queued candidates rejected")
	}
}

// abortJoin undoes a join that failed after the session was registered.
func (o *Orchestrator) abortJoin(ctx context.Context, room *core.Room, sess *core.Session) {
	outgoing, incoming := sess.Detach()
	o.release(ctx, outgoing)
	for _, ep := range incoming {
		o.release(ctx, ep)
	}
	o.Registry.Unregister(sess)
	if room.Len() == 0 {
		o.destroyRoom(ctx, room)
	}
}

// Leave removes the connection's participant from its room. Leaving while in
// no room is a no-op.
func (o *Orchestrator) Leave(ctx context.Context, sid core.SessionID) error {
	sess, ok := o.Registry.GetByID(sid)
	if !ok {
		return nil
	}
	return o.leaveSession(ctx, sess)
}

func (o *Orchestrator) leaveSession(ctx context.Context, sess *core.Session) error {
	roomName := sess.RoomName()
	if roomName == "" {
		return nil
	}
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		outgoing, incoming := sess.Detach()
		o.release(ctx, outgoing)
		for _, ep := range incoming {
			o.release(ctx, ep)
		}
		return nil
	}
	return room.Exclusive(func() error {
		o.leave(ctx, room, sess)
		return nil
	})
}

// leave runs with the room's operation lock held.
func (o *Orchestrator) leave(ctx context.Context, room *core.Room, sess *core.Session) {
	name := sess.Name()
	outgoing, incoming := sess.Detach()
	o.release(ctx, outgoing)
	for _, ep := range incoming {
		o.release(ctx, ep)
	}
	if cur, ok := room.Participant(name); !ok || cur != sess {
		return
	}
	room.RemoveParticipant(name)
	o.Metrics.SessionLeft()

	for _, member := range room.Participants() {
		o.release(ctx, member.TakeIncoming(name))
		o.deliver(room, member, core.NewParticipantLeft(name))
	}

	log.Info().
		Str("module", "orch").
		Str("sid", string(sess.ID())).
		Str("room", string(room.Name())).
		Str("name", string(name)).
		Int("participants", room.Len()).
		Msg("left room")

	if room.Len() == 0 {
		o.destroyRoom(ctx, room)
	}
}

// destroyRoom closes an empty room and releases its pipeline. Callers hold the
// room's operation lock.
func (o *Orchestrator) destroyRoom(ctx context.Context, room *core.Room) {
	room.MarkClosed()
	o.Rooms.Remove(room)
	if err := o.call(ctx, room.Pipeline().Release); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room.Name())).Msg("pipeline release failed")
	}
	log.Info().Str("module", "orch").Str("room", string(room.Name())).Msg("room closed")
}

// Kick forces a participant out of its room and tells its connection why.
func (o *Orchestrator) Kick(ctx context.Context, roomName domain.RoomName, name domain.ParticipantName) error {
	const op = "kick"
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return core.ResolutionError(op, fmt.Errorf("%w: %s", core.ErrUnknownRoom, roomName))
	}
	sess, ok := room.Participant(name)
	if !ok {
		return core.ResolutionError(op, fmt.Errorf("%w: %s", core.ErrUnknownPeer, name))
	}
	if err := o.leaveSession(ctx, sess); err != nil {
		return err
	}
	o.deliver(room, sess, core.NewErrorMsg(core.KindKicked, fmt.Sprintf("removed from room %s", roomName)))
	return nil
}
