package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/metrics"
	"github.com/rs/zerolog/log"
)

// createEndpoint makes an endpoint on the room's pipeline with the receive
// bandwidth bounds applied.
func (o *Orchestrator) createEndpoint(ctx context.Context, room *core.Room, role string) (core.Endpoint, error) {
	var ep core.Endpoint
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		ep, err = room.Pipeline().CreateEndpoint(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.Metrics.EndpointCreated(role)

	if kbps := o.Bandwidth.MaxRecvKbps; kbps > 0 {
		err = o.call(ctx, func(ctx context.Context) error { return ep.SetMaxRecvBandwidth(ctx, kbps) })
	}
	if kbps := o.Bandwidth.MinRecvKbps; err == nil && kbps > 0 {
		err = o.call(ctx, func(ctx context.Context) error { return ep.SetMinRecvBandwidth(ctx, kbps) })
	}
	if err != nil {
		o.release(ctx, ep)
		return nil, err
	}
	return ep, nil
}

// candidateRelay forwards engine-gathered candidates to the session's client,
// tagged with the participant whose media the endpoint carries.
func (o *Orchestrator) candidateRelay(room *core.Room, to *core.Session, tag domain.ParticipantName) func(core.IceCandidate) {
	return func(c core.IceCandidate) {
		o.deliver(room, to, core.NewIceCandidateMsg(tag, c))
	}
}

// ReceiveVideoFrom negotiates the requester's receive endpoint for sender's
// media and answers with the engine's SDP.
func (o *Orchestrator) ReceiveVideoFrom(ctx context.Context, sid core.SessionID, sender domain.ParticipantName, offer string) error {
	const op = "receiveVideoFrom"
	requester, ok := o.Registry.GetByID(sid)
	if !ok {
		return core.UnregisteredError(op, core.ErrUnknownSession)
	}
	room, ok := o.Rooms.Get(requester.RoomName())
	if !ok {
		return core.ResolutionError(op, core.ErrNotInRoom)
	}

	var ep core.Endpoint
	err := room.Exclusive(func() error {
		if cur, ok := room.Participant(requester.Name()); !ok || cur != requester {
			return core.ResolutionError(op, core.ErrNotInRoom)
		}
		source, ok := room.Participant(sender)
		if !ok {
			return core.ResolutionError(op, fmt.Errorf("%w: %s", core.ErrUnknownPeer, sender))
		}
		var err error
		ep, err = o.receiveEndpoint(ctx, room, requester, source)
		return err
	})
	if err != nil {
		return err
	}

	var answer string
	if err := o.call(ctx, func(ctx context.Context) error {
		var err error
		answer, err = ep.ProcessOffer(ctx, offer)
		return err
	}); err != nil {
		return core.EngineError(op, err)
	}
	o.deliver(room, requester, core.NewReceiveVideoAnswer(sender, answer))

	if err := o.call(ctx, ep.GatherCandidates); err != nil {
		return core.EngineError(op, err)
	}
	log.Debug().
		Str("module", "orch").
		Str("sid", string(sid)).
		Str("name", string(requester.Name())).
		Str("sender", string(sender)).
		Msg("receive endpoint negotiated")
	return nil
}

// receiveEndpoint resolves the endpoint requester uses for source's media:
// its own publish endpoint, an existing subscription, or a new one fed from
// the source's publish endpoint. Runs with the room's operation lock held.
func (o *Orchestrator) receiveEndpoint(ctx context.Context, room *core.Room, requester, source *core.Session) (core.Endpoint, error) {
	const op = "receiveVideoFrom"
	if requester == source {
		ep := requester.OutgoingMedia()
		if ep == nil {
			return nil, core.ResolutionError(op, core.ErrNotPublishing)
		}
		return ep, nil
	}
	if ep, ok := requester.IncomingMedia(source.Name()); ok {
		return ep, nil
	}
	publish := source.OutgoingMedia()
	if publish == nil {
		return nil, core.ResolutionError(op, fmt.Errorf("%w: %s", core.ErrNotPublishing, source.Name()))
	}

	ep, err := o.createEndpoint(ctx, room, metrics.RoleSubscribe)
	if err != nil {
		return nil, core.EngineError(op, err)
	}

	var flushed int
	err = o.call(ctx, func(ctx context.Context) error {
		var err error
		flushed, err = requester.BindIncoming(ctx, source.Name(), ep)
		return err
	})
	o.Metrics.CandidatesFlushedN(flushed)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(requester.ID())).Msg("queued candidates rejected")
	}

	err = o.call(ctx, func(ctx context.Context) error {
		return ep.OnIceCandidate(ctx, o.candidateRelay(room, requester, source.Name()))
	})
	if err == nil {
		err = o.call(ctx, func(ctx context.Context) error { return publish.Connect(ctx, ep) })
	}
	if err != nil {
		o.release(ctx, requester.TakeIncoming(source.Name()))
		return nil, core.EngineError(op, err)
	}
	return ep, nil
}

// OnIceCandidate applies a client candidate to the endpoint for target, or
// queues it until that endpoint exists.
func (o *Orchestrator) OnIceCandidate(ctx context.Context, sid core.SessionID, target domain.ParticipantName, c core.IceCandidate) error {
	const op = "onIceCandidate"
	sess, ok := o.Registry.GetByID(sid)
	if !ok {
		return core.UnregisteredError(op, core.ErrUnknownSession)
	}
	if sess.RoomName() == "" {
		return core.ResolutionError(op, core.ErrNotInRoom)
	}

	var queued bool
	if err := o.call(ctx, func(ctx context.Context) error {
		var err error
		queued, err = sess.AddIceCandidate(ctx, target, c)
		return err
	}); err != nil {
		return core.EngineError(op, err)
	}
	if queued {
		o.Metrics.CandidateQueued()
	}
	return nil
}
