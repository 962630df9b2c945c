package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Bandwidth holds the receive bounds applied to every endpoint, in kbps.
type Bandwidth struct {
	MaxRecvKbps int
	MinRecvKbps int
}

// Orchestrator drives sessions, rooms and the media engine for the signaling
// protocol. Messages of one connection must be handed to it sequentially.
type Orchestrator struct {
	Registry    *app.Registry
	Rooms       *app.RoomManager
	Policy      app.Policy
	Bandwidth   Bandwidth
	CallTimeout time.Duration
	Metrics     *metrics.Metrics
}

// call runs one media engine operation under the configured timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(context.Context) error) error {
	if o.CallTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, o.CallTimeout)
	defer cancel()
	return fn(ctx)
}

// deliver sends msg to s and applies the back-pressure policy when the
// session's queue is full.
func (o *Orchestrator) deliver(room *core.Room, s *core.Session, msg any) {
	err := s.Send(msg)
	if err == nil {
		return
	}
	logger := log.With().Str("module", "orch").Str("sid", string(s.ID())).Str("name", string(s.Name())).Logger()
	if !errors.Is(err, core.ErrBackpressure) || o.Policy == nil {
		logger.Debug().Err(err).Msg("message not delivered")
		return
	}
	switch o.Policy.OnBackPressure(room, s) {
	case app.Disconnect:
		logger.Warn().Msg("outbound queue full, disconnecting")
		s.Conn().Close()
	case app.DropMessage, app.NoAction:
		logger.Warn().Msg("outbound queue full, message dropped")
	}
}

func (o *Orchestrator) release(ctx context.Context, ep core.Endpoint) {
	if ep == nil {
		return
	}
	if err := o.call(ctx, ep.Release); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("endpoint", ep.ID()).Msg("endpoint release failed")
		return
	}
	o.Metrics.EndpointReleased()
}

// OnDisconnect is the implicit leave of a connection that went away, followed
// by forgetting its session.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	sess, ok := o.Registry.GetByID(sid)
	if !ok {
		return
	}
	if err := o.leaveSession(ctx, sess); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("leave on disconnect")
	}
	o.Registry.Unregister(sess)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}
