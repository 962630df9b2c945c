package signal

import (
	"context"
	"errors"

	"github.com/dkeye/groupcall/internal/core"
)

var ErrRateLimited = errors.New("too many join attempts")

func (ctl *SignalWSController) handleJoin(ctx context.Context, sid core.SessionID, token string, conn *WsSignalConn, msg *inbound) error {
	key := token
	if key == "" {
		key = string(sid)
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(key) {
		return core.RateLimitedError(msg.ID, ErrRateLimited)
	}
	return ctl.Orch.Join(ctx, sid, conn, msg.roomName(), msg.participant())
}

func (ctl *SignalWSController) handleLeave(ctx context.Context, sid core.SessionID) error {
	return ctl.Orch.Leave(ctx, sid)
}
