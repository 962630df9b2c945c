package signal

import (
	"context"

	"github.com/dkeye/groupcall/internal/core"
)

func (ctl *SignalWSController) handleReceiveVideoFrom(ctx context.Context, sid core.SessionID, msg *inbound) error {
	return ctl.Orch.ReceiveVideoFrom(ctx, sid, msg.sender(), msg.SDPOffer)
}

func (ctl *SignalWSController) handleIceCandidate(ctx context.Context, sid core.SessionID, msg *inbound) error {
	return ctl.Orch.OnIceCandidate(ctx, sid, msg.sender(), *msg.Candidate)
}
