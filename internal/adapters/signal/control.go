package signal

import (
	"github.com/dkeye/groupcall/internal/core"
	"github.com/rs/zerolog/log"
)

// sendError reports err to the client as a structured error message. The
// connection stays open.
func (ctl *SignalWSController) sendError(sid core.SessionID, conn *WsSignalConn, err error) {
	code := core.KindOf(err)
	ctl.Metrics.SignalError(string(code))
	ev := log.Warn()
	if code == core.KindInternal || code == core.KindEngine {
		ev = log.Error()
	}
	ev.Err(err).Str("module", "signal").Str("sid", string(sid)).Str("code", string(code)).Msg("request failed")
	ctl.sendJSON(conn, core.NewErrorMsg(code, err.Error()))
}
