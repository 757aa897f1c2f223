package signal

import "github.com/dkeye/Stranger/internal/core"

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: core.EvPong,
	}
	ctl.sendJSON(conn, resp)
}
