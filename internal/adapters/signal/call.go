package signal

import (
	"encoding/json"

	"github.com/dkeye/Stranger/internal/adapters/rtc"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleCall(
	c *WsSignalConn,
	kind string,
	data []byte,
) {
	type callPayload struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		From      domain.Identity  `json:"from"`
		To        domain.Identity  `json:"to"`
	}
	var p callPayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.From) {
		return
	}

	var err error
	switch kind {
	case "start_call":
		err = ctl.Orch.StartCall(p.SessionID, c.identity, p.To)
	case "accept_call":
		err = ctl.Orch.AcceptCall(p.SessionID, c.identity, p.To)
	case "reject_call":
		err = ctl.Orch.RejectCall(p.SessionID, c.identity, p.To)
	case "end_call":
		err = ctl.Orch.EndCall(p.SessionID, c.identity, p.To)
	}
	if err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleRelaySignal(
	c *WsSignalConn,
	data []byte,
) {
	type signalPayload struct {
		Type       string           `json:"type"`
		SessionID  domain.SessionID `json:"sessionId"`
		From       domain.Identity  `json:"from"`
		SignalType string           `json:"signalType"`
		Payload    json.RawMessage  `json:"payload"`
	}
	var p signalPayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.From) {
		return
	}
	log.Debug().
		Str("module", "signal").
		Str("session", string(p.SessionID)).
		Str("signal", p.SignalType).
		Str("kind", rtc.ClassifySignal(p.SignalType).String()).
		Int("bytes", len(p.Payload)).
		Msg("relay signal")
	if err := ctl.Orch.RelaySignal(p.SessionID, c.identity, p.SignalType, p.Payload); err != nil {
		ctl.reportError(c, err)
	}
}
