package signal

import (
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRegister(
	c *WsSignalConn,
	data []byte,
) {
	type registerPayload struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	var p registerPayload
	if !ctl.decode(c, data, &p) {
		return
	}
	user, err := ctl.Orch.Register(c.id, p.Name)
	if err != nil {
		ctl.reportError(c, err)
		return
	}
	log.Info().Str("module", "signal").Str("identity", string(c.identity)).Str("name", user.Name).Msg("registered")
	ctl.sendJSON(c, core.RegisteredEvent{Type: core.EvRegistered, User: user})
}

func (ctl *SignalWSController) handleJoin(
	c *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("identity", string(c.identity)).Msg("join")
	if err := ctl.Orch.Join(c.id, c.identity); err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleSkip(
	c *WsSignalConn,
	data []byte,
) {
	type skipPayload struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
	}
	var p skipPayload
	if !ctl.decode(c, data, &p) {
		return
	}
	log.Info().Str("module", "signal").Str("identity", string(c.identity)).Str("session", string(p.SessionID)).Msg("skip")
	if err := ctl.Orch.Skip(c.identity, p.SessionID); err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleNext(
	c *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("identity", string(c.identity)).Msg("next")
	if err := ctl.Orch.Next(c.id, c.identity); err != nil {
		ctl.reportError(c, err)
	}
}

// handleRemoveIdentity is sent when the user leaves on purpose, e.g. closes
// the page; no grace window applies.
func (ctl *SignalWSController) handleRemoveIdentity(
	c *WsSignalConn,
	data []byte,
) {
	type removePayload struct {
		Type     string          `json:"type"`
		Identity domain.Identity `json:"identity"`
	}
	var p removePayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.Identity) {
		return
	}
	log.Info().Str("module", "signal").Str("identity", string(c.identity)).Msg("remove identity")
	ctl.Orch.RemoveIdentity(c.identity)
}

func (ctl *SignalWSController) handleJoinSession(
	c *WsSignalConn,
	data []byte,
) {
	type joinSessionPayload struct {
		Type      string           `json:"type"`
		SessionID domain.SessionID `json:"sessionId"`
		Identity  domain.Identity  `json:"identity"`
	}
	var p joinSessionPayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.Identity) {
		return
	}
	if err := ctl.Orch.JoinSession(c.id, c.identity, p.SessionID); err != nil {
		ctl.reportError(c, err)
	}
}
