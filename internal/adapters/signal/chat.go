package signal

import (
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
)

type relayPayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	From      domain.Identity  `json:"from,omitempty"`
	Text      string           `json:"text,omitempty"`
	Audio     string           `json:"audio,omitempty"`
	Image     string           `json:"image,omitempty"`
}

// allow applies the per-identity relay rate limit.
func (ctl *SignalWSController) allow(c *WsSignalConn) bool {
	if ctl.Limiter == nil || ctl.Limiter.Allow(c.identity) {
		return true
	}
	ctl.sendError(c, core.CodeRateLimited, "slow down")
	return false
}

func (ctl *SignalWSController) readRelay(c *WsSignalConn, data []byte) (relayPayload, bool) {
	var p relayPayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.From) || !ctl.allow(c) {
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleSendMessage(c *WsSignalConn, data []byte) {
	p, ok := ctl.readRelay(c, data)
	if !ok {
		return
	}
	if err := ctl.Orch.SendMessage(p.SessionID, c.identity, p.Text); err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleSendVoice(c *WsSignalConn, data []byte) {
	p, ok := ctl.readRelay(c, data)
	if !ok {
		return
	}
	if err := ctl.Orch.SendVoice(p.SessionID, c.identity, p.Audio); err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleSendImage(c *WsSignalConn, data []byte) {
	p, ok := ctl.readRelay(c, data)
	if !ok {
		return
	}
	if err := ctl.Orch.SendImage(p.SessionID, c.identity, p.Image); err != nil {
		ctl.reportError(c, err)
	}
}

func (ctl *SignalWSController) handleTyping(c *WsSignalConn, data []byte, started bool) {
	type typingPayload struct {
		Type string          `json:"type"`
		From domain.Identity `json:"from"`
		To   domain.Identity `json:"to"`
	}
	var p typingPayload
	if !ctl.decode(c, data, &p) || !ctl.checkFrom(c, p.From) {
		return
	}
	if err := ctl.Orch.Typing(c.identity, p.To, started); err != nil {
		ctl.reportError(c, err)
	}
}
