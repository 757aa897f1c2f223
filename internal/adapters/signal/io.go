package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/Stranger/internal/app/orch"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			c.Close()
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		ctl.Orch.Detach(c.id)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, core.CodeBadPayload, "malformed frame")
		return
	}

	switch env.Type {
	case "register_identity":
		ctl.handleRegister(c, data)
	case "join":
		ctl.handleJoin(c)
	case "skip":
		ctl.handleSkip(c, data)
	case "next":
		ctl.handleNext(c)
	case "remove_identity":
		ctl.handleRemoveIdentity(c, data)
	case "join_session":
		ctl.handleJoinSession(c, data)
	case "send_message":
		ctl.handleSendMessage(c, data)
	case "send_voice":
		ctl.handleSendVoice(c, data)
	case "send_image":
		ctl.handleSendImage(c, data)
	case "typing_start":
		ctl.handleTyping(c, data, true)
	case "typing_stop":
		ctl.handleTyping(c, data, false)
	case "start_call", "accept_call", "reject_call", "end_call":
		ctl.handleCall(c, env.Type, data)
	case "signal":
		ctl.handleRelaySignal(c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, core.CodeUnknownType, env.Type)
	}
}

// decode unmarshals a payload, answering bad_payload on failure.
func (ctl *SignalWSController) decode(c *WsSignalConn, data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad payload")
		ctl.sendError(c, core.CodeBadPayload, "bad_payload")
		return false
	}
	return true
}

// checkFrom rejects payloads that claim to come from another identity.
func (ctl *SignalWSController) checkFrom(c *WsSignalConn, claimed domain.Identity) bool {
	if claimed != "" && claimed != c.identity {
		ctl.sendError(c, core.CodeForbidden, "identity mismatch")
		return false
	}
	return true
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, code, msg string) {
	ctl.sendJSON(c, core.NewError(code, msg))
}

// reportError maps an operation failure to an error event for the caller only.
func (ctl *SignalWSController) reportError(c *WsSignalConn, err error) {
	code := core.CodeBadPayload
	switch {
	case errors.Is(err, orch.ErrInvalidSession):
		code = core.CodeInvalidSession
	case errors.Is(err, orch.ErrNotRegistered):
		code = core.CodeNotRegistered
	case errors.Is(err, domain.ErrUsernameEmpty), errors.Is(err, domain.ErrUsernameTooLong):
		code = core.CodeInvalidName
	}
	log.Debug().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("code", code).Msg("operation rejected")
	ctl.sendError(c, code, err.Error())
}
