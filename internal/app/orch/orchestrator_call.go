package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Stranger/internal/app"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

// Call events go to every tab of both sides so that all of them track the
// same call state.

func (o *Orchestrator) callSession(sid domain.SessionID, from, to domain.Identity) (*app.Session, error) {
	s, err := o.authorize(sid, from)
	if err != nil {
		return nil, err
	}
	if partner, _ := s.Partner(from); partner != to {
		return nil, ErrInvalidSession
	}
	return s, nil
}

func (o *Orchestrator) callEvent(s *app.Session, typ string, from, to domain.Identity) core.CallEvent {
	return core.CallEvent{
		Type:      typ,
		SessionID: s.ID,
		From:      o.peer(s, from),
		To:        o.peer(s, to),
	}
}

func (o *Orchestrator) StartCall(sid domain.SessionID, from, to domain.Identity) error {
	s, err := o.callSession(sid, from, to)
	if err != nil {
		return err
	}
	if !s.StartCall(append(o.Registry.Connections(from), o.Registry.Connections(to)...)...) {
		return callStateError(s)
	}
	log.Info().Str("module", "orch.call").Str("session", string(sid)).Str("from", string(from)).Msg("call started")

	o.fanOut(from, o.callEvent(s, core.EvOutgoingCallStarted, from, to))
	o.fanOut(to, o.callEvent(s, core.EvIncomingCall, from, to))
	return nil
}

func (o *Orchestrator) AcceptCall(sid domain.SessionID, from, to domain.Identity) error {
	s, err := o.callSession(sid, from, to)
	if err != nil {
		return err
	}
	if !s.AcceptCall() {
		return callStateError(s)
	}
	log.Info().Str("module", "orch.call").Str("session", string(sid)).Str("from", string(from)).Msg("call accepted")
	o.notifyBoth(s, core.EvCallAccepted, from, to)
	return nil
}

func (o *Orchestrator) RejectCall(sid domain.SessionID, from, to domain.Identity) error {
	return o.finishCall(sid, from, to, core.EvCallRejected)
}

func (o *Orchestrator) EndCall(sid domain.SessionID, from, to domain.Identity) error {
	return o.finishCall(sid, from, to, core.EvCallEnded)
}

func (o *Orchestrator) finishCall(sid domain.SessionID, from, to domain.Identity, typ string) error {
	s, err := o.callSession(sid, from, to)
	if err != nil {
		return err
	}
	left, ok := s.EndCall()
	if !ok {
		return callStateError(s)
	}
	log.Info().Str("module", "orch.call").Str("session", string(sid)).Str("event", typ).Int("released", len(left)).Msg("call finished")
	o.notifyBoth(s, typ, from, to)
	return nil
}

// callStateError rejects a call transition that the current state forbids.
func callStateError(s *app.Session) error {
	return fmt.Errorf("%w: call is %s", ErrInvalidSession, s.CallState())
}

func (o *Orchestrator) notifyBoth(s *app.Session, typ string, from, to domain.Identity) {
	ev := o.callEvent(s, typ, from, to)
	o.fanOut(from, ev)
	o.fanOut(to, ev)
}

// RelaySignal forwards an SDP/ICE payload to the session's chat group
// without decoding it.
func (o *Orchestrator) RelaySignal(sid domain.SessionID, from domain.Identity, signalType string, payload json.RawMessage) error {
	s, err := o.authorize(sid, from)
	if err != nil {
		return err
	}
	o.deliver(s.Members(), core.SignalEvent{
		Type:       core.EvSignalReceived,
		SessionID:  sid,
		FromID:     from,
		SignalType: signalType,
		Payload:    payload,
	})
	return nil
}
