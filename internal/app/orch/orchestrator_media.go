package orch

import (
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

// The relay tags payloads by kind and never looks inside them: clients may
// encrypt with the session key.

func (o *Orchestrator) SendMessage(sid domain.SessionID, from domain.Identity, text string) error {
	return o.relay(sid, from, core.RelayEvent{Type: core.EvMessageReceived, Text: text})
}

func (o *Orchestrator) SendVoice(sid domain.SessionID, from domain.Identity, audio string) error {
	return o.relay(sid, from, core.RelayEvent{Type: core.EvVoiceNoteReceived, Audio: audio})
}

// SendImage announces the upload to the group before the payload itself.
func (o *Orchestrator) SendImage(sid domain.SessionID, from domain.Identity, image string) error {
	s, err := o.authorize(sid, from)
	if err != nil {
		return err
	}
	o.deliver(s.Members(), core.RelayEvent{
		Type:      core.EvImageUploading,
		SessionID: sid,
		FromID:    from,
		From:      o.peer(s, from).Name,
	})
	return o.relay(sid, from, core.RelayEvent{Type: core.EvImageReceived, Image: image})
}

func (o *Orchestrator) relay(sid domain.SessionID, from domain.Identity, ev core.RelayEvent) error {
	s, err := o.authorize(sid, from)
	if err != nil {
		return err
	}
	ev.SessionID = sid
	ev.FromID = from
	ev.From = o.peer(s, from).Name
	ev.Timestamp = o.Now().UnixMilli()

	res := o.deliver(s.Members(), ev)
	log.Debug().
		Str("module", "orch").
		Str("session", string(sid)).
		Str("kind", ev.Type).
		Int("sent_to", res.Sent).
		Int("dropped", len(res.Failed)).
		Msg("relayed")
	return nil
}

// Typing forwards a typing indicator to the partner's tabs. Both sides must
// share a session.
func (o *Orchestrator) Typing(from, to domain.Identity, started bool) error {
	s, ok := o.Sessions.FindFor(from)
	if !ok {
		return ErrInvalidSession
	}
	if partner, _ := s.Partner(from); partner != to {
		return ErrInvalidSession
	}
	typ := core.EvTypingStopped
	if started {
		typ = core.EvTypingStarted
	}
	o.fanOut(to, core.TypingEvent{Type: typ, FromID: from, From: o.peer(s, from).Name})
	return nil
}
