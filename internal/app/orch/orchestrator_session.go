package orch

import (
	"fmt"

	"github.com/dkeye/Stranger/internal/app"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

var leaveMessages = map[string]string{
	core.ReasonSkipped:      "Stranger skipped the chat",
	core.ReasonLeft:         "Stranger has left the chat",
	core.ReasonDisconnected: "Stranger disconnected",
}

// Register sets the display name of a connection.
func (o *Orchestrator) Register(cid domain.ConnID, name string) (domain.Peer, error) {
	if err := o.Registry.SetProfile(cid, name); err != nil {
		return domain.Peer{}, err
	}
	identity, _ := o.Registry.IdentityOf(cid)
	return o.Registry.Peer(identity), nil
}

// Join pairs identity with the longest-waiting stranger or queues it.
func (o *Orchestrator) Join(cid domain.ConnID, identity domain.Identity) error {
	if _, ok := o.Registry.ResolveDisplayName(identity); !ok {
		return ErrNotRegistered
	}
	if s, ok := o.Sessions.FindFor(identity); ok {
		// another tab is already chatting; bring this one in
		s.Join(cid)
		o.Send(cid, o.established(s, identity))
		return nil
	}

	s, err := o.pair(identity)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("identity", string(identity)).Msg("matching failed, requeued")
		o.Matcher.Enqueue(identity)
		o.fanOut(identity, core.WaitingEvent{Type: core.EvWaiting, Retry: true})
		return nil
	}
	if s == nil {
		log.Info().Str("module", "orch").Str("identity", string(identity)).Int("waiting", o.Matcher.WaitingLen()).Msg("waiting")
		return nil
	}
	o.announce(s)
	return nil
}

// pair runs one matching attempt under the pairing lock. A nil session
// with a nil error means identity was queued.
func (o *Orchestrator) pair(identity domain.Identity) (s *app.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("matching panic: %v", r)
		}
	}()
	o.pairMu.Lock()
	defer o.pairMu.Unlock()

	if s, ok := o.Sessions.FindFor(identity); ok {
		return s, nil
	}
	partner, matched := o.Matcher.RequestMatch(identity, o.eligible)
	if !matched {
		// sent under the lock so it cannot overtake a later session_established
		o.fanOut(identity, core.WaitingEvent{Type: core.EvWaiting})
		return nil, nil
	}
	return o.createLocked(partner, identity)
}

// eligible reports whether a queued identity can still be matched.
func (o *Orchestrator) eligible(identity domain.Identity) bool {
	if !o.Registry.HasConnections(identity) {
		return false
	}
	_, busy := o.Sessions.FindFor(identity)
	return !busy
}

// CreateSession pairs a and b directly and notifies both.
func (o *Orchestrator) CreateSession(a, b domain.Identity) (*app.Session, error) {
	o.pairMu.Lock()
	s, err := o.createLocked(a, b)
	o.pairMu.Unlock()
	if err != nil {
		return nil, err
	}
	o.announce(s)
	return s, nil
}

func (o *Orchestrator) createLocked(a, b domain.Identity) (*app.Session, error) {
	key, err := domain.NewSessionKey()
	if err != nil {
		return nil, err
	}
	group := append(o.Registry.Connections(a), o.Registry.Connections(b)...)
	s, err := o.Sessions.Create(o.Registry.Peer(a), o.Registry.Peer(b), key, o.Now(), group)
	if err != nil {
		return nil, err
	}
	o.Matcher.Forget(a, b)
	return s, nil
}

func (o *Orchestrator) established(s *app.Session, self domain.Identity) core.SessionEstablishedEvent {
	partner, _ := s.Partner(self)
	return core.SessionEstablishedEvent{
		Type:       core.EvSessionEstablished,
		SessionID:  s.ID,
		Self:       o.peer(s, self),
		Partner:    o.peer(s, partner),
		SessionKey: s.Key,
	}
}

// peer prefers the live display name and falls back to the one captured
// at pairing time.
func (o *Orchestrator) peer(s *app.Session, identity domain.Identity) domain.Peer {
	if name, ok := o.Registry.ResolveDisplayName(identity); ok {
		return domain.Peer{ID: identity, Name: name}
	}
	return s.Peer(identity)
}

func (o *Orchestrator) announce(s *app.Session) {
	log.Info().Str("module", "orch").Str("session", string(s.ID)).Str("a", string(s.A)).Str("b", string(s.B)).Msg("paired")
	o.fanOut(s.A, o.established(s, s.A))
	o.fanOut(s.B, o.established(s, s.B))
}

// Skip ends sid on behalf of identity. Unknown ids are ignored.
func (o *Orchestrator) Skip(identity domain.Identity, sid domain.SessionID) error {
	s, ok := o.Sessions.Get(sid)
	if !ok {
		return nil
	}
	if !s.Has(identity) {
		return ErrInvalidSession
	}
	o.Teardown(sid, identity, core.ReasonSkipped)
	return nil
}

// Next leaves the current session, if any, and looks for a new stranger.
func (o *Orchestrator) Next(cid domain.ConnID, identity domain.Identity) error {
	if _, ok := o.Registry.ResolveDisplayName(identity); !ok {
		return ErrNotRegistered
	}
	if s, ok := o.Sessions.FindFor(identity); ok {
		o.Teardown(s.ID, identity, core.ReasonSkipped)
	}
	o.Matcher.Enqueue(identity)
	return o.Join(cid, identity)
}

// Teardown removes the session and parks both participants in the idle
// pool. Neither side is requeued. It reports whether anything was removed.
func (o *Orchestrator) Teardown(sid domain.SessionID, initiator domain.Identity, reason string) bool {
	o.pairMu.Lock()
	s, ok := o.Sessions.Remove(sid)
	if ok {
		o.Matcher.MarkIdle(s.A)
		o.Matcher.MarkIdle(s.B)
	}
	o.pairMu.Unlock()
	if !ok {
		return false
	}

	partner, _ := s.Partner(initiator)
	log.Info().
		Str("module", "orch").
		Str("session", string(sid)).
		Str("initiator", string(initiator)).
		Str("reason", reason).
		Msg("session torn down")

	o.fanOut(initiator, core.YouLeftEvent{Type: core.EvYouLeft, SessionID: sid})
	o.fanOut(partner, core.PartnerLeftEvent{
		Type:      core.EvPartnerLeft,
		SessionID: sid,
		Name:      o.peer(s, initiator).Name,
		Reason:    reason,
		Message:   leaveMessages[reason],
	})
	return true
}

// RemoveIdentity purges identity right away, without a grace window.
func (o *Orchestrator) RemoveIdentity(identity domain.Identity) {
	o.cancelGrace(identity)
	o.purge(identity, core.ReasonLeft)
}

func (o *Orchestrator) purge(identity domain.Identity, reason string) {
	if s, ok := o.Sessions.FindFor(identity); ok {
		o.Teardown(s.ID, identity, reason)
	}
	o.Matcher.Remove(identity)
	log.Info().Str("module", "orch").Str("identity", string(identity)).Str("reason", reason).Msg("identity purged")
}

// JoinSession late-binds a connection into the chat group of sid.
func (o *Orchestrator) JoinSession(cid domain.ConnID, identity domain.Identity, sid domain.SessionID) error {
	s, err := o.authorize(sid, identity)
	if err != nil {
		return err
	}
	s.Join(cid)
	s.JoinCall(cid)
	o.Send(cid, o.established(s, identity))
	return nil
}
