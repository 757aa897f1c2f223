package orch

import (
	"slices"
	"time"

	"github.com/dkeye/Stranger/internal/app"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

// graceTask is the pending departure of an identity whose last connection
// dropped. gen tells a stale expiry apart from the current one.
type graceTask struct {
	gen   uint64
	timer *time.Timer
}

// Attach registers a new connection and returns its id. A returning
// identity keeps its session: the new tab joins the session's groups.
func (o *Orchestrator) Attach(identity domain.Identity, conn core.SignalConnection) (domain.ConnID, error) {
	cid := domain.NewConnID()
	returning, err := o.Registry.Attach(identity, cid, conn)
	if err != nil {
		return "", err
	}
	if returning {
		o.cancelGrace(identity)
	}
	o.Send(cid, core.ConnectionIDEvent{Type: core.EvConnectionID, ConnectionID: cid})

	if s, ok := o.Sessions.FindFor(identity); ok {
		s.Join(cid)
		s.JoinCall(cid)
		o.Send(cid, o.established(s, identity))
	}
	o.broadcastCount()
	return cid, nil
}

// Detach removes a connection. The identity is only purged once the grace
// window passes without a reattach.
func (o *Orchestrator) Detach(cid domain.ConnID) {
	identity, last, ok := o.Registry.Detach(cid)
	if !ok {
		return
	}
	if s, ok := o.Sessions.FindFor(identity); ok {
		s.Leave(cid)
		o.dropFromCall(s, identity)
	}
	o.broadcastCount()
	if last {
		o.scheduleGrace(identity)
	}
}

// dropFromCall ends a call once one side has no connection left in it.
func (o *Orchestrator) dropFromCall(s *app.Session, identity domain.Identity) {
	if s.CallState() == app.CallIdle {
		return
	}
	members := s.CallMembers()
	for _, cid := range o.Registry.Connections(identity) {
		if slices.Contains(members, cid) {
			return
		}
	}
	if _, ok := s.EndCall(); !ok {
		return
	}
	partner, _ := s.Partner(identity)
	log.Info().Str("module", "orch.call").Str("session", string(s.ID)).Str("identity", string(identity)).Msg("call dropped with connection")
	o.fanOut(partner, o.callEvent(s, core.EvCallEnded, identity, partner))
}

func (o *Orchestrator) broadcastCount() {
	if f, ok := encode(core.ActiveUsersEvent{Type: core.EvActiveUsers, Count: o.Registry.Count()}); ok {
		o.Registry.Broadcast(f)
	}
}

func (o *Orchestrator) scheduleGrace(identity domain.Identity) {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	if o.closed {
		return
	}
	if old, ok := o.grace[identity]; ok {
		old.timer.Stop()
	}
	o.gen++
	gen := o.gen
	o.grace[identity] = &graceTask{
		gen:   gen,
		timer: time.AfterFunc(o.GraceWindow, func() { o.expireGrace(identity, gen) }),
	}
	log.Info().Str("module", "orch.presence").Str("identity", string(identity)).Dur("window", o.GraceWindow).Msg("grace window started")
}

func (o *Orchestrator) cancelGrace(identity domain.Identity) {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	if t, ok := o.grace[identity]; ok {
		t.timer.Stop()
		delete(o.grace, identity)
		log.Info().Str("module", "orch.presence").Str("identity", string(identity)).Msg("reattached within grace window")
	}
}

func (o *Orchestrator) expireGrace(identity domain.Identity, gen uint64) {
	o.graceMu.Lock()
	t, ok := o.grace[identity]
	if !ok || t.gen != gen {
		o.graceMu.Unlock()
		return
	}
	delete(o.grace, identity)
	o.graceMu.Unlock()

	// a reattach may have raced the timer
	if o.Registry.HasConnections(identity) {
		return
	}
	o.purge(identity, core.ReasonDisconnected)
}

// GracePending reports whether identity is inside its grace window.
func (o *Orchestrator) GracePending(identity domain.Identity) bool {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	_, ok := o.grace[identity]
	return ok
}
