package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Stranger/internal/app"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrNotRegistered  = errors.New("display name not registered")
)

// Orchestrator is the process-wide hub state: connections, pools and
// sessions. Cross-collection pairing decisions are serialized by pairMu.
// Only the waiting notice is sent under it; everything else goes out after
// it is released.
type Orchestrator struct {
	Registry *app.Registry
	Matcher  *app.Matcher
	Sessions *app.Sessions

	GraceWindow time.Duration
	Now         func() time.Time

	pairMu sync.Mutex

	graceMu sync.Mutex
	grace   map[domain.Identity]*graceTask
	gen     uint64
	closed  bool
}

func New(reg *app.Registry, graceWindow time.Duration) *Orchestrator {
	return &Orchestrator{
		Registry:    reg,
		Matcher:     app.NewMatcher(),
		Sessions:    app.NewSessions(),
		GraceWindow: graceWindow,
		Now:         time.Now,
		grace:       make(map[domain.Identity]*graceTask),
	}
}

// Close stops pending grace timers. The orchestrator must not be used after.
func (o *Orchestrator) Close() {
	o.graceMu.Lock()
	defer o.graceMu.Unlock()
	o.closed = true
	for id, t := range o.grace {
		t.timer.Stop()
		delete(o.grace, id)
	}
	log.Info().Str("module", "orch").Msg("closed")
}

func encode(v any) (core.Frame, bool) {
	f, err := core.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode event")
		return nil, false
	}
	return f, true
}

// Send delivers an event to one connection.
func (o *Orchestrator) Send(cid domain.ConnID, v any) {
	if f, ok := encode(v); ok {
		_ = o.Registry.SendTo(cid, f)
	}
}

func (o *Orchestrator) fanOut(identity domain.Identity, v any) app.DeliveryResult {
	f, ok := encode(v)
	if !ok {
		return app.DeliveryResult{}
	}
	return o.Registry.FanOut(identity, f)
}

func (o *Orchestrator) deliver(cids []domain.ConnID, v any) app.DeliveryResult {
	f, ok := encode(v)
	if !ok {
		return app.DeliveryResult{}
	}
	return o.Registry.Deliver(cids, f)
}

// authorize returns the session if it exists and from takes part in it.
func (o *Orchestrator) authorize(sid domain.SessionID, from domain.Identity) (*app.Session, error) {
	s, ok := o.Sessions.Get(sid)
	if !ok || !s.Has(from) {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// Stats is a point-in-time view for operators.
type Stats struct {
	Connections int `json:"connections"`
	Waiting     int `json:"waiting"`
	Sessions    int `json:"sessions"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Connections: o.Registry.Count(),
		Waiting:     o.Matcher.WaitingLen(),
		Sessions:    o.Sessions.Count(),
	}
}
