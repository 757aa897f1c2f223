package app

import (
	"errors"

	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// DeliveryResult reports delivery stats of one fan-out.
type DeliveryResult struct {
	Sent   int
	Failed []domain.ConnID
}

type target struct {
	id       domain.ConnID
	identity domain.Identity
	conn     core.SignalConnection
}

type outcome struct {
	target
	err error
}

// FanOut delivers f to every live connection of identity.
func (r *Registry) FanOut(identity domain.Identity, f core.Frame) DeliveryResult {
	r.mu.RLock()
	targets := make([]target, 0, len(r.byUser[identity]))
	for cid := range r.byUser[identity] {
		e := r.conns[cid]
		targets = append(targets, target{id: cid, identity: e.Identity, conn: e.Conn})
	}
	r.mu.RUnlock()
	return r.deliver(targets, f)
}

// Deliver sends f to the listed connections. Ids that are no longer
// attached are reported as failed.
func (r *Registry) Deliver(ids []domain.ConnID, f core.Frame) DeliveryResult {
	var res DeliveryResult
	r.mu.RLock()
	targets := make([]target, 0, len(ids))
	for _, cid := range ids {
		e, ok := r.conns[cid]
		if !ok {
			res.Failed = append(res.Failed, cid)
			continue
		}
		targets = append(targets, target{id: cid, identity: e.Identity, conn: e.Conn})
	}
	r.mu.RUnlock()
	out := r.deliver(targets, f)
	out.Failed = append(out.Failed, res.Failed...)
	return out
}

// SendTo delivers f to a single connection.
func (r *Registry) SendTo(cid domain.ConnID, f core.Frame) error {
	res := r.Deliver([]domain.ConnID{cid}, f)
	if len(res.Failed) > 0 {
		return ErrUnknownConnection
	}
	return nil
}

// Broadcast delivers f to every live connection.
func (r *Registry) Broadcast(f core.Frame) DeliveryResult {
	r.mu.RLock()
	targets := make([]target, 0, len(r.conns))
	for cid, e := range r.conns {
		targets = append(targets, target{id: cid, identity: e.Identity, conn: e.Conn})
	}
	r.mu.RUnlock()
	return r.deliver(targets, f)
}

// deliver dispatches one task per target and waits for all of them. A slow
// or failing connection never holds up the others.
func (r *Registry) deliver(targets []target, f core.Frame) DeliveryResult {
	var res DeliveryResult
	if len(targets) == 0 {
		return res
	}

	p := pool.NewWithResults[outcome]()
	for _, t := range targets {
		p.Go(func() outcome {
			return outcome{target: t, err: t.conn.TrySend(f)}
		})
	}
	for _, o := range p.Wait() {
		if o.err == nil {
			res.Sent++
			continue
		}
		res.Failed = append(res.Failed, o.id)
		r.onFailure(o.target, o.err)
	}
	log.Debug().Str("module", "app.fanout").Int("sent_to", res.Sent).Int("dropped", len(res.Failed)).Msg("fan-out result")
	return res
}

func (r *Registry) onFailure(t target, err error) {
	if !errors.Is(err, core.ErrBackpressure) {
		return
	}
	switch r.policy.OnBackPressure(t.identity, t.conn) {
	case KickMember:
		log.Warn().Str("module", "app.fanout").Str("identity", string(t.identity)).Str("conn", string(t.id)).Msg("slow connection kicked")
		t.conn.Close()
	case MarkSlow, DropFrame, NoAction:
	}
}
