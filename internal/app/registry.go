package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyIdentity     = errors.New("empty identity")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrDuplicateConn     = errors.New("connection already attached")
)

// connEntry is the profile of one live connection.
type connEntry struct {
	ID       domain.ConnID
	Identity domain.Identity
	Username string
	Conn     core.SignalConnection
}

// Registry maps identities to their live connections (one per open tab)
// and holds the display-name profile of every connection.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.ConnID]*connEntry
	byUser map[domain.Identity]map[domain.ConnID]struct{}

	policy Policy
}

func NewRegistry(policy Policy) *Registry {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Registry{
		conns:  make(map[domain.ConnID]*connEntry),
		byUser: make(map[domain.Identity]map[domain.ConnID]struct{}),
		policy: policy,
	}
}

// Attach records conn under identity. returning reports whether the identity
// had no live connections before this call.
func (r *Registry) Attach(identity domain.Identity, cid domain.ConnID, conn core.SignalConnection) (returning bool, err error) {
	if identity == "" {
		return false, ErrEmptyIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[cid]; ok {
		return false, ErrDuplicateConn
	}
	r.conns[cid] = &connEntry{ID: cid, Identity: identity, Conn: conn}
	set, ok := r.byUser[identity]
	if !ok {
		set = make(map[domain.ConnID]struct{})
		r.byUser[identity] = set
	}
	set[cid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("identity", string(identity)).Str("conn", string(cid)).Int("tabs", len(set)).Msg("attached")
	return len(set) == 1, nil
}

func (r *Registry) SetProfile(cid domain.ConnID, displayName string) error {
	name, err := domain.NormalizeUsername(displayName)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return ErrUnknownConnection
	}
	e.Username = name
	log.Info().Str("module", "app.registry").Str("conn", string(cid)).Str("username", name).Msg("updated username")
	return nil
}

// Detach removes a connection. last is true when it was the identity's final one.
func (r *Registry) Detach(cid domain.ConnID) (identity domain.Identity, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false, false
	}
	delete(r.conns, cid)
	set := r.byUser[e.Identity]
	delete(set, cid)
	if len(set) == 0 {
		delete(r.byUser, e.Identity)
		last = true
	}
	log.Info().Str("module", "app.registry").Str("identity", string(e.Identity)).Str("conn", string(cid)).Bool("last", last).Msg("detached")
	return e.Identity, last, true
}

// ResolveDisplayName returns any display name registered by one of the
// identity's tabs. The name arrives after attach, so any tab may hold it.
func (r *Registry) ResolveDisplayName(identity domain.Identity) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for cid := range r.byUser[identity] {
		if name := r.conns[cid].Username; name != "" {
			return name, true
		}
	}
	return "", false
}

// Peer returns identity with its resolved name, falling back to the identity.
func (r *Registry) Peer(identity domain.Identity) domain.Peer {
	name, ok := r.ResolveDisplayName(identity)
	if !ok {
		name = string(identity)
	}
	return domain.Peer{ID: identity, Name: name}
}

func (r *Registry) IdentityOf(cid domain.ConnID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok {
		return "", false
	}
	return e.Identity, true
}

func (r *Registry) Connections(identity domain.Identity) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[identity]
	out := make([]domain.ConnID, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	return out
}

func (r *Registry) HasConnections(identity domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[identity]) > 0
}

// Count is the number of live connection profiles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
