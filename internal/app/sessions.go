package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyInSession = errors.New("identity already in a session")
	ErrSelfPair         = errors.New("cannot pair an identity with itself")
)

type CallState int

const (
	CallIdle CallState = iota
	CallRinging
	CallActive
)

func (s CallState) String() string {
	switch s {
	case CallRinging:
		return "ringing"
	case CallActive:
		return "active"
	default:
		return "idle"
	}
}

// Session is one matched pair. It owns two routing groups: the chat group
// and, while a call is up, the call group.
type Session struct {
	ID        domain.SessionID
	A, B      domain.Identity
	Key       string
	CreatedAt time.Time

	peers [2]domain.Peer

	mu        sync.RWMutex
	group     map[domain.ConnID]struct{}
	call      map[domain.ConnID]struct{}
	callState CallState
}

func (s *Session) Has(identity domain.Identity) bool {
	return identity == s.A || identity == s.B
}

// Partner returns the other participant.
func (s *Session) Partner(identity domain.Identity) (domain.Identity, bool) {
	switch identity {
	case s.A:
		return s.B, true
	case s.B:
		return s.A, true
	}
	return "", false
}

// Peer returns the participant as it was named when the session started.
func (s *Session) Peer(identity domain.Identity) domain.Peer {
	if identity == s.B {
		return s.peers[1]
	}
	return s.peers[0]
}

func (s *Session) Join(cids ...domain.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cid := range cids {
		s.group[cid] = struct{}{}
	}
}

// JoinCall adds cids to the call group, only while a call is up.
func (s *Session) JoinCall(cids ...domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callState == CallIdle {
		return false
	}
	for _, cid := range cids {
		s.call[cid] = struct{}{}
	}
	return true
}

// Leave drops a connection from both groups.
func (s *Session) Leave(cid domain.ConnID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.group, cid)
	delete(s.call, cid)
}

func (s *Session) Members() []domain.ConnID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.group)
}

func (s *Session) CallMembers() []domain.ConnID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keys(s.call)
}

func (s *Session) CallState() CallState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callState
}

// StartCall opens the call group with cids and moves to ringing. It fails
// while another call is up.
func (s *Session) StartCall(cids ...domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callState != CallIdle {
		return false
	}
	s.callState = CallRinging
	for _, cid := range cids {
		s.call[cid] = struct{}{}
	}
	return true
}

// AcceptCall moves a ringing call to active.
func (s *Session) AcceptCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callState != CallRinging {
		return false
	}
	s.callState = CallActive
	return true
}

// EndCall clears the call group and returns the connections it held. ok is
// false when no call was up.
func (s *Session) EndCall() (members []domain.ConnID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callState == CallIdle {
		return nil, false
	}
	members = keys(s.call)
	clear(s.call)
	s.callState = CallIdle
	return members, true
}

func (s *Session) dissolve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.group)
	clear(s.call)
	s.callState = CallIdle
}

func keys(set map[domain.ConnID]struct{}) []domain.ConnID {
	out := make([]domain.ConnID, 0, len(set))
	for cid := range set {
		out = append(out, cid)
	}
	return out
}

// Sessions is the table of active sessions, indexed by id and by participant.
type Sessions struct {
	mu     sync.RWMutex
	byID   map[domain.SessionID]*Session
	byUser map[domain.Identity]domain.SessionID
}

func NewSessions() *Sessions {
	return &Sessions{
		byID:   make(map[domain.SessionID]*Session),
		byUser: make(map[domain.Identity]domain.SessionID),
	}
}

// Create registers a session between a and b with the given chat group.
func (m *Sessions) Create(pa, pb domain.Peer, key string, now time.Time, group []domain.ConnID) (*Session, error) {
	a, b := pa.ID, pb.ID
	if a == b {
		return nil, ErrSelfPair
	}
	s := &Session{
		ID:        domain.NewSessionID(a, b, now),
		A:         a,
		B:         b,
		Key:       key,
		CreatedAt: now,
		peers:     [2]domain.Peer{pa, pb},
		group:     make(map[domain.ConnID]struct{}, len(group)),
		call:      make(map[domain.ConnID]struct{}),
	}
	for _, cid := range group {
		s.group[cid] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUser[a]; ok {
		return nil, ErrAlreadyInSession
	}
	if _, ok := m.byUser[b]; ok {
		return nil, ErrAlreadyInSession
	}
	m.byID[s.ID] = s
	m.byUser[a] = s.ID
	m.byUser[b] = s.ID
	log.Info().Str("module", "app.sessions").Str("session", string(s.ID)).Str("a", string(a)).Str("b", string(b)).Int("group", len(group)).Msg("session created")
	return s, nil
}

func (m *Sessions) Get(id domain.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// FindFor locates the session identity takes part in.
func (m *Sessions) FindFor(identity domain.Identity) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUser[identity]
	if !ok {
		return nil, false
	}
	return m.byID[id], true
}

// Remove deletes the session and empties its groups. Removing an unknown
// id is a no-op.
func (m *Sessions) Remove(id domain.SessionID) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		if m.byUser[s.A] == id {
			delete(m.byUser, s.A)
		}
		if m.byUser[s.B] == id {
			delete(m.byUser, s.B)
		}
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.dissolve()
	log.Info().Str("module", "app.sessions").Str("session", string(id)).Msg("session removed")
	return s, true
}

func (m *Sessions) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
