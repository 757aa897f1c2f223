package app

import (
	"sync"

	"github.com/dkeye/Stranger/internal/domain"
	"github.com/rs/zerolog/log"
)

// Matcher holds the FIFO waiting pool and the idle pool. An identity is in
// at most one of them.
type Matcher struct {
	mu      sync.Mutex
	queue   []domain.Identity
	waiting map[domain.Identity]struct{}
	idle    map[domain.Identity]struct{}
}

func NewMatcher() *Matcher {
	return &Matcher{
		waiting: make(map[domain.Identity]struct{}),
		idle:    make(map[domain.Identity]struct{}),
	}
}

// RequestMatch pops waiting identities until one is neither the caller nor
// rejected by eligible. Rejected heads are stale and dropped. When the queue
// runs dry the caller is enqueued instead.
func (m *Matcher) RequestMatch(identity domain.Identity, eligible func(domain.Identity) bool) (partner domain.Identity, matched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.queue) > 0 {
		head := m.queue[0]
		m.queue[0] = ""
		m.queue = m.queue[1:]
		if _, ok := m.waiting[head]; !ok {
			continue
		}
		delete(m.waiting, head)

		if head == identity {
			log.Debug().Str("module", "app.matcher").Str("identity", string(identity)).Msg("self match skipped")
			continue
		}
		if eligible != nil && !eligible(head) {
			log.Debug().Str("module", "app.matcher").Str("candidate", string(head)).Msg("stale candidate dropped")
			continue
		}
		m.forgetLocked(identity)
		return head, true
	}

	m.enqueueLocked(identity)
	return "", false
}

// Enqueue adds identity to the back of the queue unless it is already
// waiting. It reports whether the identity was appended.
func (m *Matcher) Enqueue(identity domain.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(identity)
}

func (m *Matcher) enqueueLocked(identity domain.Identity) bool {
	delete(m.idle, identity)
	if _, ok := m.waiting[identity]; ok {
		return false
	}
	m.waiting[identity] = struct{}{}
	m.queue = append(m.queue, identity)
	return true
}

// Remove purges identity from both pools and compacts the queue.
func (m *Matcher) Remove(identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgetLocked(identity)
}

// Forget clears identities from both pools, e.g. once they are paired.
func (m *Matcher) Forget(identities ...domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range identities {
		m.forgetLocked(id)
	}
}

func (m *Matcher) forgetLocked(identity domain.Identity) {
	delete(m.idle, identity)
	if _, ok := m.waiting[identity]; !ok {
		return
	}
	delete(m.waiting, identity)
	kept := m.queue[:0]
	for _, id := range m.queue {
		if id != identity {
			kept = append(kept, id)
		}
	}
	clear(m.queue[len(kept):])
	m.queue = kept
}

// MarkIdle parks identity in the idle pool until it asks to join again.
func (m *Matcher) MarkIdle(identity domain.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forgetLocked(identity)
	m.idle[identity] = struct{}{}
}

func (m *Matcher) IsWaiting(identity domain.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiting[identity]
	return ok
}

func (m *Matcher) IsIdle(identity domain.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.idle[identity]
	return ok
}

func (m *Matcher) WaitingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}

// Waiting returns the queue in match order.
func (m *Matcher) Waiting() []domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Identity, 0, len(m.queue))
	for _, id := range m.queue {
		if _, ok := m.waiting[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
