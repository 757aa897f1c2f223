package orch

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Stranger/internal/app"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
)

// fakeConn records every event it is sent, decoded.
type fakeConn struct {
	mu     sync.Mutex
	events []map[string]any
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	var ev map[string]any
	if err := json.Unmarshal(f, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrClosed
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) ofType(typ string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, ev := range c.events {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeConn) last(typ string) map[string]any {
	evs := c.ofType(typ)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev["type"].(string))
	}
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type client struct {
	id   domain.Identity
	cid  domain.ConnID
	conn *fakeConn
}

func newHub(t *testing.T, grace time.Duration) *Orchestrator {
	t.Helper()
	o := New(app.NewRegistry(app.SimplePolicy{}), grace)
	var tick atomic.Int64
	base := time.Unix(1_700_000_000, 0)
	o.Now = func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}
	t.Cleanup(o.Close)
	return o
}

// connect attaches a new tab for identity and registers name when given.
func connect(t *testing.T, o *Orchestrator, identity, name string) *client {
	t.Helper()
	conn := &fakeConn{}
	cid, err := o.Attach(domain.Identity(identity), conn)
	if err != nil {
		t.Fatalf("attach %s: %v", identity, err)
	}
	if name != "" {
		if _, err := o.Register(cid, name); err != nil {
			t.Fatalf("register %s: %v", identity, err)
		}
	}
	return &client{id: domain.Identity(identity), cid: cid, conn: conn}
}

func (c *client) join(t *testing.T, o *Orchestrator) {
	t.Helper()
	if err := o.Join(c.cid, c.id); err != nil {
		t.Fatalf("join %s: %v", c.id, err)
	}
}

// pairUp connects and matches alice with bob.
func pairUp(t *testing.T, o *Orchestrator) (alice, bob *client, sid domain.SessionID) {
	t.Helper()
	alice = connect(t, o, "alice", "Alice")
	bob = connect(t, o, "bob", "Bob")
	alice.join(t, o)
	bob.join(t, o)
	s, ok := o.Sessions.FindFor("alice")
	if !ok {
		t.Fatal("alice and bob were not paired")
	}
	return alice, bob, s.ID
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func peerField(ev map[string]any, key, field string) string {
	m, _ := ev[key].(map[string]any)
	s, _ := m[field].(string)
	return s
}
