package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/core/mock_core"
	"github.com/dkeye/Stranger/internal/domain"
	"go.uber.org/mock/gomock"
)

func TestAttachRejectsEmptyIdentity(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Attach("", "c1", &recordingConn{}); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
	if r.Count() != 0 {
		t.Fatal("rejected attach must not create a profile")
	}
}

func TestAttachDetachTracksTabs(t *testing.T) {
	r := NewRegistry(nil)
	first, err := r.Attach("alice", "c1", &recordingConn{})
	if err != nil || !first {
		t.Fatalf("first attach: returning=%v err=%v", first, err)
	}
	second, _ := r.Attach("alice", "c2", &recordingConn{})
	if second {
		t.Fatal("second tab is not a returning attach")
	}
	if _, err := r.Attach("alice", "c2", &recordingConn{}); !errors.Is(err, ErrDuplicateConn) {
		t.Fatalf("expected ErrDuplicateConn, got %v", err)
	}
	if r.Count() != 2 || len(r.Connections("alice")) != 2 {
		t.Fatalf("expected two connections, got %d", r.Count())
	}

	id, last, ok := r.Detach("c1")
	if !ok || last || id != "alice" {
		t.Fatalf("detach c1: id=%q last=%v ok=%v", id, last, ok)
	}
	_, last, _ = r.Detach("c2")
	if !last {
		t.Fatal("detaching the final tab must report last")
	}
	if r.HasConnections("alice") {
		t.Fatal("identity entry should be gone")
	}
	if _, _, ok := r.Detach("c2"); ok {
		t.Fatal("second detach must be a no-op")
	}
}

func TestResolveDisplayNameFromAnyTab(t *testing.T) {
	r := NewRegistry(nil)
	r.Attach("alice", "c1", &recordingConn{})
	r.Attach("alice", "c2", &recordingConn{})
	if _, ok := r.ResolveDisplayName("alice"); ok {
		t.Fatal("no name registered yet")
	}
	if err := r.SetProfile("c2", "  Alice "); err != nil {
		t.Fatal(err)
	}
	name, ok := r.ResolveDisplayName("alice")
	if !ok || name != "Alice" {
		t.Fatalf("got %q, %v", name, ok)
	}
	if err := r.SetProfile("nope", "x"); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("expected ErrUnknownConnection, got %v", err)
	}
	if err := r.SetProfile("c1", ""); !errors.Is(err, domain.ErrUsernameEmpty) {
		t.Fatalf("expected ErrUsernameEmpty, got %v", err)
	}
	if p := r.Peer("bob"); p.Name != "bob" {
		t.Fatalf("unknown identity falls back to its id, got %+v", p)
	}
}

func TestFanOutReachesEveryTab(t *testing.T) {
	r := NewRegistry(nil)
	tabs := make([]*recordingConn, 5)
	for i := range tabs {
		tabs[i] = &recordingConn{}
		r.Attach("alice", domain.ConnID(fmt.Sprintf("c%d", i)), tabs[i])
	}
	bob := &recordingConn{}
	r.Attach("bob", "b1", bob)

	res := r.FanOut("alice", core.Frame(`{"type":"x"}`))
	if res.Sent != 5 || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	for i, tab := range tabs {
		if tab.count() != 1 {
			t.Fatalf("tab %d got %d frames", i, tab.count())
		}
	}
	if bob.count() != 0 {
		t.Fatal("other identities must not receive the fan-out")
	}

	all := r.Broadcast(core.Frame(`{}`))
	if all.Sent != 6 {
		t.Fatalf("broadcast reached %d", all.Sent)
	}
}

func TestDeliverReportsDetachedConnections(t *testing.T) {
	r := NewRegistry(nil)
	r.Attach("alice", "c1", &recordingConn{})
	res := r.Deliver([]domain.ConnID{"c1", "gone"}, core.Frame(`{}`))
	if res.Sent != 1 || len(res.Failed) != 1 || res.Failed[0] != "gone" {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := r.SendTo("gone", core.Frame(`{}`)); err == nil {
		t.Fatal("expected error for unknown connection")
	}
}

func TestSlowConnectionIsKicked(t *testing.T) {
	ctrl := gomock.NewController(t)
	slow := mock_core.NewMockSignalConnection(ctrl)
	slow.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure)
	slow.EXPECT().Close().Times(1)

	r := NewRegistry(SimplePolicy{})
	r.Attach("alice", "c1", slow)
	r.Attach("alice", "c2", &recordingConn{})

	res := r.FanOut("alice", core.Frame(`{}`))
	if res.Sent != 1 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDropPolicyKeepsConnection(t *testing.T) {
	ctrl := gomock.NewController(t)
	slow := mock_core.NewMockSignalConnection(ctrl)
	slow.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure).Times(2)
	slow.EXPECT().Close().Times(0)

	r := NewRegistry(DropPolicy{})
	r.Attach("alice", "c1", slow)
	r.FanOut("alice", core.Frame(`{}`))
	r.FanOut("alice", core.Frame(`{}`))
}

func TestClosedConnectionIsNotKicked(t *testing.T) {
	ctrl := gomock.NewController(t)
	gone := mock_core.NewMockSignalConnection(ctrl)
	gone.EXPECT().TrySend(gomock.Any()).Return(core.ErrClosed)

	r := NewRegistry(SimplePolicy{})
	r.Attach("alice", "c1", gone)
	if res := r.FanOut("alice", core.Frame(`{}`)); len(res.Failed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}
