package orch

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Stranger/internal/core"
)

func TestMessageReachesPartner(t *testing.T) {
	o := newHub(t, time.Hour)
	_, bob, sid := pairUp(t, o)

	if err := o.SendMessage(sid, "alice", "hi"); err != nil {
		t.Fatal(err)
	}
	msg := bob.conn.last(core.EvMessageReceived)
	if msg == nil {
		t.Fatalf("bob got %v", bob.conn.types())
	}
	if msg["from"] != "Alice" || msg["fromId"] != "alice" || msg["text"] != "hi" || msg["sessionId"] != string(sid) {
		t.Fatalf("unexpected message %v", msg)
	}
	if ts, _ := msg["timestamp"].(float64); ts <= 0 {
		t.Fatalf("timestamp missing: %v", msg["timestamp"])
	}
}

func TestRelayRejectsOutsiders(t *testing.T) {
	o := newHub(t, time.Hour)
	_, bob, sid := pairUp(t, o)
	connect(t, o, "carol", "Carol")

	if err := o.SendMessage(sid, "carol", "psst"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if err := o.SendVoice("missing", "alice", "AAAA"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if bob.conn.last(core.EvMessageReceived) != nil {
		t.Fatal("rejected relay must not reach anyone")
	}
}

func TestVoiceAndImageKeepPayloadOpaque(t *testing.T) {
	o := newHub(t, time.Hour)
	_, bob, sid := pairUp(t, o)

	if err := o.SendVoice(sid, "alice", "b3B1cw=="); err != nil {
		t.Fatal(err)
	}
	if v := bob.conn.last(core.EvVoiceNoteReceived); v == nil || v["audio"] != "b3B1cw==" {
		t.Fatalf("voice note lost: %v", v)
	}

	if err := o.SendImage(sid, "alice", "data:image/png;base64,xyz"); err != nil {
		t.Fatal(err)
	}
	types := bob.conn.types()
	up := slices.Index(types, core.EvImageUploading)
	got := slices.Index(types, core.EvImageReceived)
	if up < 0 || got < 0 || up > got {
		t.Fatalf("image_uploading must precede image_received, got %v", types)
	}
	if img := bob.conn.last(core.EvImageReceived); img["image"] != "data:image/png;base64,xyz" {
		t.Fatalf("image payload changed: %v", img)
	}
}

func TestTypingGoesToPartnerOnly(t *testing.T) {
	o := newHub(t, time.Hour)
	alice, bob, _ := pairUp(t, o)
	carol := connect(t, o, "carol", "Carol")

	if err := o.Typing("alice", "bob", true); err != nil {
		t.Fatal(err)
	}
	if ev := bob.conn.last(core.EvTypingStarted); ev == nil || ev["from"] != "Alice" {
		t.Fatalf("bob should see alice typing, got %v", ev)
	}
	if alice.conn.last(core.EvTypingStarted) != nil {
		t.Fatal("typing is not echoed to the sender")
	}
	if err := o.Typing("alice", "bob", false); err != nil {
		t.Fatal(err)
	}
	if bob.conn.last(core.EvTypingStopped) == nil {
		t.Fatal("bob should see typing stop")
	}
	if err := o.Typing("alice", "carol", true); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if carol.conn.last(core.EvTypingStarted) != nil {
		t.Fatal("carol is not alice's partner")
	}
}
