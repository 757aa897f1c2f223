package rtc

import (
	"testing"

	"github.com/dkeye/Stranger/internal/config"
	"github.com/pion/webrtc/v4"
)

func TestClassifySignal(t *testing.T) {
	cases := map[string]SignalKind{
		"offer":         SignalSDP,
		"answer":        SignalSDP,
		"pranswer":      SignalSDP,
		"ice-candidate": SignalICE,
		"candidate":     SignalICE,
		"renegotiate":   SignalOther,
		"":              SignalOther,
	}
	for in, want := range cases {
		if got := ClassifySignal(in); got != want {
			t.Errorf("ClassifySignal(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestConfigurationDefaults(t *testing.T) {
	cfg, err := Configuration(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("unexpected default ICE servers: %+v", cfg.ICEServers)
	}
}

func TestConfigurationWithTurn(t *testing.T) {
	cfg, err := Configuration([]config.ICEServer{
		{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"},
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := cfg.ICEServers[0]
	if srv.Username != "u" || srv.CredentialType != webrtc.ICECredentialTypePassword {
		t.Fatalf("credentials not carried: %+v", srv)
	}
}

func TestConfigurationRejectsBadURL(t *testing.T) {
	_, err := Configuration([]config.ICEServer{{URLs: []string{"http://nope"}}})
	if err == nil {
		t.Fatal("expected error for non-ICE url")
	}
}
