package rtc

import (
	"fmt"

	"github.com/dkeye/Stranger/internal/config"
	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// DefaultWebRTCConfig is what clients get when nothing is configured.
func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// Configuration builds the peer configuration handed to browsers. Media
// flows peer to peer; the server only relays signalling.
func Configuration(servers []config.ICEServer) (webrtc.Configuration, error) {
	if len(servers) == 0 {
		return DefaultWebRTCConfig(), nil
	}
	out := webrtc.Configuration{ICEServers: make([]webrtc.ICEServer, 0, len(servers))}
	for _, s := range servers {
		for _, u := range s.URLs {
			if _, err := stun.ParseURI(u); err != nil {
				return webrtc.Configuration{}, fmt.Errorf("ice server %q: %w", u, err)
			}
		}
		srv := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			srv.Username = s.Username
			srv.Credential = s.Credential
			srv.CredentialType = webrtc.ICECredentialTypePassword
		}
		out.ICEServers = append(out.ICEServers, srv)
	}
	return out, nil
}
