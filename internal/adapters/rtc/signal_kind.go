package rtc

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

type SignalKind int

const (
	SignalOther SignalKind = iota
	SignalSDP
	SignalICE
)

func (k SignalKind) String() string {
	switch k {
	case SignalSDP:
		return "sdp"
	case SignalICE:
		return "ice"
	default:
		return "other"
	}
}

// ClassifySignal names the family of a signalling message type for logs.
// Unknown types are still relayed.
func ClassifySignal(signalType string) SignalKind {
	if webrtc.NewSDPType(signalType) != webrtc.SDPTypeUnknown {
		return SignalSDP
	}
	switch strings.ToLower(signalType) {
	case "ice-candidate", "ice_candidate", "candidate":
		return SignalICE
	}
	return SignalOther
}
