package core

import (
	"encoding/json"

	"github.com/dkeye/Stranger/internal/domain"
)

// Outbound event types.
const (
	EvConnectionID        = "connection_id"
	EvActiveUsers         = "active_users"
	EvRegistered          = "registered"
	EvWaiting             = "waiting"
	EvSessionEstablished  = "session_established"
	EvPartnerLeft         = "partner_left"
	EvYouLeft             = "you_left"
	EvError               = "error"
	EvMessageReceived     = "message_received"
	EvVoiceNoteReceived   = "voice_note_received"
	EvImageUploading      = "image_uploading"
	EvImageReceived       = "image_received"
	EvTypingStarted       = "typing_started"
	EvTypingStopped       = "typing_stopped"
	EvIncomingCall        = "incoming_call"
	EvOutgoingCallStarted = "outgoing_call_started"
	EvCallAccepted        = "call_accepted"
	EvCallRejected        = "call_rejected"
	EvCallEnded           = "call_ended"
	EvSignalReceived      = "signal_received"
	EvPong                = "pong"
)

// Error codes carried by EvError.
const (
	CodeMissingIdentity = "missing_identity"
	CodeInvalidIdentity = "invalid_identity"
	CodeBadPayload      = "bad_payload"
	CodeInvalidSession  = "invalid_session"
	CodeNotRegistered   = "not_registered"
	CodeInvalidName     = "invalid_name"
	CodeForbidden       = "forbidden"
	CodeRateLimited     = "rate_limited"
	CodeUnknownType     = "unknown_type"
)

// Reasons carried by EvPartnerLeft.
const (
	ReasonSkipped      = "skipped"
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
)

type ConnectionIDEvent struct {
	Type         string        `json:"type"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type ActiveUsersEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type RegisteredEvent struct {
	Type string      `json:"type"`
	User domain.Peer `json:"user"`
}

type WaitingEvent struct {
	Type  string `json:"type"`
	Retry bool   `json:"retry,omitempty"`
}

type SessionEstablishedEvent struct {
	Type       string           `json:"type"`
	SessionID  domain.SessionID `json:"sessionId"`
	Self       domain.Peer      `json:"self"`
	Partner    domain.Peer      `json:"partner"`
	SessionKey string           `json:"sessionKey"`
}

type PartnerLeftEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	Name      string           `json:"name"`
	Reason    string           `json:"reason"`
	Message   string           `json:"message"`
}

type YouLeftEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// RelayEvent covers text, voice and image payloads. Exactly one of Text,
// Audio or Image is set depending on Type.
type RelayEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	FromID    domain.Identity  `json:"fromId"`
	From      string           `json:"from"`
	Text      string           `json:"text,omitempty"`
	Audio     string           `json:"audio,omitempty"`
	Image     string           `json:"image,omitempty"`
	Timestamp int64            `json:"timestamp,omitempty"`
}

type TypingEvent struct {
	Type   string          `json:"type"`
	FromID domain.Identity `json:"fromId"`
	From   string          `json:"from"`
}

type CallEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	From      domain.Peer      `json:"from"`
	To        domain.Peer      `json:"to"`
}

type SignalEvent struct {
	Type       string           `json:"type"`
	SessionID  domain.SessionID `json:"sessionId"`
	FromID     domain.Identity  `json:"fromId"`
	SignalType string           `json:"signalType"`
	Payload    json.RawMessage  `json:"payload"`
}

func NewError(code, msg string) ErrorEvent {
	return ErrorEvent{Type: EvError, Code: code, Message: msg}
}

// Encode marshals an event into a frame.
func Encode(v any) (Frame, error) {
	return json.Marshal(v)
}
