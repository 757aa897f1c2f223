package domain

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SessionID string

const sessionKeyBytes = 32

// sessionNamespace scopes the name-based uuids derived for sessions.
var sessionNamespace = uuid.MustParse("6f1c2e0a-4d0b-4c55-9a6e-3b8f9e7d2a11")

// NewSessionID derives an id from both identities and the creation time, so
// pairing the same two people again yields a different id.
func NewSessionID(a, b Identity, at time.Time) SessionID {
	name := fmt.Sprintf("%s\x00%s\x00%d", a, b, at.UnixNano())
	return SessionID(uuid.NewSHA1(sessionNamespace, []byte(name)).String())
}

// NewSessionKey returns a random opaque token. The server hands it to both
// participants and never looks at it again.
func NewSessionKey() (string, error) {
	buf := make([]byte, sessionKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}
