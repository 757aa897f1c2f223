package core

import "errors"

//go:generate mockgen -destination=mock_core/signal_mock.go -package=mock_core github.com/dkeye/Stranger/internal/core SignalConnection

// Frame is one encoded outbound message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking. It returns ErrBackpressure when the
	// outbound buffer is full and ErrClosed after Close.
	TrySend(f Frame) error
	Close()
}
