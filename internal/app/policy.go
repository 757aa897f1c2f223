package app

import (
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(identity domain.Identity, conn core.SignalConnection) BackpressureAction
}

// SimplePolicy kicks slow connections. The client reconnects within the
// grace window and keeps its session.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.Identity, core.SignalConnection) BackpressureAction {
	return KickMember
}

// DropPolicy only drops the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.Identity, core.SignalConnection) BackpressureAction {
	return DropFrame
}
