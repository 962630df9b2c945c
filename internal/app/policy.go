package app

import "github.com/dkeye/groupcall/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	Disconnect
)

// Policy decides what happens to a participant whose outbound queue is full.
type Policy interface {
	OnBackPressure(room *core.Room, member *core.Session) BackpressureAction
}

// SimplePolicy disconnects slow participants; the transport then runs the
// implicit leave.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Room, *core.Session) BackpressureAction {
	return Disconnect
}
