package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindResolution   ErrorKind = "resolution"
	KindEngine       ErrorKind = "engine"
	KindProtocol     ErrorKind = "protocol"
	KindUnregistered ErrorKind = "unregistered"
	KindConflict     ErrorKind = "conflict"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal"
	KindKicked       ErrorKind = "kicked"
)

var (
	ErrUnknownSession = errors.New("no session for connection")
	ErrNotInRoom      = errors.New("session is not in a room")
	ErrUnknownRoom    = errors.New("room does not exist")
	ErrUnknownPeer    = errors.New("peer is not in the room")
	ErrAlreadyJoined  = errors.New("already in a room, leave first")
	ErrNameTaken      = errors.New("name already used in room")
	ErrRoomClosed     = errors.New("room closed")
	ErrNotPublishing  = errors.New("peer has no publish endpoint")
)

// Error tags a failure with its kind so the transport can report it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func ResolutionError(op string, err error) error   { return newError(KindResolution, op, err) }
func EngineError(op string, err error) error       { return newError(KindEngine, op, err) }
func ProtocolError(op string, err error) error     { return newError(KindProtocol, op, err) }
func UnregisteredError(op string, err error) error { return newError(KindUnregistered, op, err) }
func ConflictError(op string, err error) error     { return newError(KindConflict, op, err) }
func RateLimitedError(op string, err error) error  { return newError(KindRateLimited, op, err) }

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
