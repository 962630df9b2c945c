// Package domain contains validated value types, no logic beyond validation.
package domain

import (
	"errors"
	"strings"
)

const MaxNameLen = 64

var (
	ErrNameEmpty       = errors.New("participant name empty")
	ErrNameTooLong     = errors.New("participant name too long")
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

// ParticipantName is the display name a participant picks on join.
// Unique within its room only.
type ParticipantName string

func NewParticipantName(raw string) (ParticipantName, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrNameEmpty
	}
	if len(raw) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return ParticipantName(raw), nil
}

func (n ParticipantName) String() string { return string(n) }
