package domain

import "strings"

// RoomName is the unique key of a room in the directory.
type RoomName string

func NewRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrRoomNameEmpty
	}
	if len(raw) > MaxNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(raw), nil
}

func (n RoomName) String() string { return string(n) }
