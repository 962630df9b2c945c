package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
)

var (
	ErrUnknownMessage = errors.New("unknown message id")
	ErrMissingField   = errors.New("missing field")
)

// inbound is the union of every client message.
type inbound struct {
	ID        string             `json:"id"`
	RoomName  string             `json:"roomName"`
	Name      string             `json:"name"`
	Sender    string             `json:"sender"`
	SDPOffer  string             `json:"sdpOffer"`
	Candidate *core.IceCandidate `json:"candidate"`
}

// parseMessage decodes data and checks the fields its id requires.
func parseMessage(data []byte) (*inbound, error) {
	const op = "parse"
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, core.ProtocolError(op, fmt.Errorf("bad json: %w", err))
	}
	switch msg.ID {
	case core.MsgJoinRoom:
		if _, err := domain.NewRoomName(msg.RoomName); err != nil {
			return nil, core.ProtocolError(msg.ID, err)
		}
		if _, err := domain.NewParticipantName(msg.Name); err != nil {
			return nil, core.ProtocolError(msg.ID, err)
		}
	case core.MsgReceiveVideoFrom:
		if _, err := domain.NewParticipantName(msg.Sender); err != nil {
			return nil, core.ProtocolError(msg.ID, err)
		}
		if msg.SDPOffer == "" {
			return nil, core.ProtocolError(msg.ID, fmt.Errorf("%w: sdpOffer", ErrMissingField))
		}
	case core.MsgOnIceCandidate:
		if _, err := domain.NewParticipantName(msg.Sender); err != nil {
			return nil, core.ProtocolError(msg.ID, err)
		}
		if msg.Candidate == nil {
			return nil, core.ProtocolError(msg.ID, fmt.Errorf("%w: candidate", ErrMissingField))
		}
	case core.MsgLeaveRoom:
	default:
		return nil, core.ProtocolError(op, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.ID))
	}
	return &msg, nil
}

func (m *inbound) roomName() domain.RoomName {
	name, _ := domain.NewRoomName(m.RoomName)
	return name
}

func (m *inbound) participant() domain.ParticipantName {
	name, _ := domain.NewParticipantName(m.Name)
	return name
}

func (m *inbound) sender() domain.ParticipantName {
	name, _ := domain.NewParticipantName(m.Sender)
	return name
}
