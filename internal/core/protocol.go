package core

import "github.com/dkeye/groupcall/internal/domain"

// Message ids on the wire.
const (
	MsgJoinRoom         = "joinRoom"
	MsgReceiveVideoFrom = "receiveVideoFrom"
	MsgLeaveRoom        = "leaveRoom"
	MsgOnIceCandidate   = "onIceCandidate"

	MsgExistingParticipants  = "existingParticipants"
	MsgNewParticipantArrived = "newParticipantArrived"
	MsgReceiveVideoAnswer    = "receiveVideoAnswer"
	MsgIceCandidate          = "iceCandidate"
	MsgParticipantLeft       = "participantLeft"
	MsgError                 = "error"
)

type ExistingParticipants struct {
	ID       string                   `json:"id"`
	Data     []domain.ParticipantName `json:"data"`
	RoomName domain.RoomName          `json:"roomName"`
}

func NewExistingParticipants(names []domain.ParticipantName, room domain.RoomName) ExistingParticipants {
	if names == nil {
		names = []domain.ParticipantName{}
	}
	return ExistingParticipants{ID: MsgExistingParticipants, Data: names, RoomName: room}
}

type NewParticipantArrived struct {
	ID   string                 `json:"id"`
	Name domain.ParticipantName `json:"name"`
}

func NewNewParticipantArrived(name domain.ParticipantName) NewParticipantArrived {
	return NewParticipantArrived{ID: MsgNewParticipantArrived, Name: name}
}

type ReceiveVideoAnswer struct {
	ID        string                 `json:"id"`
	Name      domain.ParticipantName `json:"name"`
	SDPAnswer string                 `json:"sdpAnswer"`
}

func NewReceiveVideoAnswer(sender domain.ParticipantName, answer string) ReceiveVideoAnswer {
	return ReceiveVideoAnswer{ID: MsgReceiveVideoAnswer, Name: sender, SDPAnswer: answer}
}

// IceCandidateMsg relays an engine candidate. Name is the peer the endpoint
// talks about: the recipient's own name for its publish endpoint, the sender's
// name for a subscribe endpoint.
type IceCandidateMsg struct {
	ID        string                 `json:"id"`
	Name      domain.ParticipantName `json:"name"`
	Candidate IceCandidate           `json:"candidate"`
}

func NewIceCandidateMsg(name domain.ParticipantName, c IceCandidate) IceCandidateMsg {
	return IceCandidateMsg{ID: MsgIceCandidate, Name: name, Candidate: c}
}

type ParticipantLeft struct {
	ID   string                 `json:"id"`
	Name domain.ParticipantName `json:"name"`
}

func NewParticipantLeft(name domain.ParticipantName) ParticipantLeft {
	return ParticipantLeft{ID: MsgParticipantLeft, Name: name}
}

type ErrorMsg struct {
	ID   string    `json:"id"`
	Code ErrorKind `json:"code"`
	Msg  string    `json:"msg"`
}

func NewErrorMsg(code ErrorKind, msg string) ErrorMsg {
	return ErrorMsg{ID: MsgError, Code: code, Msg: msg}
}
