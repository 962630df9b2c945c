package core

import "context"

// IceCandidate is a connectivity hint in the browser's RTCIceCandidateInit shape.
type IceCandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// MediaEngine is the gateway to the media backend. It is the only thing the
// orchestrator knows about media processing.
type MediaEngine interface {
	CreatePipeline(ctx context.Context) (Pipeline, error)
	Close() error
}

// Pipeline is a media processing context scoped to one room. All endpoints of
// the room live in it.
type Pipeline interface {
	ID() string
	CreateEndpoint(ctx context.Context) (Endpoint, error)
	Release(ctx context.Context) error
}

// Endpoint is one WebRTC leg inside a pipeline: either a participant's publish
// endpoint or a subscribe endpoint for an ordered (receiver, sender) pair.
type Endpoint interface {
	ID() string
	SetMaxRecvBandwidth(ctx context.Context, kbps int) error
	SetMinRecvBandwidth(ctx context.Context, kbps int) error
	// ProcessOffer negotiates the remote SDP offer and returns the SDP answer.
	ProcessOffer(ctx context.Context, offer string) (string, error)
	// GatherCandidates starts delivering local candidates to the OnIceCandidate handler.
	GatherCandidates(ctx context.Context) error
	AddIceCandidate(ctx context.Context, c IceCandidate) error
	// Connect makes media flow from this endpoint into sink.
	Connect(ctx context.Context, sink Endpoint) error
	// OnIceCandidate sets the handler for local candidates. It fires
	// asynchronously, zero or more times, until the endpoint is released.
	OnIceCandidate(ctx context.Context, fn func(IceCandidate)) error
	Release(ctx context.Context) error
}
