package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/groupcall/internal/app/sfu"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Endpoint is one PeerConnection with a client. Candidates found by the
// connection are held until GatherCandidates; client candidates are held
// until the remote description is known.
type Endpoint struct {
	id       string
	pipeline *Pipeline
	pc       *webrtc.PeerConnection
	relays   *sfu.RelayManager

	mu        sync.Mutex
	released  bool
	maxKbps   int
	minKbps   int
	gathering bool
	found     []core.IceCandidate
	remote    []webrtc.ICECandidateInit
	onICE     func(core.IceCandidate)
}

func newEndpoint(id string, p *Pipeline, pc *webrtc.PeerConnection) *Endpoint {
	ep := &Endpoint{id: id, pipeline: p, pc: pc, relays: p.engine.relays}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Debug().Str("module", "rtc").Str("endpoint", id).Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("endpoint", id).Str("peer_connection_state", s.String()).Msg("Peer state")
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil {
			ep.candidateFound(fromInit(cand.ToJSON()))
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("endpoint", id).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("OnTrack received")
		ssrc := uint32(track.SSRC())
		keyFrame := func() {
			if err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
				log.Debug().Err(err).Str("module", "rtc").Str("endpoint", id).Msg("PLI write failed")
			}
		}
		ep.relays.StartRelay(p.engine.ctx, sfu.Key{Source: id, Kind: track.Kind()}, track, keyFrame)
	})
	return ep
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	return nil
}

func (e *Endpoint) SetMaxRecvBandwidth(ctx context.Context, kbps int) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxKbps = kbps
	return nil
}

// SetMinRecvBandwidth is recorded only; the answer can carry an upper bound
// alone.
func (e *Endpoint) SetMinRecvBandwidth(ctx context.Context, kbps int) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minKbps = kbps
	return nil
}

// ProcessOffer applies the client's offer and returns the answer with the
// receive bound written into its video sections. Candidates trickle later.
func (e *Endpoint) ProcessOffer(ctx context.Context, offer string) (string, error) {
	if err := e.check(ctx); err != nil {
		return "", err
	}
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", fmt.Errorf("set remote description: %w", err)
	}

	e.mu.Lock()
	pending := e.remote
	e.remote = nil
	maxKbps := e.maxKbps
	e.mu.Unlock()
	for _, c := range pending {
		if err := e.pc.AddICECandidate(c); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("endpoint", e.id).Msg("queued candidate rejected")
		}
	}

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return withVideoBandwidth(answer.SDP, maxKbps)
}

func (e *Endpoint) GatherCandidates(ctx context.Context) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.gathering = true
	found := e.found
	e.found = nil
	fn := e.onICE
	e.mu.Unlock()
	if fn != nil {
		for _, c := range found {
			fn(c)
		}
	}
	return nil
}

func (e *Endpoint) candidateFound(c core.IceCandidate) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	if !e.gathering || e.onICE == nil {
		e.found = append(e.found, c)
		e.mu.Unlock()
		return
	}
	fn := e.onICE
	e.mu.Unlock()
	fn(c)
}

func (e *Endpoint) AddIceCandidate(ctx context.Context, c core.IceCandidate) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	init := toInit(c)
	if e.pc.RemoteDescription() == nil {
		e.mu.Lock()
		e.remote = append(e.remote, init)
		e.mu.Unlock()
		return nil
	}
	return e.pc.AddICECandidate(init)
}

// Connect adds an audio and a video track to sink and feeds them from the
// media this endpoint receives.
func (e *Endpoint) Connect(ctx context.Context, sink core.Endpoint) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	dst, ok := sink.(*Endpoint)
	if !ok {
		return fmt.Errorf("rtc: cannot connect to %T", sink)
	}
	if err := dst.check(ctx); err != nil {
		return err
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		track, err := webrtc.NewTrackLocalStaticRTP(capability(kind), kind.String(), e.id)
		if err != nil {
			return err
		}
		sender, err := dst.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", kind, err)
		}
		key := sfu.Key{Source: e.id, Kind: kind}
		go e.readRTCP(sender, key)
		e.relays.AddSubscriber(key, dst.id, track)
	}
	return nil
}

// readRTCP drains the subscriber's feedback and passes picture loss upstream.
func (e *Endpoint) readRTCP(sender *webrtc.RTPSender, key sfu.Key) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, pkt := range pkts {
			switch pkt.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				e.relays.RequestKeyFrame(key)
			}
		}
	}
}

func (e *Endpoint) OnIceCandidate(ctx context.Context, fn func(core.IceCandidate)) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onICE = fn
	return nil
}

func (e *Endpoint) Release(context.Context) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return ErrReleased
	}
	e.released = true
	e.onICE = nil
	e.mu.Unlock()

	e.relays.StopSource(e.id)
	e.relays.DropSubscriber(e.id)
	e.pipeline.forget(e.id)
	if err := e.pc.Close(); err != nil && !errors.Is(err, webrtc.ErrConnectionClosed) {
		log.Error().Err(err).Str("module", "rtc").Str("endpoint", e.id).Msg("close error")
		return err
	}
	log.Debug().Str("module", "rtc").Str("endpoint", e.id).Msg("closed")
	return nil
}

func capability(kind webrtc.RTPCodecType) webrtc.RTPCodecCapability {
	if kind == webrtc.RTPCodecTypeAudio {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
}

func toInit(c core.IceCandidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: c.Candidate, SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex}
}

func fromInit(c webrtc.ICECandidateInit) core.IceCandidate {
	return core.IceCandidate{Candidate: c.Candidate, SDPMid: c.SDPMid, SDPMLineIndex: c.SDPMLineIndex}
}
