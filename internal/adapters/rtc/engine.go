// Package rtc is an in-process media engine built on pion/webrtc. Every
// endpoint is a PeerConnection; connecting endpoints relays RTP between them.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/groupcall/internal/app/sfu"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrReleased = errors.New("rtc: object released")

// Options configure the engine's PeerConnections.
type Options struct {
	ICEServers []string
	UDPPortMin uint16
	UDPPortMax uint16
}

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

// Engine implements core.MediaEngine.
type Engine struct {
	api    *webrtc.API
	config webrtc.Configuration
	relays *sfu.RelayManager
	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(opts Options) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2, SDPFmtpLine: "minptime=10;useinbandfec=1"},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}
	videoFeedback := []webrtc.RTCPFeedback{{Type: "goog-remb"}, {Type: "ccm", Parameter: "fir"}, {Type: "nack"}, {Type: "nack", Parameter: "pli"}}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000, RTCPFeedback: videoFeedback},
		PayloadType:        96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register vp8: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if opts.UDPPortMin > 0 && opts.UDPPortMax >= opts.UDPPortMin {
		if err := se.SetEphemeralUDPPortRange(opts.UDPPortMin, opts.UDPPortMax); err != nil {
			return nil, fmt.Errorf("udp port range: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir), webrtc.WithSettingEngine(se)),
		config: DefaultWebRTCConfig(opts.ICEServers),
		relays: sfu.NewRelayManager(),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (e *Engine) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		id:        "pion-" + uuid.NewString(),
		engine:    e,
		endpoints: make(map[string]*Endpoint),
	}
	log.Debug().Str("module", "rtc").Str("pipeline", p.id).Msg("pipeline created")
	return p, nil
}

// Close stops every relay loop. Pipelines must be released by their owners.
func (e *Engine) Close() error {
	e.cancel()
	return nil
}

// Pipeline groups the PeerConnections of one room.
type Pipeline struct {
	id     string
	engine *Engine

	mu        sync.Mutex
	endpoints map[string]*Endpoint
	seq       int
	released  bool
}

func (p *Pipeline) ID() string { return p.id }

func (p *Pipeline) CreateEndpoint(ctx context.Context) (core.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}
	pc, err := p.engine.api.NewPeerConnection(p.engine.config)
	if err != nil {
		return nil, err
	}
	p.seq++
	ep := newEndpoint(fmt.Sprintf("%s/endpoint-%d", p.id, p.seq), p, pc)
	p.endpoints[ep.id] = ep
	return ep, nil
}

func (p *Pipeline) forget(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.endpoints, id)
}

func (p *Pipeline) Release(ctx context.Context) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return ErrReleased
	}
	p.released = true
	eps := make([]*Endpoint, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		eps = append(eps, ep)
	}
	p.mu.Unlock()

	var errs []error
	for _, ep := range eps {
		if err := ep.Release(ctx); err != nil && !errors.Is(err, ErrReleased) {
			errs = append(errs, err)
		}
	}
	log.Debug().Str("module", "rtc").Str("pipeline", p.id).Int("endpoints", len(eps)).Msg("pipeline released")
	return errors.Join(errs...)
}
