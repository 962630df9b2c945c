package kurento

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/rs/zerolog/log"
)

// Engine implements core.MediaEngine on a Kurento Media Server. The
// connection is dialed on first use and again after it drops.
type Engine struct {
	url        string
	pingPeriod time.Duration

	mu     sync.Mutex
	client *Client
	closed bool
}

func NewEngine(url string, pingPeriod time.Duration) *Engine {
	return &Engine{url: url, pingPeriod: pingPeriod}
}

func (e *Engine) conn(ctx context.Context) (*Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("kurento: engine closed")
	}
	if e.client != nil {
		select {
		case <-e.client.Done():
			log.Warn().Str("module", "kurento").Msg("media server connection lost, redialing")
			e.client = nil
		default:
			return e.client, nil
		}
	}
	c, err := Dial(ctx, e.url)
	if err != nil {
		return nil, err
	}
	e.client = c
	if e.pingPeriod > 0 {
		go e.keepalive(c)
	}
	return c, nil
}

func (e *Engine) keepalive(c *Client) {
	ticker := time.NewTicker(e.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), e.pingPeriod/2)
			err := c.Ping(ctx, 2*e.pingPeriod.Milliseconds())
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("module", "kurento").Msg("ping failed")
			}
		}
	}
}

func (e *Engine) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	c, err := e.conn(ctx)
	if err != nil {
		return nil, err
	}
	id, err := c.Create(ctx, "MediaPipeline", nil)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("module", "kurento").Str("pipeline", id).Msg("pipeline created")
	return &Pipeline{id: id, client: c}, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Pipeline is a MediaPipeline object on the server.
type Pipeline struct {
	id     string
	client *Client
}

func (p *Pipeline) ID() string { return p.id }

func (p *Pipeline) CreateEndpoint(ctx context.Context) (core.Endpoint, error) {
	id, err := p.client.Create(ctx, "WebRtcEndpoint", map[string]any{"mediaPipeline": p.id})
	if err != nil {
		return nil, err
	}
	return &Endpoint{id: id, client: p.client}, nil
}

func (p *Pipeline) Release(ctx context.Context) error {
	return p.client.Release(ctx, p.id)
}

// Endpoint is a WebRtcEndpoint object on the server.
type Endpoint struct {
	id     string
	client *Client
}

// candidate is the server's IceCandidate complex type.
type candidate struct {
	Module        string `json:"__module__"`
	Type          string `json:"__type__"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex"`
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) invoke(ctx context.Context, operation string, params map[string]any) (json.RawMessage, error) {
	return e.client.Invoke(ctx, e.id, operation, params)
}

func (e *Endpoint) SetMaxRecvBandwidth(ctx context.Context, kbps int) error {
	_, err := e.invoke(ctx, "setMaxVideoRecvBandwidth", map[string]any{"maxVideoRecvBandwidth": kbps})
	return err
}

func (e *Endpoint) SetMinRecvBandwidth(ctx context.Context, kbps int) error {
	_, err := e.invoke(ctx, "setMinVideoRecvBandwidth", map[string]any{"minVideoRecvBandwidth": kbps})
	return err
}

func (e *Endpoint) ProcessOffer(ctx context.Context, offer string) (string, error) {
	raw, err := e.invoke(ctx, "processOffer", map[string]any{"offer": offer})
	if err != nil {
		return "", err
	}
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", fmt.Errorf("kurento processOffer: bad answer: %w", err)
	}
	return answer, nil
}

func (e *Endpoint) GatherCandidates(ctx context.Context) error {
	_, err := e.invoke(ctx, "gatherCandidates", nil)
	return err
}

func (e *Endpoint) AddIceCandidate(ctx context.Context, c core.IceCandidate) error {
	kc := candidate{Module: "kurento", Type: "IceCandidate", Candidate: c.Candidate}
	if c.SDPMid != nil {
		kc.SDPMid = *c.SDPMid
	}
	if c.SDPMLineIndex != nil {
		kc.SDPMLineIndex = *c.SDPMLineIndex
	}
	_, err := e.invoke(ctx, "addIceCandidate", map[string]any{"candidate": kc})
	return err
}

func (e *Endpoint) Connect(ctx context.Context, sink core.Endpoint) error {
	_, err := e.invoke(ctx, "connect", map[string]any{"sink": sink.ID()})
	return err
}

func (e *Endpoint) OnIceCandidate(ctx context.Context, fn func(core.IceCandidate)) error {
	return e.client.Subscribe(ctx, e.id, "IceCandidateFound", func(ev Event) {
		var data struct {
			Candidate candidate `json:"candidate"`
		}
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			log.Warn().Err(err).Str("module", "kurento").Str("endpoint", e.id).Msg("bad candidate event")
			return
		}
		mid, idx := data.Candidate.SDPMid, data.Candidate.SDPMLineIndex
		fn(core.IceCandidate{Candidate: data.Candidate.Candidate, SDPMid: &mid, SDPMLineIndex: &idx})
	})
}

func (e *Endpoint) Release(ctx context.Context) error {
	return e.client.Release(ctx, e.id)
}
