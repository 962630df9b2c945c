package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/groupcall/internal/core"
)

// AnswerPrefix is prepended to an offer to build the answer ProcessOffer returns.
const AnswerPrefix = "answer:"

type Endpoint struct {
	id       string
	pipeline *Pipeline

	mu         sync.Mutex
	released   bool
	maxKbps    int
	minKbps    int
	offers     []string
	candidates []core.IceCandidate
	sinks      []*Endpoint
	gathering  bool
	pending    []core.IceCandidate
	onICE      func(core.IceCandidate)
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.released {
		return ErrReleased
	}
	return nil
}

func (e *Endpoint) SetMaxRecvBandwidth(ctx context.Context, kbps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return err
	}
	e.maxKbps = kbps
	return nil
}

func (e *Endpoint) SetMinRecvBandwidth(ctx context.Context, kbps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return err
	}
	e.minKbps = kbps
	return nil
}

func (e *Endpoint) ProcessOffer(ctx context.Context, offer string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return "", err
	}
	if offer == "" {
		return "", fmt.Errorf("memory: empty offer")
	}
	e.offers = append(e.offers, offer)
	return AnswerPrefix + offer, nil
}

// GatherCandidates releases the candidates emitted so far to the handler.
func (e *Endpoint) GatherCandidates(ctx context.Context) error {
	e.mu.Lock()
	if err := e.check(ctx); err != nil {
		e.mu.Unlock()
		return err
	}
	e.gathering = true
	pending, fn := e.pending, e.onICE
	e.pending = nil
	e.mu.Unlock()

	if fn != nil {
		for _, c := range pending {
			fn(c)
		}
	}
	return nil
}

func (e *Endpoint) AddIceCandidate(ctx context.Context, c core.IceCandidate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return err
	}
	e.candidates = append(e.candidates, c)
	return nil
}

func (e *Endpoint) Connect(ctx context.Context, sink core.Endpoint) error {
	s, ok := sink.(*Endpoint)
	if !ok {
		return fmt.Errorf("memory: cannot connect to %T", sink)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return err
	}
	e.sinks = append(e.sinks, s)
	return nil
}

func (e *Endpoint) OnIceCandidate(ctx context.Context, fn func(core.IceCandidate)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx); err != nil {
		return err
	}
	e.onICE = fn
	return nil
}

// EmitCandidate simulates the engine finding a local candidate. It is held
// back until GatherCandidates was called.
func (e *Endpoint) EmitCandidate(c core.IceCandidate) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	if !e.gathering || e.onICE == nil {
		e.pending = append(e.pending, c)
		e.mu.Unlock()
		return
	}
	fn := e.onICE
	e.mu.Unlock()
	fn(c)
}

func (e *Endpoint) Release(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return ErrReleased
	}
	e.released = true
	e.onICE = nil
	return nil
}

func (e *Endpoint) markReleased() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.released = true
	e.onICE = nil
}

func (e *Endpoint) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}

func (e *Endpoint) Bandwidth() (maxKbps, minKbps int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxKbps, e.minKbps
}

func (e *Endpoint) Candidates() []core.IceCandidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.candidates)
}

func (e *Endpoint) Offers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.offers)
}

func (e *Endpoint) Sinks() []*Endpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.sinks)
}

func (e *Endpoint) Gathering() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gathering
}
