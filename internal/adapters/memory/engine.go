// Package memory is a media engine that negotiates nothing. It keeps every
// call it receives so the signaling layer can run without a media server.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrReleased = errors.New("memory: object released")

type Engine struct {
	mu        sync.Mutex
	pipelines []*Pipeline

	failPipeline error
	failEndpoint error
}

func NewEngine() *Engine {
	return &Engine{}
}

// FailNextPipeline makes the next CreatePipeline return err.
func (e *Engine) FailNextPipeline(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failPipeline = err
}

// FailNextEndpoint makes the next CreateEndpoint on any pipeline return err.
func (e *Engine) FailNextEndpoint(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failEndpoint = err
}

func (e *Engine) takeEndpointFailure() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.failEndpoint
	e.failEndpoint = nil
	return err
}

func (e *Engine) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.failPipeline; err != nil {
		e.failPipeline = nil
		return nil, err
	}
	p := &Pipeline{id: "pipeline-" + uuid.NewString(), engine: e}
	e.pipelines = append(e.pipelines, p)
	log.Debug().Str("module", "memory").Str("pipeline", p.id).Msg("pipeline created")
	return p, nil
}

// Pipelines returns every pipeline ever created, in creation order.
func (e *Engine) Pipelines() []*Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.pipelines)
}

func (e *Engine) Close() error { return nil }

type Pipeline struct {
	id     string
	engine *Engine

	mu        sync.Mutex
	released  bool
	endpoints []*Endpoint
}

func (p *Pipeline) ID() string { return p.id }

func (p *Pipeline) CreateEndpoint(ctx context.Context) (core.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.engine.takeEndpointFailure(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}
	ep := &Endpoint{id: fmt.Sprintf("%s/endpoint-%d", p.id, len(p.endpoints)+1), pipeline: p}
	p.endpoints = append(p.endpoints, ep)
	return ep, nil
}

func (p *Pipeline) Release(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	p.released = true
	for _, ep := range p.endpoints {
		ep.markReleased()
	}
	return nil
}

func (p *Pipeline) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Endpoints returns every endpoint created in the pipeline, in creation order.
func (p *Pipeline) Endpoints() []*Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.endpoints)
}
