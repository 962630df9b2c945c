package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// Key names one forwarded stream: the publishing endpoint and the track kind.
type Key struct {
	Source string
	Kind   webrtc.RTPCodecType
}

// Relay copies RTP from one remote track to every subscriber's local track.
// Subscribers may be attached before the remote track shows up.
type Relay struct {
	mu        sync.RWMutex
	src       *webrtc.TrackRemote
	keyFrame  func()
	outTracks map[string]*OutTrack
	cancel    context.CancelFunc
}

func NewRelay() *Relay {
	return &Relay{outTracks: make(map[string]*OutTrack)}
}

// Src returns the current source track, nil until one arrives.
func (r *Relay) Src() *webrtc.TrackRemote {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.src
}

// attach swaps in a new source, stopping the loop of the previous one.
func (r *Relay) attach(src *webrtc.TrackRemote, keyFrame func(), cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.src = src
	r.keyFrame = keyFrame
	r.cancel = cancel
}

// loop reads RTP packets from the source track and forwards them to all OutTracks.
func (r *Relay) loop(ctx context.Context, src *webrtc.TrackRemote, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("relay ctx done")
			return
		default:
		}
		pkt, _, err := src.ReadRTP()
		if err != nil {
			logger.Debug().Err(err).Msg("relay read RTP stopped")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := maps.Clone(r.outTracks)
	r.mu.RUnlock()

	var dirty []string
	for dst, ot := range snapshot {
		if ot.Dropped() {
			dirty = append(dirty, dst)
			continue
		}
		if err := ot.Write(pkt); err != nil {
			logger.Warn().
				Err(err).
				Str("dst", dst).
				Msg("relay write RTP error, dropping subscriber")
			dirty = append(dirty, dst)
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dst := range dirty {
		if ot, ok := r.outTracks[dst]; ok && ot.Dropped() {
			delete(r.outTracks, dst)
		}
	}
}

func (r *Relay) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	for _, ot := range r.outTracks {
		ot.Drop()
	}
	r.outTracks = make(map[string]*OutTrack)
}

func (r *Relay) addOutTrack(dst string, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.outTracks[dst]; ok {
		old.Drop()
	}
	r.outTracks[dst] = ot
}

func (r *Relay) dropOutTrack(dst string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ot, ok := r.outTracks[dst]
	if ok {
		ot.Drop()
		delete(r.outTracks, dst)
	}
	return ok
}

func (r *Relay) requestKeyFrame() {
	r.mu.RLock()
	fn := r.keyFrame
	r.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Subscribers returns the number of live out tracks.
func (r *Relay) Subscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, ot := range r.outTracks {
		if !ot.Dropped() {
			n++
		}
	}
	return n
}
