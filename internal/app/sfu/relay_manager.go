package sfu

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RelayManager owns the relays of one media engine.
type RelayManager struct {
	mu     sync.RWMutex
	relays map[Key]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[Key]*Relay),
	}
}

func (m *RelayManager) relay(key Key) *Relay {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.relays[key]
	if !ok {
		r = NewRelay()
		m.relays[key] = r
	}
	return r
}

// StartRelay feeds the relay for key from track and starts its loop. A relay
// that already had a source keeps its subscribers and switches over.
func (m *RelayManager) StartRelay(ctx context.Context, key Key, track *webrtc.TrackRemote, keyFrame func()) {
	logger := log.With().
		Str("module", "relay").
		Str("source", key.Source).
		Str("kind", key.Kind.String()).
		Logger()

	relay := m.relay(key)
	relayCtx, cancel := context.WithCancel(ctx)
	relay.attach(track, keyFrame, cancel)

	logger.Info().Int("subscribers", relay.Subscribers()).Msg("starting relay loop")
	go relay.loop(relayCtx, track, &logger)

	if relay.Subscribers() > 0 {
		relay.requestKeyFrame()
	}
}

// AddSubscriber attaches localTrack of subscriber dst to the relay for key
// and asks the source for a key frame.
func (m *RelayManager) AddSubscriber(key Key, dst string, localTrack *webrtc.TrackLocalStaticRTP) {
	relay := m.relay(key)
	relay.addOutTrack(dst, NewOutTrack(localTrack))
	relay.requestKeyFrame()
}

// RequestKeyFrame forwards a subscriber's picture loss to the source of key.
func (m *RelayManager) RequestKeyFrame(key Key) {
	m.mu.RLock()
	relay, ok := m.relays[key]
	m.mu.RUnlock()
	if ok {
		relay.requestKeyFrame()
	}
}

// DropSubscriber detaches dst from every relay it is fed by.
func (m *RelayManager) DropSubscriber(dst string) {
	m.mu.RLock()
	relays := make([]*Relay, 0, len(m.relays))
	for _, r := range m.relays {
		relays = append(relays, r)
	}
	m.mu.RUnlock()
	for _, r := range relays {
		r.dropOutTrack(dst)
	}
}

// StopSource stops every relay fed by source and forgets them.
func (m *RelayManager) StopSource(source string) {
	m.mu.Lock()
	var stopped []*Relay
	for key, r := range m.relays {
		if key.Source == source {
			stopped = append(stopped, r)
			delete(m.relays, key)
		}
	}
	m.mu.Unlock()
	for _, r := range stopped {
		r.stop()
	}
}

// HasRelay reports whether a relay exists for key.
func (m *RelayManager) HasRelay(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[key]
	return ok
}

// Subscribers returns how many subscribers the relay for key feeds.
func (m *RelayManager) Subscribers(key Key) int {
	m.mu.RLock()
	relay, ok := m.relays[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return relay.Subscribers()
}
