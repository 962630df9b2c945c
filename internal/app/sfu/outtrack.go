package sfu

import (
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// OutTrack is one subscriber's copy of a relayed stream.
type OutTrack struct {
	Track   *webrtc.TrackLocalStaticRTP
	dropped atomic.Bool
	packets atomic.Uint64
}

func NewOutTrack(track *webrtc.TrackLocalStaticRTP) *OutTrack {
	return &OutTrack{Track: track}
}

// Write forwards pkt unless the track was dropped. A write error drops it.
func (ot *OutTrack) Write(pkt *rtp.Packet) error {
	if ot.dropped.Load() {
		return nil
	}
	if err := ot.Track.WriteRTP(pkt); err != nil {
		ot.Drop()
		return err
	}
	ot.packets.Add(1)
	return nil
}

func (ot *OutTrack) Drop()           { ot.dropped.Store(true) }
func (ot *OutTrack) Dropped() bool   { return ot.dropped.Load() }
func (ot *OutTrack) Packets() uint64 { return ot.packets.Load() }
