package rtc

import (
	"context"
	"strings"
	"testing"

	"github.com/dkeye/groupcall/internal/app/sfu"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T) (*Engine, *Pipeline) {
	t.Helper()
	engine, err := NewEngine(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	p, err := engine.CreatePipeline(context.Background())
	require.NoError(t, err)
	return engine, p.(*Pipeline)
}

func newTestEndpoint(t *testing.T, p *Pipeline) *Endpoint {
	t.Helper()
	ep, err := p.CreateEndpoint(context.Background())
	require.NoError(t, err)
	return ep.(*Endpoint)
}

// clientOffer builds the offer of a browser that only receives media.
func clientOffer(t *testing.T) (*webrtc.PeerConnection, string) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		_, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly})
		require.NoError(t, err)
	}
	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return pc, offer.SDP
}

func TestProcessOffer_AnswerCarriesVideoBandwidth(t *testing.T) {
	ctx := context.Background()
	_, p := newTestPipeline(t)
	ep := newTestEndpoint(t, p)
	require.NoError(t, ep.SetMaxRecvBandwidth(ctx, 300))
	require.NoError(t, ep.SetMinRecvBandwidth(ctx, 100))

	client, offer := clientOffer(t)
	answer, err := ep.ProcessOffer(ctx, offer)
	require.NoError(t, err)

	var desc sdp.SessionDescription
	require.NoError(t, desc.Unmarshal([]byte(answer)))
	for _, md := range desc.MediaDescriptions {
		switch md.MediaName.Media {
		case "video":
			require.Equal(t, []sdp.Bandwidth{{Type: "AS", Bandwidth: 300}}, md.Bandwidth)
		case "audio":
			require.Empty(t, md.Bandwidth)
		}
	}
	require.NoError(t, client.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}))
}

func TestAddIceCandidate_HeldUntilRemoteDescription(t *testing.T) {
	ctx := context.Background()
	_, p := newTestPipeline(t)
	ep := newTestEndpoint(t, p)

	mid := "0"
	c := core.IceCandidate{Candidate: "candidate:1 1 udp 2130706431 192.0.2.1 50000 typ host", SDPMid: &mid}
	require.NoError(t, ep.AddIceCandidate(ctx, c))
	require.Len(t, ep.remote, 1)

	_, offer := clientOffer(t)
	_, err := ep.ProcessOffer(ctx, offer)
	require.NoError(t, err)
	require.Empty(t, ep.remote)
}

func TestConnect_AddsTracksAndSubscribes(t *testing.T) {
	ctx := context.Background()
	engine, p := newTestPipeline(t)
	pub := newTestEndpoint(t, p)
	sub := newTestEndpoint(t, p)

	require.NoError(t, pub.Connect(ctx, sub))
	require.Len(t, sub.pc.GetSenders(), 2)

	video := sfu.Key{Source: pub.ID(), Kind: webrtc.RTPCodecTypeVideo}
	require.Equal(t, 1, engine.relays.Subscribers(video))

	_, offer := clientOffer(t)
	answer, err := sub.ProcessOffer(ctx, offer)
	require.NoError(t, err)
	require.True(t, strings.Contains(answer, "a=sendonly"))

	require.NoError(t, sub.Release(ctx))
	require.Equal(t, 0, engine.relays.Subscribers(video))
	require.ErrorIs(t, sub.Release(ctx), ErrReleased)

	require.NoError(t, pub.Release(ctx))
	require.False(t, engine.relays.HasRelay(video))
}

func TestGatherCandidates_HoldsUntilRequested(t *testing.T) {
	ctx := context.Background()
	_, p := newTestPipeline(t)
	ep := newTestEndpoint(t, p)

	var got []core.IceCandidate
	require.NoError(t, ep.OnIceCandidate(ctx, func(c core.IceCandidate) { got = append(got, c) }))
	ep.candidateFound(core.IceCandidate{Candidate: "candidate:a"})
	require.Empty(t, got)

	require.NoError(t, ep.GatherCandidates(ctx))
	require.Equal(t, []core.IceCandidate{{Candidate: "candidate:a"}}, got)

	ep.candidateFound(core.IceCandidate{Candidate: "candidate:b"})
	require.Len(t, got, 2)
}

func TestPipelineRelease(t *testing.T) {
	ctx := context.Background()
	_, p := newTestPipeline(t)
	ep := newTestEndpoint(t, p)

	require.NoError(t, p.Release(ctx))
	require.ErrorIs(t, ep.AddIceCandidate(ctx, core.IceCandidate{Candidate: "c"}), ErrReleased)
	_, err := p.CreateEndpoint(ctx)
	require.ErrorIs(t, err, ErrReleased)
	require.ErrorIs(t, p.Release(ctx), ErrReleased)
}
