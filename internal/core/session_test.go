package core_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/groupcall/internal/adapters/memory"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/stretchr/testify/require"
)

type recordConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (c *recordConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func newEndpoint(t *testing.T) *memory.Endpoint {
	t.Helper()
	ctx := context.Background()
	p, err := memory.NewEngine().CreatePipeline(ctx)
	require.NoError(t, err)
	ep, err := p.CreateEndpoint(ctx)
	require.NoError(t, err)
	return ep.(*memory.Endpoint)
}

func cand(s string) core.IceCandidate { return core.IceCandidate{Candidate: s} }

func TestSession_QueuesCandidatesUntilOutgoingBound(t *testing.T) {
	ctx := context.Background()
	s := core.NewSession("c1", "alice", &recordConn{})

	for _, c := range []string{"a", "b", "c"} {
		queued, err := s.AddIceCandidate(ctx, "alice", cand(c))
		require.NoError(t, err)
		require.True(t, queued)
	}
	require.Len(t, s.QueuedCandidates("alice"), 3)

	ep := newEndpoint(t)
	n, err := s.BindOutgoing(ctx, ep)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []core.IceCandidate{cand("a"), cand("b"), cand("c")}, ep.Candidates())
	require.Empty(t, s.QueuedCandidates("alice"))

	queued, err := s.AddIceCandidate(ctx, "alice", cand("d"))
	require.NoError(t, err)
	require.False(t, queued)
	require.Len(t, ep.Candidates(), 4)
}

func TestSession_QueuesPerPeer(t *testing.T) {
	ctx := context.Background()
	s := core.NewSession("c1", "alice", &recordConn{})

	_, _ = s.AddIceCandidate(ctx, "bob", cand("b1"))
	_, _ = s.AddIceCandidate(ctx, "carol", cand("c1"))
	_, _ = s.AddIceCandidate(ctx, "bob", cand("b2"))

	bob := newEndpoint(t)
	n, err := s.BindIncoming(ctx, "bob", bob)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []core.IceCandidate{cand("b1"), cand("b2")}, bob.Candidates())
	require.Len(t, s.QueuedCandidates("carol"), 1)

	got, ok := s.IncomingMedia("bob")
	require.True(t, ok)
	require.Same(t, bob, got)
	require.Equal(t, []domain.ParticipantName{"bob"}, s.IncomingPeers())

	require.Same(t, bob, s.TakeIncoming("bob"))
	require.Nil(t, s.TakeIncoming("bob"))
}

func TestSession_DetachClearsEverything(t *testing.T) {
	ctx := context.Background()
	s := core.NewSession("c1", "alice", &recordConn{})
	s.SetRoom("R1")

	out := newEndpoint(t)
	_, err := s.BindOutgoing(ctx, out)
	require.NoError(t, err)
	in := newEndpoint(t)
	_, err = s.BindIncoming(ctx, "bob", in)
	require.NoError(t, err)
	_, _ = s.AddIceCandidate(ctx, "carol", cand("x"))

	gotOut, gotIn := s.Detach()
	require.Same(t, out, gotOut)
	require.Len(t, gotIn, 1)

	require.Empty(t, s.RoomName())
	require.Nil(t, s.OutgoingMedia())
	require.Empty(t, s.IncomingPeers())
	require.Empty(t, s.QueuedCandidates("carol"))
}

func TestSession_SendEncodesJSON(t *testing.T) {
	conn := &recordConn{}
	s := core.NewSession("c1", "alice", conn)

	require.NoError(t, s.Send(core.NewExistingParticipants(nil, "R1")))
	require.Len(t, conn.frames, 1)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.frames[0], &got))
	require.Equal(t, "existingParticipants", got["id"])
	require.Equal(t, []any{}, got["data"])
	require.Equal(t, "R1", got["roomName"])

	conn.Close()
	require.ErrorIs(t, s.Send(core.NewParticipantLeft("bob")), core.ErrConnClosed)
}
