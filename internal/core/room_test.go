package core_test

import (
	"errors"
	"testing"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestRoom_Membership(t *testing.T) {
	r := core.NewRoom("R1", nil)
	r.AddParticipant(core.NewSession("c2", "bob", nil))
	r.AddParticipant(core.NewSession("c1", "alice", nil))

	require.Equal(t, 2, r.Len())
	require.Equal(t, []domain.ParticipantName{"alice", "bob"}, r.ParticipantNames(""))
	require.Equal(t, []domain.ParticipantName{"bob"}, r.ParticipantNames("alice"))

	s, ok := r.Participant("bob")
	require.True(t, ok)
	require.Equal(t, core.SessionID("c2"), s.ID())

	r.RemoveParticipant("bob")
	_, ok = r.Participant("bob")
	require.False(t, ok)

	info := r.Info()
	require.Equal(t, domain.RoomName("R1"), info.Name)
	require.Equal(t, 1, info.ParticipantCount)

	require.False(t, r.Closed())
	r.MarkClosed()
	require.True(t, r.Closed())
}

func TestErrorKinds(t *testing.T) {
	err := core.ResolutionError("receiveVideoFrom", core.ErrUnknownPeer)
	require.Equal(t, core.KindResolution, core.KindOf(err))
	require.ErrorIs(t, err, core.ErrUnknownPeer)
	require.Contains(t, err.Error(), "receiveVideoFrom")

	require.Equal(t, core.KindInternal, core.KindOf(errors.New("boom")))
	require.NoError(t, core.EngineError("join", nil))
}
