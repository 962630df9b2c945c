package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJoinLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewJoinLimiter(1, 2)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("c"))
	require.True(t, l.Allow("c"))
	require.False(t, l.Allow("c"))
	require.True(t, l.Allow("d"))

	now = now.Add(time.Second)
	require.True(t, l.Allow("c"))
	require.False(t, l.Allow("c"))
}

func TestJoinLimiter_ForgetsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewJoinLimiter(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Len())

	now = now.Add(l.idleTTL + time.Second)
	l.Allow("c")
	require.Equal(t, 1, l.Len())
}

func TestParseMessage(t *testing.T) {
	msg, err := parseMessage([]byte(`{"id":"joinRoom","name":" alice ","roomName":"r1"}`))
	require.NoError(t, err)
	require.Equal(t, "alice", msg.participant().String())
	require.Equal(t, "r1", msg.roomName().String())

	_, err = parseMessage([]byte(`{"id":"receiveVideoFrom","sender":"alice"}`))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = parseMessage([]byte(`{"id":"onIceCandidate","sender":"alice"}`))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = parseMessage([]byte(`{"id":"nope"}`))
	require.ErrorIs(t, err, ErrUnknownMessage)

	_, err = parseMessage([]byte(`not json`))
	require.Error(t, err)

	msg, err = parseMessage([]byte(`{"id":"leaveRoom"}`))
	require.NoError(t, err)
	require.Equal(t, "leaveRoom", msg.ID)
}
