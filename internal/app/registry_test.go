package app

import (
	"testing"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterLookupUnregister(t *testing.T) {
	reg := NewRegistry()
	alice := core.NewSession("c1", "alice", nil)
	alice.SetRoom("R1")
	reg.Register(alice)

	got, ok := reg.GetByID("c1")
	require.True(t, ok)
	require.Same(t, alice, got)

	got, ok = reg.GetByName("R1", "alice")
	require.True(t, ok)
	require.Same(t, alice, got)

	_, ok = reg.GetByName("R2", "alice")
	require.False(t, ok)

	// A rejoin on the same connection replaces the old session.
	again := core.NewSession("c1", "alice2", nil)
	reg.Register(again)
	require.False(t, reg.Unregister(alice))
	require.Equal(t, 1, reg.Count())
	require.True(t, reg.Unregister(again))
	require.Equal(t, 0, reg.Count())
}
