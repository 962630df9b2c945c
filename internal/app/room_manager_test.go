package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/groupcall/internal/adapters/memory"
	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/stretchr/testify/require"
)

type slowEngine struct {
	*memory.Engine
	calls atomic.Int32
}

func (e *slowEngine) CreatePipeline(ctx context.Context) (core.Pipeline, error) {
	e.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return e.Engine.CreatePipeline(ctx)
}

func TestRoomManager_ConcurrentGetOrCreateMakesOnePipeline(t *testing.T) {
	eng := &slowEngine{Engine: memory.NewEngine()}
	rm := NewRoomManager(eng, nil)

	const n = 32
	rooms := make([]*core.Room, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := rm.GetOrCreate(context.Background(), "R1")
			require.NoError(t, err)
			rooms[i] = r
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), eng.calls.Load())
	require.Len(t, eng.Pipelines(), 1)
	for _, r := range rooms {
		require.Same(t, rooms[0], r)
	}
	require.Equal(t, 1, rm.Len())
}

func TestRoomManager_PipelineFailureCreatesNoRoom(t *testing.T) {
	eng := memory.NewEngine()
	rm := NewRoomManager(eng, nil)

	boom := errors.New("media server down")
	eng.FailNextPipeline(boom)
	_, err := rm.GetOrCreate(context.Background(), "R1")
	require.ErrorIs(t, err, boom)
	_, ok := rm.Get("R1")
	require.False(t, ok)

	r, err := rm.GetOrCreate(context.Background(), "R1")
	require.NoError(t, err)
	require.NotNil(t, r.Pipeline())
}

func TestRoomManager_RemoveOnlyCurrentRoom(t *testing.T) {
	rm := NewRoomManager(memory.NewEngine(), nil)
	ctx := context.Background()

	first, err := rm.GetOrCreate(ctx, "R1")
	require.NoError(t, err)
	require.True(t, rm.Remove(first))
	require.False(t, rm.Remove(first))

	second, err := rm.GetOrCreate(ctx, "R1")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.NotEqual(t, first.Pipeline().ID(), second.Pipeline().ID())

	require.False(t, rm.Remove(first))
	_, ok := rm.Get("R1")
	require.True(t, ok)
}

func TestRoomManager_ListSorted(t *testing.T) {
	rm := NewRoomManager(memory.NewEngine(), nil)
	ctx := context.Background()
	for _, name := range []string{"b", "a", "c"} {
		_, err := rm.GetOrCreate(ctx, domain.RoomName("x-"+name))
		require.NoError(t, err)
	}
	list := rm.List()
	require.Len(t, list, 3)
	require.Equal(t, "x-a", string(list[0].Name))
	require.Equal(t, "x-c", string(list[2].Name))
}
