package app

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dkeye/groupcall/internal/core"
	"github.com/dkeye/groupcall/internal/domain"
	"github.com/dkeye/groupcall/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RoomManager is the room directory. It creates rooms lazily, one pipeline
// per room name, and forgets them when they are destroyed.
type RoomManager struct {
	engine  core.MediaEngine
	metrics *metrics.Metrics

	// Concurrent creations of the same name share one pipeline.
	group singleflight.Group

	mu    sync.RWMutex
	rooms map[domain.RoomName]*core.Room
}

func NewRoomManager(engine core.MediaEngine, m *metrics.Metrics) *RoomManager {
	return &RoomManager{
		engine:  engine,
		metrics: m,
		rooms:   make(map[domain.RoomName]*core.Room),
	}
}

func (m *RoomManager) Get(name domain.RoomName) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

// GetOrCreate returns the room called name, creating its pipeline and
// inserting it when it does not exist.
func (m *RoomManager) GetOrCreate(ctx context.Context, name domain.RoomName) (*core.Room, error) {
	if room, ok := m.Get(name); ok {
		log.Debug().Str("module", "app.rooms").Str("room", string(name)).Msg("existing room")
		return room, nil
	}
	v, err, _ := m.group.Do(string(name), func() (any, error) {
		if room, ok := m.Get(name); ok {
			return room, nil
		}
		pipeline, err := m.engine.CreatePipeline(ctx)
		if err != nil {
			return nil, err
		}
		room := core.NewRoom(name, pipeline)
		m.mu.Lock()
		m.rooms[name] = room
		m.mu.Unlock()
		m.metrics.RoomOpened()
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Str("pipeline", pipeline.ID()).Msg("room created")
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.Room), nil
}

// Remove deletes room from the directory if it is still the room registered
// under its name.
func (m *RoomManager) Remove(room *core.Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rooms[room.Name()]; !ok || cur != room {
		return false
	}
	delete(m.rooms, room.Name())
	m.metrics.RoomClosed()
	log.Info().Str("module", "app.rooms").Str("room", string(room.Name())).Msg("room removed")
	return true
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	rooms := make([]*core.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]core.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func (m *RoomManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
