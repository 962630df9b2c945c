package signal_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/groupcall/internal/adapters/memory"
	"github.com/dkeye/groupcall/internal/adapters/signal"
	"github.com/dkeye/groupcall/internal/app"
	"github.com/dkeye/groupcall/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type server struct {
	url  string
	orch *orch.Orchestrator
}

func newServer(t *testing.T, limiter *signal.JoinLimiter) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := memory.NewEngine()
	o := &orch.Orchestrator{
		Registry:    app.NewRegistry(),
		Rooms:       app.NewRoomManager(engine, nil),
		Policy:      app.SimplePolicy{},
		Bandwidth:   orch.Bandwidth{MaxRecvKbps: 300, MinRecvKbps: 100},
		CallTimeout: time.Second,
	}
	ctl := signal.NewSignalWSController(o, limiter, nil, signal.Settings{
		ReadLimit:  64 << 10,
		PingPeriod: time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := gin.New()
	r.GET("/groupcall", func(c *gin.Context) {
		c.Set("client_token", c.Query("token"))
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &server{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/groupcall", orch: o}
}

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func (s *server) dial(t *testing.T, token string) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(s.url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &client{t: t, ws: ws}
}

func (c *client) send(v map[string]any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

func (c *client) recv() map[string]any {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(c.t, c.ws.ReadJSON(&m))
	return m
}

func TestSignal_GroupCallScenario(t *testing.T) {
	s := newServer(t, nil)
	a := s.dial(t, "a")
	b := s.dial(t, "b")

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R1"})
	require.Equal(t, map[string]any{"id": "existingParticipants", "data": []any{}, "roomName": "R1"}, a.recv())

	b.send(map[string]any{"id": "joinRoom", "name": "B", "roomName": "R1"})
	require.Equal(t, map[string]any{"id": "existingParticipants", "data": []any{"A"}, "roomName": "R1"}, b.recv())
	require.Equal(t, map[string]any{"id": "newParticipantArrived", "name": "B"}, a.recv())

	b.send(map[string]any{"id": "onIceCandidate", "sender": "A", "candidate": map[string]any{"candidate": "candidate:1", "sdpMid": "0", "sdpMLineIndex": 0}})
	b.send(map[string]any{"id": "receiveVideoFrom", "sender": "A", "sdpOffer": "X"})
	require.Equal(t, map[string]any{"id": "receiveVideoAnswer", "name": "A", "sdpAnswer": memory.AnswerPrefix + "X"}, b.recv())

	a.send(map[string]any{"id": "leaveRoom"})
	require.Equal(t, map[string]any{"id": "participantLeft", "name": "A"}, b.recv())

	b.send(map[string]any{"id": "leaveRoom"})
	require.Eventually(t, func() bool { return s.orch.Rooms.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	s := newServer(t, nil)
	a := s.dial(t, "a")

	a.send(map[string]any{"id": "dance"})
	msg := a.recv()
	require.Equal(t, "error", msg["id"])
	require.Equal(t, "protocol", msg["code"])
	require.Contains(t, msg["msg"], "dance")

	a.send(map[string]any{"id": "joinRoom", "name": "", "roomName": "R1"})
	require.Equal(t, "protocol", a.recv()["code"])

	a.send(map[string]any{"id": "receiveVideoFrom", "sender": "ghost", "sdpOffer": "X"})
	require.Equal(t, "unregistered", a.recv()["code"])

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R1"})
	require.Equal(t, "existingParticipants", a.recv()["id"])

	a.send(map[string]any{"id": "receiveVideoFrom", "sender": "ghost", "sdpOffer": "X"})
	require.Equal(t, "resolution", a.recv()["code"])

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R2"})
	require.Equal(t, "conflict", a.recv()["code"])
}

func TestSignal_DisconnectIsImplicitLeave(t *testing.T) {
	s := newServer(t, nil)
	a := s.dial(t, "a")
	b := s.dial(t, "b")

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R1"})
	a.recv()
	b.send(map[string]any{"id": "joinRoom", "name": "B", "roomName": "R1"})
	b.recv()
	a.recv()

	require.NoError(t, a.ws.Close())
	require.Equal(t, map[string]any{"id": "participantLeft", "name": "A"}, b.recv())
	require.Eventually(t, func() bool { return s.orch.Registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_JoinRateLimited(t *testing.T) {
	s := newServer(t, signal.NewJoinLimiter(0.001, 1))
	a := s.dial(t, "same")

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R1"})
	require.Equal(t, "existingParticipants", a.recv()["id"])
	a.send(map[string]any{"id": "leaveRoom"})

	a.send(map[string]any{"id": "joinRoom", "name": "A", "roomName": "R1"})
	require.Equal(t, "rate_limited", a.recv()["code"])

	// other clients have their own budget
	b := s.dial(t, "other")
	b.send(map[string]any{"id": "joinRoom", "name": "B", "roomName": "R1"})
	require.Equal(t, "existingParticipants", b.recv()["id"])
}
