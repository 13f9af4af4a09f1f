package server_test

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/server"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/task"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-tlsim/utils/randengine"
)

type lightReply struct {
	ID               int32  `json:"id"`
	Mode             string `json:"mode"`
	Phase            string `json:"phase"`
	TicksSinceSwitch int32  `json:"ticksSinceSwitch"`
}

func dial(t *testing.T, mode string) (*websocket.Conn, *server.Server, *task.Context) {
	c := config.Default()
	c.Simulation.Light.Mode = mode
	c.Simulation.Light.MinDwellTicks = 0
	ctx, err := task.NewContext(c, nil, randengine.New(1))
	require.NoError(t, err)
	s := server.NewServer(ctx)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + server.Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, s, ctx
}

func call(t *testing.T, conn *websocket.Conn, req any, reply any) {
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.ReadJSON(reply))
}

func TestStepAndTrafficLights(t *testing.T) {
	conn, _, ctx := dial(t, "auto_timer")

	var step server.StepReply
	for i := 1; i <= 3; i++ {
		call(t, conn, map[string]string{"endpoint": "step"}, &step)
		assert.Equal(t, int32(i), step.Tick)
	}
	assert.Equal(t, ctx.Engine().Tick(), step.Tick)
	assert.Equal(t, ctx.Engine().Stats().Spawned, step.Stats.Spawned)

	var lights []lightReply
	call(t, conn, map[string]string{"endpoint": "trafficlights"}, &lights)
	require.Len(t, lights, 2)
	for i, l := range lights {
		assert.Equal(t, int32(i), l.ID)
		assert.Equal(t, "AUTO_TIMER", l.Mode)
		assert.Contains(t, []string{"VERTICAL_GREEN", "HORIZONTAL_GREEN"}, l.Phase)
	}

	var snap struct {
		Tick      int32 `json:"tick"`
		Junctions []any `json:"junctions"`
	}
	call(t, conn, map[string]string{"endpoint": "snapshot"}, &snap)
	assert.Equal(t, int32(3), snap.Tick)
	assert.Len(t, snap.Junctions, 2)

	// 定时模式拒绝手动切换
	var e server.ErrorReply
	call(t, conn, map[string]any{"endpoint": "toggle", "id": 0}, &e)
	assert.NotEmpty(t, e.Error)
}

func TestToggle(t *testing.T) {
	conn, _, _ := dial(t, "manual")

	var status server.StatusReply
	call(t, conn, map[string]any{"endpoint": "toggle", "id": 1}, &status)
	assert.Equal(t, "toggle requested", status.Status)

	var step server.StepReply
	call(t, conn, map[string]string{"endpoint": "step"}, &step)
	var lights []lightReply
	call(t, conn, map[string]string{"endpoint": "trafficlights"}, &lights)
	require.Len(t, lights, 2)
	assert.Equal(t, "VERTICAL_GREEN", lights[0].Phase)
	assert.Equal(t, "HORIZONTAL_GREEN", lights[1].Phase)
	assert.Equal(t, "MANUAL", lights[1].Mode)

	var e server.ErrorReply
	call(t, conn, map[string]any{"endpoint": "toggle", "id": 9}, &e)
	assert.NotEmpty(t, e.Error)
	e = server.ErrorReply{}
	call(t, conn, map[string]any{"endpoint": "toggle"}, &e)
	assert.Equal(t, "toggle requires id", e.Error)
}

func TestUnknownEndpointAndStop(t *testing.T) {
	conn, s, ctx := dial(t, "auto_timer")

	var e server.ErrorReply
	call(t, conn, map[string]string{"endpoint": "fly"}, &e)
	assert.Contains(t, e.Error, "unknown endpoint")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	e = server.ErrorReply{}
	require.NoError(t, conn.ReadJSON(&e))
	assert.Contains(t, e.Error, "bad request")

	var status server.StatusReply
	call(t, conn, map[string]string{"endpoint": "stop"}, &status)
	assert.Equal(t, "stopped", status.Status)
	<-s.Stopped()
	assert.True(t, ctx.Closed())

	// 服务端随后关闭连接
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRunServerAddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	ctx, err := task.NewContext(config.Default(), nil, randengine.New(1))
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- server.RunServer(context.Background(), l.Addr().String(), ctx) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunServer did not return on a busy address")
	}
}

func TestRunServerCancel(t *testing.T) {
	ctx, err := task.NewContext(config.Default(), nil, randengine.New(1))
	require.NoError(t, err)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.RunServer(runCtx, "127.0.0.1:0", ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunServer did not return after cancel")
	}
}
