package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"noteenvelope-sync/pkg/logging"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(m *Manager, id, topic, device string) *Client {
	return NewClient(id, topic, device, nil, m)
}

func frameFrom(t *testing.T, sender string) []byte {
	t.Helper()
	data, err := NewFrame(sender, []byte("sealed")).Marshal()
	require.NoError(t, err)
	return data
}

func runManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m := NewManager(cfg, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m
}

func TestManager_BroadcastStaysInTopic(t *testing.T) {
	m := runManager(t, ManagerConfig{})
	a := newTestClient(m, "1", "topic-x", "device-a")
	b := newTestClient(m, "2", "topic-x", "device-b")
	c := newTestClient(m, "3", "topic-y", "device-c")
	m.Register <- a
	m.Register <- b
	m.Register <- c

	m.Broadcast <- &ClientMessage{Client: a, Message: frameFrom(t, "device-a")}

	select {
	case got := <-b.Send:
		f, err := ParseFrame(got)
		require.NoError(t, err)
		assert.Equal(t, "device-a", f.Sender)
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}
	assert.Empty(t, a.Send)
	assert.Empty(t, c.Send)
}

func TestManager_EchoToSender(t *testing.T) {
	m := runManager(t, ManagerConfig{EchoToSender: true})
	a := newTestClient(m, "1", "topic-x", "device-a")
	m.Register <- a

	m.Broadcast <- &ClientMessage{Client: a, Message: frameFrom(t, "device-a")}

	select {
	case <-a.Send:
	case <-time.After(time.Second):
		t.Fatal("echo not delivered")
	}
}

func TestManager_DropsForgedAndInvalidFrames(t *testing.T) {
	m := runManager(t, ManagerConfig{})
	a := newTestClient(m, "1", "topic-x", "device-a")
	b := newTestClient(m, "2", "topic-x", "device-b")
	m.Register <- a
	m.Register <- b

	m.Broadcast <- &ClientMessage{Client: a, Message: frameFrom(t, "device-b")}
	m.Broadcast <- &ClientMessage{Client: a, Message: []byte("not json")}
	// an unbuffered round trip guarantees both were processed
	m.Register <- newTestClient(m, "3", "topic-z", "device-z")

	assert.Empty(t, b.Send)
}

func TestManager_MaxConnectionsPerTopic(t *testing.T) {
	m := runManager(t, ManagerConfig{MaxConnPerTopic: 1})
	a := newTestClient(m, "1", "topic-x", "device-a")
	b := newTestClient(m, "2", "topic-x", "device-b")
	m.Register <- a
	m.Register <- b
	m.Register <- newTestClient(m, "3", "topic-z", "device-z")

	assert.Equal(t, 1, m.TopicConnections("topic-x"))
	_, open := <-b.Send
	assert.False(t, open)
}

func TestManager_UnregisterRemovesEmptyTopic(t *testing.T) {
	m := runManager(t, ManagerConfig{})
	a := newTestClient(m, "1", "topic-x", "device-a")
	m.Register <- a
	m.Unregister <- a
	m.Unregister <- a
	m.Register <- newTestClient(m, "3", "topic-z", "device-z")

	assert.Zero(t, m.TopicConnections("topic-x"))
}

func TestParseFrame(t *testing.T) {
	_, err := ParseFrame([]byte(`{"sender":"","sealed":"AA=="}`))
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = ParseFrame([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestClient_ReadPumpReturnsAfterManagerStops(t *testing.T) {
	m := NewManager(ManagerConfig{}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	upgrader := ws.Upgrader{}
	finished := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient("1", "topic-x", "device-a", conn, m)
		if !m.Join(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go func() {
			defer close(finished)
			client.ReadPump()
		}()
	}))
	defer srv.Close()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return m.TopicConnections("topic-x") == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump still blocked after the manager stopped")
	}
	assert.False(t, m.Join(NewClient("2", "topic-x", "device-b", nil, m)))
}
