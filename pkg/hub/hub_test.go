package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsWrite struct {
	typ  int
	data []byte
}

// fakeConn records writes. ReadMessage blocks until Close.
type fakeConn struct {
	mu      sync.Mutex
	written []wsWrite
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(typ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, wsWrite{typ, append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) frames() []wsWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wsWrite(nil), c.written...)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	go h.Run()
	t.Cleanup(h.Stop)
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

func TestHub_Broadcast(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()
	client := NewClient(h, conn)
	go client.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"type": "opened"}))
	h.BroadcastBinary([]byte{0xff, 0xd8})

	require.Eventually(t, func() bool { return len(conn.frames()) == 2 }, time.Second, time.Millisecond)
	got := conn.frames()
	assert.Equal(t, websocket.TextMessage, got[0].typ)
	assert.JSONEq(t, `{"type":"opened"}`, string(got[0].data))
	assert.Equal(t, websocket.BinaryMessage, got[1].typ)
	assert.Equal(t, []byte{0xff, 0xd8}, got[1].data)
}

func TestHub_BroadcastJSONError(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()
	client := NewClient(h, conn)
	go client.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	assert.Error(t, h.BroadcastJSON(map[string]any{"bad": make(chan int)}))
	h.BroadcastBinary([]byte("jpeg"))

	require.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, websocket.BinaryMessage, conn.frames()[0].typ)
}

func TestHub_Disconnect(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()
	client := NewClient(h, conn)
	done := make(chan struct{})
	go func() {
		client.Run()
		close(done)
	}()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	conn.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop")
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := startHub(t)
	conn := newFakeConn()
	go NewClient(h, conn).Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, time.Millisecond)

	h.Stop()
	require.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, time.Millisecond)
	assert.Equal(t, 0, h.ClientCount())

	assert.Eventually(t, func() bool {
		f := conn.frames()
		return len(f) > 0 && f[len(f)-1].typ == websocket.CloseMessage
	}, time.Second, time.Millisecond)

	// Registering after Stop must not block.
	late := NewClient(h, newFakeConn())
	_, ok := <-late.send
	assert.False(t, ok)
}

func TestHub_BroadcastWithoutRunDrops(t *testing.T) {
	h := New("idle")
	for range 300 {
		h.BroadcastBinary([]byte{1})
	}
	assert.Len(t, h.broadcast, cap(h.broadcast))
}
