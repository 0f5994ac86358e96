package web

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-cameraview/internal/log"
)

func listen(t *testing.T, s *Server, addr string) {
	t.Helper()
	go s.Listen(addr)
	t.Cleanup(func() { s.Shutdown() })
	time.Sleep(100 * time.Millisecond)
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWebSocket_Events(t *testing.T) {
	s := NewServer(Options{Logger: log.Discard()})
	listen(t, s, "127.0.0.1:18091")
	ws := dial(t, "ws://127.0.0.1:18091/ws/events")
	require.Eventually(t, func() bool { return s.events.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cb := s.Callbacks()
	cb.OnCameraOpened()
	cb.OnFocusAt(12, 34)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got []Event
	for len(got) < 2 {
		kind, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		var e Event
		require.NoError(t, json.Unmarshal(data, &e))
		got = append(got, e)
	}
	assert.Equal(t, EventCameraOpened, got[0].Type)
	assert.Equal(t, EventFocus, got[1].Type)
	require.NotNil(t, got[1].X)
	assert.Equal(t, 12.0, *got[1].X)
	assert.NotEmpty(t, got[1].ID)
}

func TestWebSocket_Pictures(t *testing.T) {
	s := NewServer(Options{Logger: log.Discard()})
	listen(t, s, "127.0.0.1:18092")
	ws := dial(t, "ws://127.0.0.1:18092/ws/pictures")
	require.Eventually(t, func() bool { return s.pictures.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	s.Callbacks().OnPictureTaken([]byte("jpeg"))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestWebSocket_PreviewFrames(t *testing.T) {
	p := NewPreviewSurface(640, 480)
	s := NewServer(Options{Preview: p, Logger: log.Discard()})
	listen(t, s, "127.0.0.1:18093")
	ws := dial(t, "ws://127.0.0.1:18093/ws/preview")
	require.Eventually(t, func() bool { return s.frames.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	p.buffer.WriteFrame([]byte("frame"))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte("frame"), data)
}

func TestWebSocket_ShutdownDisconnects(t *testing.T) {
	s := NewServer(Options{Logger: log.Discard()})
	go s.Listen("127.0.0.1:18094")
	time.Sleep(100 * time.Millisecond)
	ws := dial(t, "ws://127.0.0.1:18094/ws/events")
	require.Eventually(t, func() bool { return s.events.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Shutdown())
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := ws.ReadMessage()
	assert.Error(t, err)
}
