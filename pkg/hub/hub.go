// Package hub fans controller events, pictures and preview frames out to
// websocket clients.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-cameraview/internal/log"
)

// frame is one queued websocket write; kind is the websocket opcode.
type frame struct {
	kind int
	data []byte
}

// Hub tracks the connected clients of one stream and broadcasts to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	name   string
	logger *slog.Logger

	clients map[*Client]bool

	broadcast  chan frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	// count mirrors len(clients) for readers outside Run.
	count   atomic.Int64
	running atomic.Bool
}

// New creates a hub. Call Run in a goroutine.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.With("component", "hub", "hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns after Stop.
func (h *Hub) Run() {
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			h.logger.Debug("client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client disconnected", "clients", len(h.clients))

		case f := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- f:
				default:
					// Buffer full: the client is too slow to keep.
					h.remove(client)
					h.logger.Warn("dropped slow client")
				}
			}

		case <-h.done:
			for client := range h.clients {
				h.remove(client)
			}
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// enqueue never blocks; when the queue is full the frame is dropped.
func (h *Hub) enqueue(f frame) {
	select {
	case h.broadcast <- f:
	default:
		h.logger.Warn("broadcast queue full, dropping frame", "bytes", len(f.data))
	}
}

// BroadcastJSON encodes v and sends it to every client as a text frame.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.enqueue(frame{kind: websocket.TextMessage, data: data})
	return nil
}

// BroadcastBinary sends a JPEG picture or preview frame to every client.
func (h *Hub) BroadcastBinary(data []byte) {
	h.enqueue(frame{kind: websocket.BinaryMessage, data: data})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// IsRunning reports whether Run is executing.
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
