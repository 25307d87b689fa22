package monitoring

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientSendBuffer = 16
	clientWriteWait  = time.Second
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// snapshotHub fans snapshot messages out to every connected dashboard. A
// client that cannot keep up is disconnected.
type snapshotHub struct {
	mu       sync.Mutex
	clients  map[*hubClient]bool
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func newSnapshotHub(logger *slog.Logger) *snapshotHub {
	return &snapshotHub{
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// NumClients returns the number of connected clients.
func (h *snapshotHub) NumClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Broadcast queues msg for every client without blocking.
func (h *snapshotHub) Broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.removeLocked(client)
		}
	}
}

func (h *snapshotHub) removeLocked(client *hubClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)
	h.logger.Debug("dashboard client disconnected")
}

func (h *snapshotHub) remove(client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

// CloseAll disconnects every client.
func (h *snapshotHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}

// serve upgrades the request and keeps the client until it goes away.
// The first message is sent immediately when greeting is not nil.
func (h *snapshotHub) serve(w http.ResponseWriter, r *http.Request, greeting []byte) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	if greeting != nil {
		client.send <- greeting
	}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Debug("dashboard client connected", "remote", r.RemoteAddr)

	go h.writePump(client)
	h.readPump(client)
}

func (h *snapshotHub) writePump(client *hubClient) {
	defer client.conn.Close()

	for msg := range client.send {
		err := client.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
		if err == nil {
			err = client.conn.WriteMessage(websocket.TextMessage, msg)
		}

		if err != nil {
			h.remove(client)
			return
		}
	}

	client.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound messages and returns once the peer is gone.
func (h *snapshotHub) readPump(client *hubClient) {
	defer h.remove(client)

	for {
		_, _, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}
