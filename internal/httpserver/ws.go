// internal/httpserver/ws.go
package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tamzrod/provisiond/internal/status"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsSendBuffer = 4
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
}

// hub fans status snapshots out to websocket clients.
// A client that falls behind loses intermediate snapshots, never the latest.
type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*wsClient]struct{})}
}

// broadcast is a monitor Observer. Never blocks.
func (h *hub) broadcast(s status.Snapshot) {
	doc := status.Encode(s)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- doc:
		default:
			// drop the oldest, keep the newest
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- doc:
			default:
			}
		}
	}
}

// add registers c and queues its first snapshot. After closeAll it closes
// c.send instead and reports false.
func (h *hub) add(c *wsClient, initial []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return false
	}
	h.clients[c] = struct{}{}
	// under h.mu: closeAll cannot close c.send first. The buffer is empty.
	c.send <- initial
	return true
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	if !s.hub.add(c, status.Encode(s.deps.Monitor.Snapshot())) {
		// shutting down
		conn.Close()
		return
	}

	go s.wsWritePump(c)
	s.wsReadPump(c)
}

// wsReadPump discards client frames and detects close.
func (s *Server) wsReadPump(c *wsClient) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) wsWritePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case doc, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, doc); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
