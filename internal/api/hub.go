package api

import (
	"sync"

	"github.com/gofiber/websocket/v2"
)

// hub tracks websocket subscribers of the composed board state.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) add(c *websocket.Conn) chan []byte {
	send := make(chan []byte, 8)
	h.mu.Lock()
	h.clients[c] = send
	h.mu.Unlock()
	return send
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(send)
	}
	h.mu.Unlock()
}

// broadcast fans payload out to every subscriber. Slow clients are skipped
// rather than blocking the update path.
func (h *hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, send := range h.clients {
		select {
		case send <- payload:
		default:
		}
	}
}
