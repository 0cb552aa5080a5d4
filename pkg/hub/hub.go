package hub

import (
	"sync"

	"chirp/pkg/envelope"
	"chirp/pkg/models"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"
)

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ActionHandler serves one action for the connection that sent it.
type ActionHandler func(c *Client, env envelope.Envelope)

// Hub dispatches socket frames to action handlers. Replies only ever go back
// to the requesting connection.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	handlers map[string]ActionHandler
}

func New() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		handlers: make(map[string]ActionHandler),
	}
}

// On must be called before connections are served.
func (h *Hub) On(action string, fn ActionHandler) {
	h.handlers[action] = fn
}

// HandleClientConn serves conn until it fails or closes. Frames of one
// connection are handled in order.
func (h *Hub) HandleClientConn(conn Conn, user models.Author) {
	c := newClient(conn, user)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Infof("[HUB] client connected user=%s total=%d", user.Username, h.ClientCount())

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.discardAll()
		conn.Close()
		log.Infof("[HUB] client disconnected user=%s total=%d", user.Username, h.ClientCount())
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := envelope.Unmarshal(raw)
		if err != nil {
			c.ReplyError(envelope.New("error"), 400, "invalid JSON")
			continue
		}

		if env.Action == "ping" {
			pong, _ := envelope.NewReply(env, map[string]string{"status": "ok"})
			pong.Action = "pong"
			c.sendEnvelope(pong)
			continue
		}

		// Identity comes from the connection, never from the frame.
		env.UserID = user.ID
		env.Username = user.Username

		handler, ok := h.handlers[env.Action]
		if !ok {
			c.ReplyError(env, 404, "unknown action: "+env.Action)
			continue
		}
		handler(c, env)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) AuthenticatedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.Authenticated() {
			n++
		}
	}
	return n
}

const textMessage = websocket.TextMessage
