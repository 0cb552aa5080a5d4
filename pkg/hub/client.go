package hub

import (
	"sync"

	"chirp/pkg/compose"
	"chirp/pkg/envelope"
	"chirp/pkg/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Client is one socket connection and the composers it has open.
type Client struct {
	conn Conn
	user models.Author

	writeMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*compose.Session
}

func newClient(conn Conn, user models.Author) *Client {
	return &Client{
		conn:     conn,
		user:     user,
		sessions: make(map[string]*compose.Session),
	}
}

func (c *Client) User() models.Author {
	return c.user
}

func (c *Client) Authenticated() bool {
	return c.user.ID != ""
}

func (c *Client) send(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(textMessage, data); err != nil {
		log.Warnf("[HUB] send error user=%s: %v", c.user.Username, err)
	}
}

func (c *Client) sendEnvelope(env envelope.Envelope) {
	raw, err := env.Marshal()
	if err != nil {
		log.Errorf("[HUB] marshal %s: %v", env.Action, err)
		return
	}
	c.send(raw)
}

func (c *Client) Reply(original envelope.Envelope, data interface{}) {
	env, err := envelope.NewReply(original, data)
	if err != nil {
		log.Errorf("[HUB] reply marshal error: %v", err)
		c.ReplyError(original, 500, "internal error")
		return
	}
	c.sendEnvelope(env)
}

func (c *Client) ReplyError(original envelope.Envelope, code int, msg string) {
	c.sendEnvelope(envelope.NewError(original, code, msg))
}

// Push sends an unsolicited event to this connection only.
func (c *Client) Push(action string, data interface{}) {
	env, err := envelope.NewEvent(action, data)
	if err != nil {
		log.Errorf("[HUB] event marshal error: %v", err)
		return
	}
	env.UserID = c.user.ID
	c.sendEnvelope(env)
}

// Open registers s and returns its composer id.
func (c *Client) Open(s *compose.Session) string {
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = s
	c.mu.Unlock()
	return id
}

func (c *Client) Session(id string) (*compose.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Close discards and forgets the composer.
func (c *Client) Close(id string) bool {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()

	if ok {
		s.Discard()
	}
	return ok
}

func (c *Client) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Client) discardAll() {
	c.mu.Lock()
	sessions := c.sessions
	c.sessions = make(map[string]*compose.Session)
	c.mu.Unlock()

	for _, s := range sessions {
		s.Discard()
	}
}
